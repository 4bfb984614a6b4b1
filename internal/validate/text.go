package validate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ashureev/onboard-chat/internal/mood"
)

var (
	nameLeadIns = []string{"my name is", "my full name is", "name's", "i am", "i'm", "it's", "it is", "this is", "call me"}
	makeLeadIns = []string{"it's a", "it is a", "it's an", "it is an", "it's", "it is", "a", "an", "the"}

	greetings = map[string]struct{}{
		"hi": {}, "hello": {}, "hey": {}, "yo": {}, "thanks": {}, "thank you": {},
		"ok": {}, "okay": {}, "yes": {}, "no": {}, "what": {}, "why": {}, "help": {},
	}
	questionStarts = []string{"what", "why", "how", "who", "where", "when"}

	// feelings complete "I'm ..." without being a name.
	feelings = map[string]struct{}{
		"fine": {}, "good": {}, "great": {}, "well": {}, "tired": {}, "confused": {},
		"busy": {}, "sorry": {}, "lost": {}, "stuck": {}, "bored": {}, "ready": {},
		"here": {}, "back": {}, "done": {}, "sad": {}, "worried": {}, "stressed": {},
		"new here": {}, "in a hurry": {},
	}

	makeChars = regexp.MustCompile(`^[\p{L}0-9][\p{L}0-9 .&'\-]*$`)
)

const (
	maxTextLen   = 100
	maxNameWords = 5
)

// FullName accepts the trimmed reply as the user's name unless it is empty
// or an off-topic interjection such as a greeting, a question or a remark
// about how the user feels.
var FullName Extractor = Func(func(raw string) (Value, error) {
	name := stripLeadIn(strings.TrimSpace(raw), nameLeadIns)
	name = strings.TrimRight(name, ".!")
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return Value{}, invalid("full name", "please tell me your first and last name")
	case len(name) > maxTextLen, len(words(name)) > maxNameWords:
		return Value{}, invalid("full name", "that's longer than a name usually is")
	case isInterjection(name), isFeeling(name), mood.IsFrustrated(name):
		return Value{}, invalid("full name", "I still need your full name")
	case strings.ContainsAny(name, "0123456789@"):
		return Value{}, invalid("full name", "names shouldn't contain numbers or symbols")
	case !strings.ContainsFunc(name, unicode.IsLetter):
		return Value{}, invalid("full name", "please tell me your first and last name")
	}
	return Value{Text: name}, nil
})

// Make accepts a vehicle manufacturer name. Whether the make exists is
// checked separately against the reference make list.
var Make Extractor = Func(func(raw string) (Value, error) {
	m := stripLeadIn(strings.TrimSpace(raw), makeLeadIns)
	m = strings.TrimSpace(strings.TrimRight(m, ".!"))
	if m == "" {
		return Value{}, invalid("vehicle make", "please tell me the make, like Toyota or Ford")
	}
	if len(m) > 50 || !makeChars.MatchString(m) || isInterjection(m) {
		return Value{}, invalid("vehicle make", "that doesn't look like a make, try something like Toyota or Ford")
	}
	return Value{Text: m}, nil
})

var bodyTypes = []struct {
	stem  string
	label string
}{
	{"sedan", "Sedan"},
	{"suv", "SUV"},
	{"sport utility", "SUV"},
	{"crossover", "SUV"},
	{"pickup", "Pickup"},
	{"truck", "Truck"},
	{"coupe", "Coupe"},
	{"hatchback", "Hatchback"},
	{"convertible", "Convertible"},
	{"minivan", "Minivan"},
	{"van", "Van"},
	{"wagon", "Wagon"},
	{"motorcycle", "Motorcycle"},
}

// BodyType maps common body styles to a canonical label and otherwise keeps
// the user's wording when it looks like a body style.
var BodyType Extractor = Func(func(raw string) (Value, error) {
	text := normalized(raw)
	best, bestAt := "", -1
	for _, bt := range bodyTypes {
		at := strings.Index(text, " "+bt.stem)
		if at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = bt.label, at
		}
	}
	if best != "" {
		return Value{Text: best}, nil
	}

	body := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(raw), ".!"))
	if body == "" || len(body) > 40 || !makeChars.MatchString(body) || isInterjection(body) {
		return Value{}, invalid("body type", "please describe the body type, like sedan, SUV or truck")
	}
	return Value{Text: body}, nil
})

func stripLeadIn(s string, leadIns []string) string {
	lower := strings.ToLower(s)
	for _, li := range leadIns {
		if strings.HasPrefix(lower, li+" ") {
			return strings.TrimSpace(s[len(li)+1:])
		}
	}
	return s
}

func isInterjection(s string) bool {
	if strings.HasSuffix(strings.TrimSpace(s), "?") {
		return true
	}
	toks := words(s)
	if len(toks) == 0 {
		return false
	}
	if _, ok := greetings[strings.Join(toks, " ")]; ok {
		return true
	}
	if uncertain(toks) {
		return true
	}
	for _, q := range questionStarts {
		if toks[0] == q && len(toks) > 1 {
			return true
		}
	}
	return false
}

func isFeeling(s string) bool {
	toks := words(s)
	if len(toks) > 0 && (toks[0] == "so" || toks[0] == "very" || toks[0] == "really" || toks[0] == "just") {
		toks = toks[1:]
	}
	_, ok := feelings[strings.Join(toks, " ")]
	return ok
}
