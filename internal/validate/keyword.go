package validate

import (
	"strings"
)

// Choice is one canonical answer and the words that select it.
type Choice struct {
	Value string
	// Stems match any word that starts with them. Entries containing a space
	// match as whole phrases whose last word may be a prefix.
	Stems []string
	// Words match whole words only.
	Words []string
	// Negated is the answer meant when every mention of this choice is
	// negated ("not valid" means suspended). Empty drops the choice instead.
	Negated string
}

// Keyword matches a reply against a small fixed vocabulary, case-insensitively.
// Exactly one choice must match; no match or several matches is invalid.
// A mention preceded closely by a negator counts against the choice.
type Keyword struct {
	Field   string
	Choices []Choice
	// Expect is shown to the user when nothing matched.
	Expect string
	// Literal disables negation handling for vocabularies whose choices are
	// themselves negative words.
	Literal bool
}

// negationWindow is how many words before a mention a negator may appear.
const negationWindow = 3

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "without": {}, "don't": {}, "dont": {},
	"doesn't": {}, "doesnt": {}, "isn't": {}, "isnt": {}, "haven't": {},
	"havent": {}, "hasn't": {}, "hasnt": {}, "can't": {}, "cant": {},
	"wasn't": {}, "wasnt": {}, "aren't": {}, "arent": {},
}

// Extract implements Extractor.
func (k Keyword) Extract(raw string) (Value, error) {
	tokens := words(raw)
	if uncertain(tokens) {
		return Value{}, invalid(k.Field, "no problem, just answer with %s when you know", k.Expect)
	}

	var matched []string
	add := func(v string) {
		for _, m := range matched {
			if m == v {
				return
			}
		}
		matched = append(matched, v)
	}
	negatedOnly := false
	for _, c := range k.Choices {
		positions := c.positions(tokens)
		if len(positions) == 0 {
			continue
		}
		if k.Literal || !allNegated(tokens, positions) {
			add(c.Value)
			continue
		}
		if c.Negated != "" {
			add(c.Negated)
		} else {
			negatedOnly = true
		}
	}
	switch len(matched) {
	case 1:
		return Value{Text: matched[0]}, nil
	case 0:
		if negatedOnly {
			return Value{}, invalid(k.Field, "I'm not sure which one applies, please answer with %s", k.Expect)
		}
		return Value{}, invalid(k.Field, "please answer with %s", k.Expect)
	default:
		return Value{}, invalid(k.Field, "I couldn't tell whether you meant %s", strings.Join(matched, " or "))
	}
}

// positions returns the token index of every mention of c.
func (c Choice) positions(tokens []string) []int {
	var out []int
	for i := range tokens {
		if c.matchesAt(tokens, i) {
			out = append(out, i)
		}
	}
	return out
}

func (c Choice) matchesAt(tokens []string, i int) bool {
	for _, stem := range c.Stems {
		if phraseAt(tokens, i, strings.Fields(stem), true) {
			return true
		}
	}
	for _, w := range c.Words {
		if phraseAt(tokens, i, strings.Fields(w), false) {
			return true
		}
	}
	return false
}

// phraseAt reports whether parts appear as consecutive tokens starting at i.
// With prefixLast the final part only needs to start the token.
func phraseAt(tokens []string, i int, parts []string, prefixLast bool) bool {
	if len(parts) == 0 || i+len(parts) > len(tokens) {
		return false
	}
	for j, part := range parts {
		tok := tokens[i+j]
		if j == len(parts)-1 && prefixLast {
			if !strings.HasPrefix(tok, part) {
				return false
			}
			continue
		}
		if tok != part {
			return false
		}
	}
	return true
}

func allNegated(tokens []string, positions []int) bool {
	for _, at := range positions {
		if !negatedAt(tokens, at) {
			return false
		}
	}
	return true
}

// scopeBreaks end a negation before it reaches the next mention
// ("not business, just commuting").
var scopeBreaks = map[string]struct{}{
	"but": {}, "just": {}, "and": {}, "only": {}, "instead": {}, "rather": {},
	"though": {}, "although": {},
}

func negatedAt(tokens []string, at int) bool {
	for i := at - 1; i >= max(0, at-negationWindow); i-- {
		if _, ok := scopeBreaks[tokens[i]]; ok {
			return false
		}
		if _, ok := negators[tokens[i]]; ok {
			return true
		}
	}
	return false
}

// Canonical answers for the vocabulary fields.
const (
	ChoiceVIN    = "vin"
	ChoiceManual = "manual"

	Yes = "yes"
	No  = "no"
)

// VehicleChoice picks the VIN path or the manual year/make/body path.
var VehicleChoice = Keyword{
	Field: "vehicle identification method",
	Choices: []Choice{
		{Value: ChoiceVIN, Stems: []string{"vin", "vehicle identification"}, Negated: ChoiceManual},
		{Value: ChoiceManual, Stems: []string{"manual", "year", "make", "body", "model"}},
	},
	Expect: `"VIN" or "year, make and body type"`,
}

// VehicleUse maps the reply to one of the four use categories.
var VehicleUse = Keyword{
	Field: "vehicle use",
	Choices: []Choice{
		{Value: "commuting", Stems: []string{"commut"}},
		{Value: "commercial", Stems: []string{"commercial"}},
		{Value: "farming", Stems: []string{"farm", "agricultur", "ranch"}},
		{Value: "business", Stems: []string{"business"}},
	},
	Expect: "commuting, commercial, farming or business",
}

// LicenseType maps the reply to foreign, personal or commercial.
var LicenseType = Keyword{
	Field: "license type",
	Choices: []Choice{
		{Value: "foreign", Stems: []string{"foreign", "international", "overseas"}},
		{Value: "personal", Stems: []string{"personal", "regular", "standard"}, Words: []string{"class c"}},
		{Value: "commercial", Stems: []string{"commercial"}, Words: []string{"cdl"}},
	},
	Expect: "foreign, personal or commercial",
}

// LicenseStatus maps the reply to valid or suspended.
var LicenseStatus = Keyword{
	Field: "license status",
	Choices: []Choice{
		{Value: "valid", Stems: []string{"valid", "active"}, Words: []string{"good", "current"}, Negated: "suspended"},
		{Value: "suspended", Stems: []string{"suspend", "revoked"}, Negated: "valid"},
	},
	Expect: "valid or suspended",
}

// YesNo interprets affirmative and negative replies on whole words only.
// A reply carrying both kinds of word, neither, or an expression of
// uncertainty ("I don't know") is unclear and therefore invalid.
func YesNo(field string) Keyword {
	return Keyword{
		Field: field,
		Choices: []Choice{
			{Value: Yes, Words: []string{
				"yes", "y", "yeah", "yea", "yep", "yup", "sure", "ok", "okay",
				"correct", "absolutely", "definitely", "affirmative", "please",
				"of course", "it does", "i do", "i would",
			}},
			{Value: No, Words: []string{
				"no", "n", "nope", "nah", "not", "don't", "dont", "doesn't",
				"doesnt", "none", "negative", "never", "without",
			}},
		},
		Expect:  "yes or no",
		Literal: true,
	}
}

// Affirmative reports whether v holds the yes answer of a YesNo extractor.
func Affirmative(v Value) bool {
	return v.Text == Yes
}
