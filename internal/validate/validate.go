// Package validate turns free-form chat replies into typed field values.
//
// Every extractor is pure: it never performs I/O. Checks that need external
// truth (VIN decoding, make lookup) happen in the caller after extraction.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Error is an InputValidationError for a single field.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Value is a normalized field value. Only the member matching the
// extractor's kind is meaningful.
type Value struct {
	Text string
	Int  int
}

// Extractor interprets a raw message for one field.
type Extractor interface {
	Extract(raw string) (Value, error)
}

// Func adapts a plain function to Extractor.
type Func func(raw string) (Value, error)

// Extract implements Extractor.
func (f Func) Extract(raw string) (Value, error) {
	return f(raw)
}

var wordSplit = regexp.MustCompile(`[^\p{L}\p{N}']+`)

// words lowercases s and splits it into alphanumeric tokens.
func words(s string) []string {
	fields := wordSplit.Split(strings.ToLower(s), -1)
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// normalized returns s as space-joined lowercase tokens padded with spaces,
// so phrase lookups can match on word boundaries.
func normalized(s string) string {
	return " " + strings.Join(words(s), " ") + " "
}

// uncertainPhrases mark a reply that declines to answer rather than giving one.
var uncertainPhrases = [][]string{
	{"idk"}, {"dunno"}, {"unsure"}, {"maybe"}, {"perhaps"},
	{"don't", "know"}, {"dont", "know"}, {"do", "not", "know"},
	{"no", "idea"}, {"no", "clue"}, {"not", "sure"}, {"not", "certain"},
	{"can't", "remember"}, {"cant", "remember"}, {"don't", "remember"},
	{"dont", "remember"},
}

// uncertain reports whether tokens contain an expression of uncertainty.
func uncertain(tokens []string) bool {
	for i := range tokens {
		for _, p := range uncertainPhrases {
			if phraseAt(tokens, i, p, false) {
				return true
			}
		}
	}
	return false
}
