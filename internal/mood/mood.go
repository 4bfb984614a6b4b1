// Package mood flags user messages that signal frustration.
package mood

import "strings"

// frustrationPhrases are matched as case-insensitive substrings.
var frustrationPhrases = []string{
	"frustrated", "frustrating", "angry", "annoyed", "annoying", "upset",
	"speak to human", "speak to a human", "talk to a human", "talk to someone",
	"speak to someone", "real person", "live person", "agent", "representative",
	"this is ridiculous", "ridiculous", "hate this", "stupid", "useless",
	"waste of time", "give up", "help me", "not working", "doesn't work",
	"broken", "fed up", "sick of",
}

// IsFrustrated reports whether msg contains any frustration phrase. It is a
// best-effort heuristic; false negatives are expected.
func IsFrustrated(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range frustrationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
