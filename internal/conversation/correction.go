package conversation

import (
	"strings"

	"github.com/ashureev/onboard-chat/internal/domain"
	"github.com/ashureev/onboard-chat/internal/validate"
)

var correctionCues = []string{
	"actually", "change my", "update my", "correction", "correct my", "wrong", "i meant", "typo", "fix my",
}

// correctable is an earlier scalar answer the user may revise mid-flow.
type correctable struct {
	state    domain.State
	field    string
	keywords []string
	extract  validate.Extractor
	// valueAfterKeyword restricts extraction to the text after the keyword.
	valueAfterKeyword bool
	get               func(s *domain.Session) string
	set               func(s *domain.Session, v string)
}

var correctables = []correctable{
	{
		state:    domain.StateZipCode,
		field:    "ZIP code",
		keywords: []string{"zip", "postal"},
		extract:  validate.ZipCode,
		get:      func(s *domain.Session) string { return s.ZipCode },
		set:      func(s *domain.Session, v string) { s.ZipCode = v },
	},
	{
		state:    domain.StateEmail,
		field:    "email address",
		keywords: []string{"email", "e-mail"},
		extract:  validate.Email,
		get:      func(s *domain.Session) string { return s.Email },
		set:      func(s *domain.Session, v string) { s.Email = v },
	},
	{
		state:             domain.StateFullName,
		field:             "full name",
		keywords:          []string{"name"},
		extract:           validate.FullName,
		valueAfterKeyword: true,
		get:               func(s *domain.Session) string { return s.FullName },
		set:               func(s *domain.Session, v string) { s.FullName = v },
	},
}

// connectors are stripped between a field keyword and the corrected value.
var connectors = []string{"should be", "is actually", "is", "to", "was", "as", ":", "-"}

// Correction is an accepted revision of an earlier answer.
type Correction struct {
	Field string
	Value string
}

// applyCorrection updates an already collected scalar field when msg reads
// as a correction of it. The session state is left unchanged.
func applyCorrection(s *domain.Session, msg string) (Correction, bool) {
	lower := strings.ToLower(msg)
	if !containsAny(lower, correctionCues) {
		return Correction{}, false
	}
	for _, c := range correctables {
		if c.state == s.State || c.get(s) == "" {
			continue
		}
		idx := lastKeyword(lower, c.keywords)
		if idx < 0 || idx > len(msg) {
			continue
		}
		raw := msg
		if c.valueAfterKeyword {
			raw = trimConnectors(msg[idx:])
		}
		v, err := c.extract.Extract(raw)
		if err != nil || v.Text == c.get(s) {
			continue
		}
		c.set(s, v.Text)
		return Correction{Field: c.field, Value: v.Text}, true
	}
	return Correction{}, false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// lastKeyword returns the index just past the last keyword occurrence, or -1.
func lastKeyword(lower string, keywords []string) int {
	best := -1
	for _, k := range keywords {
		if i := strings.LastIndex(lower, k); i >= 0 && i+len(k) > best {
			best = i + len(k)
		}
	}
	return best
}

func trimConnectors(s string) string {
	s = strings.TrimSpace(s)
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(s)
		for _, c := range connectors {
			if strings.HasPrefix(lower, c+" ") || (len(c) == 1 && strings.HasPrefix(lower, c)) {
				s = strings.TrimSpace(s[len(c):])
				changed = true
				break
			}
		}
	}
	return s
}
