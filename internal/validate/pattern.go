package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	zipPattern   = regexp.MustCompile(`\b\d{5}\b`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`)
	yearPattern  = regexp.MustCompile(`\b\d{4}\b`)
	alnumToken   = regexp.MustCompile(`[A-Za-z0-9]+`)
	vinPattern   = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
)

// ZipCode expects a 5-digit token anywhere in the message.
var ZipCode Extractor = Func(func(raw string) (Value, error) {
	m := zipPattern.FindString(raw)
	if m == "" {
		return Value{}, invalid("zip code", "a ZIP code is 5 digits, like 10001")
	}
	return Value{Text: m}, nil
})

// Email expects exactly one address shaped like local@domain.tld.
var Email Extractor = Func(func(raw string) (Value, error) {
	found := emailPattern.FindAllString(raw, -1)
	seen := make(map[string]struct{}, len(found))
	var addr string
	for _, f := range found {
		f = strings.ToLower(strings.TrimRight(f, "."))
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		addr = f
	}
	switch len(seen) {
	case 0:
		return Value{}, invalid("email", "that doesn't look like an email address (name@example.com)")
	case 1:
		return Value{Text: addr}, nil
	default:
		return Value{}, invalid("email", "please share a single email address")
	}
})

// VIN expects one 17-character vehicle identification number.
var VIN Extractor = Func(func(raw string) (Value, error) {
	var forbidden bool
	for _, tok := range alnumToken.FindAllString(strings.ToUpper(raw), -1) {
		if len(tok) != 17 {
			continue
		}
		if vinPattern.MatchString(tok) {
			return Value{Text: tok}, nil
		}
		forbidden = true
	}
	if forbidden {
		return Value{}, invalid("VIN", "a VIN never contains the letters I, O or Q")
	}
	return Value{}, invalid("VIN", "a VIN is exactly 17 letters and numbers")
})

// Year returns an extractor accepting 4-digit years from 1900 to next year,
// relative to now.
func Year(now func() time.Time) Extractor {
	if now == nil {
		now = time.Now
	}
	return Func(func(raw string) (Value, error) {
		maxYear := now().Year() + 1
		m := yearPattern.FindString(raw)
		if m == "" {
			return Value{}, invalid("vehicle year", "please give the 4-digit model year, like 2019")
		}
		y, err := strconv.Atoi(m)
		if err != nil || y < 1900 || y > maxYear {
			return Value{}, invalid("vehicle year", "the year should be between 1900 and %d", maxYear)
		}
		return Value{Int: y}, nil
	})
}
