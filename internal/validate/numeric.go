package validate

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	numberPattern = regexp.MustCompile(`(-\s*)?(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?(\s*k\b)?`)
	wordPattern   = regexp.MustCompile(`\b(zero|none|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
)

var numberWords = map[string]int{
	"zero": 0, "none": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// Numeric extracts a non-negative integer from free text. It understands
// thousands separators ("12,000"), a k suffix ("12k") and small number
// words ("five"). When a reply holds several numbers, the one followed by
// a unit word wins, then the first written in digits.
type Numeric struct {
	Field string
	Min   int
	Max   int
	// Unit is used in re-prompts, e.g. "days per week".
	Unit string
	// UnitWords are prefixes of the words that may follow the number.
	UnitWords []string
}

// Extract implements Extractor.
func (n Numeric) Extract(raw string) (Value, error) {
	nums := numbersIn(strings.ToLower(raw))
	if len(nums) == 0 {
		return Value{}, invalid(n.Field, "please answer with a number of %s", n.Unit)
	}
	num := nums[0]
	for _, c := range nums {
		if c.digits {
			num = c
			break
		}
	}
	for _, c := range nums {
		if n.unitFollows(c.rest) {
			num = c
			break
		}
	}
	switch {
	case num.negative:
		return Value{}, invalid(n.Field, "the number can't be negative")
	case !num.ok:
		return Value{}, invalid(n.Field, "please answer with a number of %s", n.Unit)
	case num.value < n.Min || num.value > n.Max:
		return Value{}, invalid(n.Field, "the number of %s should be between %d and %d", n.Unit, n.Min, n.Max)
	}
	return Value{Int: num.value}, nil
}

// unitFollows reports whether one of the next two words is a unit word.
func (n Numeric) unitFollows(rest string) bool {
	next := words(rest)
	if len(next) > 2 {
		next = next[:2]
	}
	for _, w := range next {
		for _, u := range n.UnitWords {
			if strings.HasPrefix(w, u) {
				return true
			}
		}
	}
	return false
}

type number struct {
	value    int
	ok       bool
	negative bool
	digits   bool
	start    int
	// rest is the text after the number.
	rest string
}

// numbersIn returns every number in lower, in order of appearance.
func numbersIn(lower string) []number {
	var out []number
	for _, m := range numberPattern.FindAllStringSubmatchIndex(lower, -1) {
		num := number{digits: true, start: m[0], rest: lower[m[1]:]}
		// A dash right after a word or digit is a range ("5-7"), not a sign.
		if m[2] >= 0 && (m[2] == 0 || !isAlnum(lower[m[2]-1])) {
			num.negative = true
			out = append(out, num)
			continue
		}
		digits := strings.ReplaceAll(lower[m[4]:m[5]], ",", "")
		if m[6] >= 0 {
			digits += lower[m[6]:m[7]]
		}
		f, err := strconv.ParseFloat(digits, 64)
		if err == nil {
			if m[8] >= 0 {
				f *= 1000
			}
			if f <= math.MaxInt32 {
				num.value, num.ok = int(math.Round(f)), true
			}
		}
		out = append(out, num)
	}
	for _, m := range wordPattern.FindAllStringSubmatchIndex(lower, -1) {
		out = append(out, number{
			value: numberWords[lower[m[2]:m[3]]],
			ok:    true,
			start: m[0],
			rest:  lower[m[1]:],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z'
}

// Numeric fields collected per vehicle.
var (
	CommuteDays   = Numeric{Field: "commute days", Min: 0, Max: 7, Unit: "days per week", UnitWords: []string{"day"}}
	CommuteMiles  = Numeric{Field: "one-way commute miles", Min: 0, Max: 1000, Unit: "one-way miles", UnitWords: []string{"mile"}}
	AnnualMileage = Numeric{Field: "annual mileage", Min: 0, Max: 500000, Unit: "miles per year", UnitWords: []string{"mile"}}
)
