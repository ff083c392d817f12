package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingIntRe matches an optional sign followed by the integer digits at the
// start of the input. Anything after the digits (a fraction, an exponent,
// trailing junk) is ignored.
var leadingIntRe = regexp.MustCompile(`^[+-]?\d+`)

// ToInt converts a form value to an integer the way the coordinate fields
// always have: leading whitespace is skipped, the integer prefix is taken and
// the rest is dropped. "45.7" becomes 45 and "-12.9" becomes -12 (truncation
// toward zero, not rounding). Input with no integer prefix yields 0.
func ToInt(raw string) int64 {
	s := strings.TrimLeft(raw, " \t\r\n")
	m := leadingIntRe.FindString(s)
	if m == "" {
		return 0
	}

	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		// Only a range error is possible here.
		if strings.HasPrefix(m, "-") {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return n
}

// ParseCoordinate parses a latitude or longitude and checks it against the
// given absolute bound.
func ParseCoordinate(raw string, bound float64) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("coordinate is empty")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("coordinate %q is not a number", raw)
	}
	if f < -bound || f > bound {
		return 0, fmt.Errorf("coordinate %v outside [-%v, %v]", f, bound, bound)
	}
	return f, nil
}
