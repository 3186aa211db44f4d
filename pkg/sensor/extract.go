package sensor

import (
	"regexp"
	"strconv"
)

var decimalRe = regexp.MustCompile(`\d+(\.\d+)?`)

// ExtractDecimal returns the first decimal number found in text.
func ExtractDecimal(text string) (float64, bool) {
	m := decimalRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
