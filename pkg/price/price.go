// Package price extracts whole-number prices from display text.
package price

import (
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Parse keeps only the decimal digits of text and reads them as a base-10 integer.
// Full-width digits count as digits. Separate digit groups are joined, so
// "100-200" yields 100200.
func Parse(text string) (int, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, width.Fold.String(text))

	if digits == "" {
		return 0, false
	}

	val, err := strconv.Atoi(digits)
	if err != nil {
		// overflow
		return 0, false
	}

	return val, true
}
