// Package vntext normalizes Vietnamese text for matching: customers type
// queries with or without diacritics ("ốp lưng" vs "op lung"), and both must
// hit the same products.
package vntext

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold removes diacritical marks and maps đ/Đ to d/D. Case is preserved;
// callers lower-case separately when they need case-insensitive matching.
func Fold(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	// đ is a base letter, not a combining mark, so NFD leaves it alone.
	return strings.Map(func(r rune) rune {
		switch r {
		case 'đ':
			return 'd'
		case 'Đ':
			return 'D'
		}
		return r
	}, out)
}
