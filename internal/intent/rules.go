package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/vntext"
)

// brandAliases maps query substrings to canonical brand names. Order matters:
// the first alias found in the query wins.
var brandAliases = []struct {
	alias string
	brand string
}{
	{"iphone", "Apple"},
	{"apple", "Apple"},
	{"samsung", "Samsung"},
	{"galaxy", "Samsung"},
	{"oppo", "Oppo"},
	{"xiaomi", "Xiaomi"},
	{"redmi", "Xiaomi"},
	{"vivo", "Vivo"},
}

// Category nouns, diacritic-folded. Accessory nouns are checked first: a
// query like "ốp lưng điện thoại" is an accessory search.
var accessoryNouns = []string{
	"op lung", "sac", "cap", "tai nghe", "cuong luc", "day deo", "loa",
	"case", "charger", "cable", "earphone", "speaker",
}

var phoneNouns = []string{"dien thoai", "smartphone", "phone", "may"}

// priceRe matches a bound marker, an amount, and a currency unit, on folded
// lower-case text: "duoi 5 trieu", "tren 2 cu", "under 10 million".
var priceRe = regexp.MustCompile(`(duoi|under|below|tren|over|above)\s*(\d+)\s*(trieu|cu|million|tram)`)

// stopTokens are removed (folded comparison) before the residual text becomes
// the keyword: brand/category/price markers and filler words.
var stopTokens = buildStopTokens()

func buildStopTokens() map[string]struct{} {
	words := []string{
		// price markers and units
		"duoi", "tren", "under", "below", "over", "above", "trieu", "tram", "cu", "million",
		// category noun fragments
		"dien", "thoai", "may", "smartphone", "phone", "op", "lung", "sac", "cap",
		"tai", "nghe", "cuong", "luc", "day", "deo", "loa",
		"case", "charger", "cable", "earphone", "speaker",
		// filler
		"tim", "mua", "can", "gia", "khoang", "tam", "nhat", "re", "dat",
		"va", "co", "cho", "toi", "em", "minh",
		"find", "me", "a", "the", "for", "cheap", "cheapest",
	}
	m := make(map[string]struct{}, len(words)+len(brandAliases))
	for _, w := range words {
		m[w] = struct{}{}
	}
	for _, b := range brandAliases {
		m[b.alias] = struct{}{}
	}
	return m
}

// ExtractLocal parses the query with keyword tables and regexes only: no
// I/O, no failure modes. It is the fallback when the remote interpreter is
// skipped or unavailable, and produces the same Intent shape.
func ExtractLocal(text string) Intent {
	lower := strings.ToLower(text)
	folded := vntext.Fold(lower)

	var out Intent

	for _, b := range brandAliases {
		if strings.Contains(folded, b.alias) {
			out.Brand = b.brand
			break
		}
	}

	for _, noun := range accessoryNouns {
		if strings.Contains(folded, noun) {
			out.Category = catalog.CategoryAccessory
			break
		}
	}
	if out.Category == "" {
		for _, noun := range phoneNouns {
			if containsToken(folded, noun) {
				out.Category = catalog.CategoryPhone
				break
			}
		}
	}

	for _, m := range priceRe.FindAllStringSubmatch(folded, -1) {
		n, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		amount := n * unitMagnitude(m[3])
		switch m[1] {
		case "duoi", "under", "below":
			out.MaxPrice = &amount
		default:
			out.MinPrice = &amount
		}
	}

	if kw := residualKeyword(lower); kw != "" {
		out.Keyword = kw
	}

	return out
}

func unitMagnitude(unit string) int64 {
	if unit == "tram" {
		return 100_000
	}
	return 1_000_000
}

// containsToken reports whether needle appears in haystack on token
// boundaries, so the phone noun "may" does not fire inside "maybe".
func containsToken(haystack, needle string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		beforeOK := start == 0 || haystack[start-1] == ' '
		afterOK := end == len(haystack) || haystack[end] == ' '
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

// residualKeyword strips stop words and numbers from the query; whatever
// remains is the search keyword, with original diacritics preserved.
func residualKeyword(lower string) string {
	var kept []string
	for _, tok := range strings.Fields(lower) {
		folded := vntext.Fold(tok)
		if _, stop := stopTokens[folded]; stop {
			continue
		}
		if isNumeric(folded) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
