// Package keyword implements the literal-text fallback for product search.
// It runs when semantic retrieval finds nothing, and matches query tokens
// against product names and descriptions with diacritics folded, so "sac"
// finds "sạc" and vice versa.
package keyword

import (
	"context"
	"strings"

	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/vntext"
)

// Lister is the catalog read operation the matcher needs.
type Lister interface {
	Filter(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
}

// Matcher matches keyword tokens against catalog products in two tiers:
// first every token must appear in the product name, then, if that finds
// nothing, any token appearing in the name or description is enough.
type Matcher struct {
	store Lister
}

// New creates a Matcher backed by the given catalog reader.
func New(store Lister) *Matcher {
	return &Matcher{store: store}
}

// stopwords are filler tokens (folded) that carry no product signal.
var stopwords = map[string]struct{}{
	"cho": {}, "va": {}, "gia": {}, "tim": {}, "mua": {}, "can": {},
	"cua": {}, "la": {}, "den": {}, "nhat": {}, "re": {}, "dat": {},
	"the": {}, "for": {}, "an": {}, "me": {}, "find": {},
}

// Tokenize splits the keyword into folded lower-case tokens, dropping
// stopwords and single-character fragments that would match everything.
func Tokenize(keyword string) []string {
	var toks []string
	for _, f := range strings.Fields(vntext.Fold(strings.ToLower(keyword))) {
		if len(f) <= 1 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		toks = append(toks, f)
	}
	return toks
}

// Match returns products matching the keyword within the base filter.
// Candidates come from the catalog with base applied; token matching happens
// in memory because SQL LIKE cannot fold Vietnamese diacritics.
//
// Tier 1 requires every token in the product name. Tier 2 relaxes to any
// token in the name or description, and only runs when tier 1 is empty.
func (m *Matcher) Match(ctx context.Context, keyword string, base catalog.Filter) ([]catalog.Product, error) {
	tokens := Tokenize(keyword)
	if len(tokens) == 0 {
		return nil, nil
	}

	candidates, err := m.store.Filter(ctx, base)
	if err != nil {
		return nil, err
	}

	var strict []catalog.Product
	var loose []catalog.Product
	for _, p := range candidates {
		name := vntext.Fold(strings.ToLower(p.Name))
		desc := vntext.Fold(strings.ToLower(p.Description))
		if containsAll(name, tokens) {
			strict = append(strict, p)
		}
		if containsAny(name+" "+desc, tokens) {
			loose = append(loose, p)
		}
	}

	if len(strict) > 0 {
		return strict, nil
	}
	return loose, nil
}

func containsAll(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}

func containsAny(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}
