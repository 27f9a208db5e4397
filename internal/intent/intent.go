// Package intent turns a free-text shopping query into structured filter
// criteria. Two extractors produce the same Intent shape: a remote
// interpreter backed by the generative service (best-effort, cached) and a
// rule-based extractor that always succeeds and serves as the safety net.
package intent

import (
	"strings"

	"github.com/thanhph/mobistore/internal/catalog"
)

// Sort is the requested result ordering. The empty value means catalog
// insertion order, most recent first.
type Sort string

const (
	SortNone      Sort = ""
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
)

// ParseSort maps a raw string to a known Sort, or SortNone if unknown.
func ParseSort(s string) Sort {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	}
	return SortNone
}

// Intent holds the structured criteria extracted from one query. It is
// produced fresh per query and never persisted. Keyword is a translated
// concept ("pin" for battery life) rather than the literal slang the
// customer typed, at least when the remote interpreter produced it.
type Intent struct {
	Brand    string
	Category catalog.Category
	Keyword  string
	MinPrice *int64 // inclusive, VND
	MaxPrice *int64 // inclusive, VND
	Sort     Sort
}
