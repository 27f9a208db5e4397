// Package resolver turns a free-text shopping query into a ranked product
// list. Resolution runs an explicit ordered list of stages, each returning
// (results, matched); the first stage that matches wins and later stages
// never run. The degrade order is structured filter, then whole-query
// semantic retrieval, then literal keyword matching.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/intent"
)

// Semantic retrieval depths. Keyword lookups fan out wider than whole-query
// lookups because they get intersected with the structured filter afterwards.
const (
	keywordTopK    = 20
	wholeQueryTopK = 8
)

// MatchedBy names the stage that produced the result set.
type MatchedBy string

const (
	MatchedAll      MatchedBy = "all"      // empty query, full active catalog
	MatchedFilter   MatchedBy = "filter"   // structured filter from the intent
	MatchedSemantic MatchedBy = "semantic" // whole-query embedding similarity
	MatchedKeyword  MatchedBy = "keyword"  // literal token match
	MatchedNone     MatchedBy = "none"     // every stage came up empty
)

// IntentExtractor is the remote interpreter. A nil result means the remote
// path declined or failed and the rule-based extractor takes over.
type IntentExtractor interface {
	Extract(ctx context.Context, query string) *intent.Intent
}

// SemanticSearcher answers similarity queries with ranked product IDs.
type SemanticSearcher interface {
	Query(ctx context.Context, text string, topK int) ([]int64, error)
}

// KeywordMatcher runs the two-tier literal token match.
type KeywordMatcher interface {
	Match(ctx context.Context, keyword string, base catalog.Filter) ([]catalog.Product, error)
}

// CatalogReader is the catalog query operation resolution needs.
type CatalogReader interface {
	Filter(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
}

// Request is one search to resolve. ManualBrand and ManualSort come from UI
// controls rather than the query text; a manual brand makes the query
// unambiguous, so the remote interpreter and semantic tiers are skipped.
type Request struct {
	Query       string
	ManualBrand string
	ManualSort  intent.Sort
}

// Result is the outcome of a resolution. An empty Products slice is a valid
// outcome, not an error.
type Result struct {
	Products    []catalog.Product
	Explanation string
	MatchedBy   MatchedBy
}

// Resolver sequences the extraction and retrieval tiers. The remote and
// index dependencies may be nil when no AI credentials are configured; the
// pipeline then runs on the rule-based extractor and keyword matching alone.
type Resolver struct {
	catalog  CatalogReader
	remote   IntentExtractor
	index    SemanticSearcher
	keywords KeywordMatcher
}

// New assembles a Resolver. catalog and keywords are required; remote and
// index may be nil.
func New(catalog CatalogReader, remote IntentExtractor, index SemanticSearcher, keywords KeywordMatcher) *Resolver {
	return &Resolver{catalog: catalog, remote: remote, index: index, keywords: keywords}
}

// stage is one tier of the degrade ladder.
type stage struct {
	name MatchedBy
	run  func(ctx context.Context) ([]catalog.Product, bool, error)
}

// Resolve runs the pipeline for one request. Errors are returned only for
// catalog failures; AI and index failures degrade to the next stage.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	query := strings.TrimSpace(req.Query)

	if query == "" {
		products, err := r.catalog.Filter(ctx, catalog.Filter{Brand: req.ManualBrand})
		if err != nil {
			return Result{}, err
		}
		res := Result{Products: products, Explanation: "Tất cả sản phẩm đang bán.", MatchedBy: MatchedAll}
		sortProducts(res.Products, req.ManualSort)
		return res, nil
	}

	// A single token or a manual brand choice is unambiguous enough for a
	// plain filter; the remote interpreter and semantic tiers cost quota
	// and add nothing.
	plain := len(strings.Fields(query)) < 2 || req.ManualBrand != ""

	it := r.extractIntent(ctx, query, plain)
	if req.ManualBrand != "" {
		it.Brand = req.ManualBrand
	}
	base := baseFilter(it)

	stages := []stage{
		{MatchedFilter, func(ctx context.Context) ([]catalog.Product, bool, error) {
			return r.runFilterStage(ctx, it, base, plain)
		}},
		{MatchedSemantic, func(ctx context.Context) ([]catalog.Product, bool, error) {
			if plain {
				return nil, false, nil
			}
			return r.runSemanticStage(ctx, query, it)
		}},
		{MatchedKeyword, func(ctx context.Context) ([]catalog.Product, bool, error) {
			return r.runKeywordStage(ctx, query, base)
		}},
	}

	res := Result{MatchedBy: MatchedNone}
	for _, st := range stages {
		products, matched, err := st.run(ctx)
		if err != nil {
			return Result{}, err
		}
		if matched {
			res.Products = products
			res.MatchedBy = st.name
			break
		}
	}

	sortOrder := req.ManualSort
	if sortOrder == intent.SortNone {
		sortOrder = it.Sort
	}
	sortProducts(res.Products, sortOrder)
	res.Explanation = explain(it, res.MatchedBy)
	return res, nil
}

// extractIntent prefers the remote interpreter when the query is long enough
// and no manual filter made it unambiguous; the rule-based extractor is the
// always-available fallback.
func (r *Resolver) extractIntent(ctx context.Context, query string, plain bool) intent.Intent {
	if !plain && r.remote != nil {
		if remote := r.remote.Extract(ctx, query); remote != nil {
			return *remote
		}
	}
	return intent.ExtractLocal(query)
}

func baseFilter(it intent.Intent) catalog.Filter {
	return catalog.Filter{
		Brand:    it.Brand,
		Category: it.Category,
		MinPrice: it.MinPrice,
		MaxPrice: it.MaxPrice,
	}
}

// runFilterStage executes the structured filter. An intent keyword narrows
// the filter through semantic neighbor lookup when the index is available,
// with a literal substring match as the degraded form.
func (r *Resolver) runFilterStage(ctx context.Context, it intent.Intent, base catalog.Filter, plain bool) ([]catalog.Product, bool, error) {
	f := base
	if it.Keyword != "" {
		if ids := r.semanticIDs(ctx, it.Keyword, keywordTopK, plain); len(ids) > 0 {
			f.IDs = ids
		} else {
			f.KeywordLike = it.Keyword
		}
	}
	products, err := r.catalog.Filter(ctx, f)
	if err != nil {
		return nil, false, err
	}
	return products, len(products) > 0, nil
}

// runSemanticStage retrieves by whole-query similarity, keeping the category
// constraint from the intent when one was established.
func (r *Resolver) runSemanticStage(ctx context.Context, query string, it intent.Intent) ([]catalog.Product, bool, error) {
	ids := r.semanticIDs(ctx, query, wholeQueryTopK, false)
	if len(ids) == 0 {
		return nil, false, nil
	}
	products, err := r.catalog.Filter(ctx, catalog.Filter{IDs: ids, Category: it.Category})
	if err != nil {
		return nil, false, err
	}
	return products, len(products) > 0, nil
}

func (r *Resolver) runKeywordStage(ctx context.Context, query string, base catalog.Filter) ([]catalog.Product, bool, error) {
	products, err := r.keywords.Match(ctx, query, base)
	if err != nil {
		return nil, false, err
	}
	return products, len(products) > 0, nil
}

// semanticIDs wraps index lookup with the degrade policy: a missing or
// failing index behaves as an index with no matches.
func (r *Resolver) semanticIDs(ctx context.Context, text string, topK int, skip bool) []int64 {
	if skip || r.index == nil {
		return nil
	}
	ids, err := r.index.Query(ctx, text, topK)
	if err != nil {
		slog.Warn("semantic lookup failed, degrading to literal match", "error", err)
		return nil
	}
	return ids
}

// sortProducts orders by effective price when asked; the default order is
// whatever the stage produced, which for catalog queries is most recent
// first. The sort is stable so equal prices keep that order.
func sortProducts(products []catalog.Product, order intent.Sort) {
	switch order {
	case intent.SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].EffectivePrice() < products[j].EffectivePrice()
		})
	case intent.SortPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].EffectivePrice() > products[j].EffectivePrice()
		})
	}
}

// explain renders a short Vietnamese summary of how the results were found,
// shown to the shopper above the result grid.
func explain(it intent.Intent, matched MatchedBy) string {
	var parts []string
	if it.Brand != "" {
		parts = append(parts, "hãng "+it.Brand)
	}
	if it.Category != "" {
		parts = append(parts, "loại "+string(it.Category))
	}
	if it.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("giá từ %d", *it.MinPrice))
	}
	if it.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("giá đến %d", *it.MaxPrice))
	}
	if it.Keyword != "" {
		parts = append(parts, fmt.Sprintf("từ khóa %q", it.Keyword))
	}

	switch matched {
	case MatchedNone:
		return "Không tìm thấy sản phẩm phù hợp."
	case MatchedSemantic:
		return "Kết quả gần đúng theo mô tả sản phẩm."
	case MatchedKeyword:
		if len(parts) == 0 {
			return "Kết quả theo từ khóa."
		}
		return "Kết quả theo từ khóa: " + strings.Join(parts, ", ") + "."
	default:
		if len(parts) == 0 {
			return "Tất cả sản phẩm đang bán."
		}
		return "Lọc theo " + strings.Join(parts, ", ") + "."
	}
}
