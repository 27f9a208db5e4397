// Package api exposes the storefront over HTTP: search, chat, comparison,
// recommendations, and an authenticated admin surface for catalog writes
// that keeps the embedding index in sync.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/intent"
	"github.com/thanhph/mobistore/internal/resolver"
	"github.com/thanhph/mobistore/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Searcher resolves one search request.
type Searcher interface {
	Resolve(ctx context.Context, req resolver.Request) (resolver.Result, error)
}

// Chatter answers chat messages and product comparisons.
type Chatter interface {
	Answer(ctx context.Context, sessionID, message string) (answer, sid string, err error)
	Compare(ctx context.Context, a, b catalog.Product) string
}

// CatalogStore is the catalog surface the handlers need.
type CatalogStore interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
	Upsert(ctx context.Context, p *catalog.Product) error
	Delete(ctx context.Context, id int64) error
	Recommendations(ctx context.Context, p catalog.Product, limit int) ([]catalog.Product, error)
	Brands(ctx context.Context) ([]string, error)
}

// IndexSyncer mirrors catalog writes into the embedding index. May be nil
// when no embedding credentials are configured.
type IndexSyncer interface {
	Upsert(ctx context.Context, p catalog.Product) error
	Delete(ctx context.Context, productID int64) error
}

// Deps carries the wired components into the handler tree.
type Deps struct {
	Search     Searcher
	Chat       Chatter
	Catalog    CatalogStore
	Index      IndexSyncer
	AdminToken string
}

// recommendationLimit caps the accessory suggestions per product.
const recommendationLimit = 4

// NewHandler builds the full router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/search", handleSearch(deps))
	r.Get("/brands", handleBrands(deps))
	r.Post("/chat", handleChat(deps))
	r.Post("/compare", handleCompare(deps))
	r.Get("/products/{id}/recommendations", handleRecommendations(deps))

	r.Route("/admin", func(admin chi.Router) {
		if deps.AdminToken != "" {
			admin.Use(BearerAuth(deps.AdminToken))
		}
		admin.Post("/products", handleUpsertProduct(deps))
		admin.Delete("/products/{id}", handleDeleteProduct(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// SearchResponse is the JSON shape of GET /search.
type SearchResponse struct {
	Products    []catalog.Product `json:"products"`
	Explanation string            `json:"explanation"`
	MatchedBy   string            `json:"matched_by"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res, err := deps.Search.Resolve(r.Context(), resolver.Request{
			Query:       q.Get("q"),
			ManualBrand: q.Get("brand"),
			ManualSort:  intent.ParseSort(q.Get("sort")),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resolving search: %v", err)
			return
		}

		products := res.Products
		if products == nil {
			products = []catalog.Product{}
		}
		writeJSON(w, SearchResponse{
			Products:    products,
			Explanation: res.Explanation,
			MatchedBy:   string(res.MatchedBy),
		})
	}
}

// handleBrands lists the distinct brands of active products, feeding the
// storefront's manual brand filter.
func handleBrands(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		brands, err := deps.Catalog.Brands(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing brands: %v", err)
			return
		}
		if brands == nil {
			brands = []string{}
		}
		writeJSON(w, brands)
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		answer, sid, err := deps.Chat.Answer(r.Context(), req.SessionID, req.Message)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "answering chat: %v", err)
			return
		}
		writeJSON(w, chatResponse{Answer: answer, SessionID: sid})
	}
}

type compareRequest struct {
	ProductA int64 `json:"product_a"`
	ProductB int64 `json:"product_b"`
}

type compareResponse struct {
	Advice string `json:"advice"`
}

func handleCompare(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req compareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		a, err := deps.Catalog.Get(r.Context(), req.ProductA)
		if err != nil {
			productError(w, req.ProductA, err)
			return
		}
		b, err := deps.Catalog.Get(r.Context(), req.ProductB)
		if err != nil {
			productError(w, req.ProductB, err)
			return
		}

		writeJSON(w, compareResponse{Advice: deps.Chat.Compare(r.Context(), a, b)})
	}
}

func handleRecommendations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid product id")
			return
		}

		p, err := deps.Catalog.Get(r.Context(), id)
		if err != nil {
			productError(w, id, err)
			return
		}

		recs, err := deps.Catalog.Recommendations(r.Context(), p, recommendationLimit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading recommendations: %v", err)
			return
		}
		if recs == nil {
			recs = []catalog.Product{}
		}
		writeJSON(w, recs)
	}
}

func handleUpsertProduct(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var p catalog.Product
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if p.Name == "" || p.Brand == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name and brand are required")
			return
		}
		if catalog.ParseCategory(string(p.Category)) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "category must be phone or accessory")
			return
		}
		if p.Price < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "price must not be negative")
			return
		}

		if err := deps.Catalog.Upsert(r.Context(), &p); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving product: %v", err)
			return
		}
		syncIndex(deps, r, p)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(p)
	}
}

// syncIndex mirrors an upsert into the embedding index. Index failures are
// logged, not surfaced: the catalog write already succeeded and a reindex
// run repairs any gap.
func syncIndex(deps Deps, r *http.Request, p catalog.Product) {
	if deps.Index == nil {
		return
	}
	var err error
	if p.IsActive {
		err = deps.Index.Upsert(r.Context(), p)
	} else {
		err = deps.Index.Delete(r.Context(), p.ID)
	}
	if err != nil {
		slog.Warn("index sync failed", "product_id", p.ID, "error", err)
	}
}

func handleDeleteProduct(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid product id")
			return
		}

		if err := deps.Catalog.Delete(r.Context(), id); err != nil {
			productError(w, id, err)
			return
		}
		if deps.Index != nil {
			if err := deps.Index.Delete(r.Context(), id); err != nil {
				slog.Warn("index sync failed", "product_id", id, "error", err)
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func productError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "product %d not found", id)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "loading product %d: %v", id, err)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
