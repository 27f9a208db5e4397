package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/thanhph/mobistore/internal/aicache"
	"github.com/thanhph/mobistore/internal/catalog"
)

// Generator is the single text-completion operation the interpreter needs.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// Interpreter asks the generative service to extract a structured Intent.
// Responses are cached by query text, so repeated identical searches cost
// one remote call.
type Interpreter struct {
	gen   Generator
	cache *aicache.Cache
}

// NewInterpreter creates an Interpreter using the given generator and cache.
func NewInterpreter(gen Generator, cache *aicache.Cache) *Interpreter {
	return &Interpreter{gen: gen, cache: cache}
}

// Extract returns the interpreted Intent, or nil when the remote path is
// unavailable or produced garbage; the caller falls back to ExtractLocal.
// Single-word queries never reach the remote service: they are unambiguous
// enough for the keyword and semantic paths, and skipping them saves quota.
func (i *Interpreter) Extract(ctx context.Context, query string) *Intent {
	if len(strings.Fields(query)) < 2 {
		return nil
	}

	key := aicache.Key{Op: "search_intent", Args: []string{query}, Version: extractionLogicVersion}
	raw, err := i.cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
		res, err := i.gen.Generate(ctx, buildExtractionPrompt(query), searchIntentInstruction)
		if err != nil {
			return "", err
		}
		obj := extractJSONObject(res)
		if obj == "" {
			slog.Warn("intent extraction returned no JSON object", "response", res)
			return "", nil
		}
		// Validate before caching so malformed output is never stored.
		var probe wireIntent
		if err := json.Unmarshal([]byte(obj), &probe); err != nil {
			slog.Warn("intent extraction returned malformed JSON", "error", err, "response", res)
			return "", nil
		}
		return obj, nil
	})
	if err != nil {
		slog.Warn("remote intent extraction failed", "error", err)
		return nil
	}
	if raw == "" {
		return nil
	}

	var w wireIntent
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		slog.Warn("cached intent entry is malformed", "error", err)
		return nil
	}
	out := w.toIntent()
	return &out
}

// wireIntent is the untrusted JSON boundary. Every field is optional; the
// conversion to Intent discards anything that fails validation.
type wireIntent struct {
	Brand    *string `json:"brand"`
	Category *string `json:"category"`
	Keyword  *string `json:"keyword"`
	MinPrice *int64  `json:"min_price"`
	MaxPrice *int64  `json:"max_price"`
	Sort     *string `json:"sort"`
}

func (w wireIntent) toIntent() Intent {
	var out Intent
	if w.Brand != nil {
		out.Brand = strings.TrimSpace(*w.Brand)
	}
	if w.Category != nil {
		out.Category = catalog.ParseCategory(*w.Category)
	}
	if w.Keyword != nil {
		out.Keyword = strings.TrimSpace(*w.Keyword)
	}
	if w.MinPrice != nil && *w.MinPrice >= 0 {
		out.MinPrice = w.MinPrice
	}
	if w.MaxPrice != nil && *w.MaxPrice >= 0 {
		out.MaxPrice = w.MaxPrice
	}
	if w.Sort != nil {
		out.Sort = ParseSort(*w.Sort)
	}
	return out
}

// extractJSONObject strips code fences and returns the outermost {...} span,
// or "" when the text contains no object.
func extractJSONObject(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
