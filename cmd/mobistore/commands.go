package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thanhph/mobistore/internal/aicache"
	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/config"
	"github.com/thanhph/mobistore/internal/gemini"
	"github.com/thanhph/mobistore/internal/semantic"
	"github.com/thanhph/mobistore/internal/storage"
)

// reindexConcurrency bounds parallel embedding calls so the provider's rate
// limit is not tripped during a bulk run.
const reindexConcurrency = 4

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the product embedding index from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReindex(cmd.Context())
	},
}

func runReindex(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	gem := gemini.New(gemini.Options{
		APIKey:          cfg.Gemini.APIKey,
		BaseURL:         cfg.Gemini.BaseURL,
		GenerateModel:   cfg.Gemini.GenerateModel,
		EmbedModel:      cfg.Gemini.EmbedModel,
		GenerateTimeout: cfg.Gemini.GenerateTimeout,
		EmbedTimeout:    cfg.Gemini.EmbedTimeout,
	})
	if !gem.Enabled() {
		return fmt.Errorf("reindex needs an embedding service; set GEMINI_API_KEY")
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	products := catalog.NewStore(store.DB())
	index := semantic.New(store.DB(), gem)

	embedded, stale, err := rebuildIndex(ctx, products, index)
	if err != nil {
		return err
	}
	if stale > 0 {
		printStep("Removed %d stale vectors", stale)
	}
	printSuccess("Index rebuilt: %d products", embedded)
	return nil
}

// rebuildIndex re-embeds every active product and drops vectors for products
// that are gone or deactivated. Returns how many products were embedded and
// how many stale vectors were removed.
func rebuildIndex(ctx context.Context, products *catalog.Store, index *semantic.Index) (embedded, stale int, err error) {
	active, err := products.ListActive(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing products: %w", err)
	}
	printStep("Embedding %d active products...", len(active))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexConcurrency)
	for _, p := range active {
		p := p
		g.Go(func() error {
			return index.Upsert(gctx, p)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("embedding products: %w", err)
	}

	activeIDs := make(map[int64]bool, len(active))
	for _, p := range active {
		activeIDs[p.ID] = true
	}
	indexed, err := index.IndexedIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing indexed products: %w", err)
	}
	for _, id := range indexed {
		if !activeIDs[id] {
			if err := index.Delete(ctx, id); err != nil {
				return 0, 0, fmt.Errorf("removing stale vector %d: %w", id, err)
			}
			stale++
		}
	}
	return len(active), stale, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mobistore system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.Gemini.APIKey != "" {
		printStatus("Gemini", "configured (%s / %s)", cfg.Gemini.GenerateModel, cfg.Gemini.EmbedModel)
	} else {
		printWarning("Gemini API key not set, AI tiers disabled")
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	products := catalog.NewStore(store.DB())
	active, err := products.ListActive(ctx)
	if err != nil {
		return err
	}
	printStatus("Active products", "%d", len(active))

	vectors, err := semantic.New(store.DB(), nil).Count(ctx)
	if err != nil {
		return err
	}
	printStatus("Indexed vectors", "%d", vectors)

	cached, err := aicache.New(store.DB()).Count(ctx)
	if err != nil {
		return err
	}
	printStatus("Cached AI responses", "%d", cached)

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
