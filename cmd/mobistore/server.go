package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thanhph/mobistore/internal/aicache"
	"github.com/thanhph/mobistore/internal/api"
	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/chat"
	"github.com/thanhph/mobistore/internal/config"
	"github.com/thanhph/mobistore/internal/gemini"
	"github.com/thanhph/mobistore/internal/intent"
	"github.com/thanhph/mobistore/internal/keyword"
	"github.com/thanhph/mobistore/internal/resolver"
	"github.com/thanhph/mobistore/internal/semantic"
	"github.com/thanhph/mobistore/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mobistore server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "mobistore version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	products := catalog.NewStore(store.DB())
	cache := aicache.New(store.DB())
	matcher := keyword.New(products)

	// The AI tiers are optional: without an API key the pipeline runs on
	// rule-based extraction and keyword matching, and chat answers with
	// canned replies.
	gem := gemini.New(gemini.Options{
		APIKey:          cfg.Gemini.APIKey,
		BaseURL:         cfg.Gemini.BaseURL,
		GenerateModel:   cfg.Gemini.GenerateModel,
		EmbedModel:      cfg.Gemini.EmbedModel,
		GenerateTimeout: cfg.Gemini.GenerateTimeout,
		EmbedTimeout:    cfg.Gemini.EmbedTimeout,
	})

	var (
		remote      resolver.IntentExtractor
		searchIndex resolver.SemanticSearcher
		chatIndex   chat.SemanticSearcher
		syncIndex   api.IndexSyncer
		generator   chat.Generator
	)
	if gem.Enabled() {
		index := semantic.New(store.DB(), gem)
		remote = intent.NewInterpreter(gem, cache)
		searchIndex = index
		chatIndex = index
		syncIndex = index
		generator = gem
		slog.Info("AI tiers enabled", "model", cfg.Gemini.GenerateModel, "embed_model", cfg.Gemini.EmbedModel)
	} else {
		slog.Warn("no Gemini API key configured, running with rule-based and keyword tiers only")
	}

	search := resolver.New(products, remote, searchIndex, matcher)
	chatSvc := chat.NewService(generator, cache, products, chatIndex, chat.NewSessionStore())

	handler := api.NewHandler(api.Deps{
		Search:     search,
		Chat:       chatSvc,
		Catalog:    products,
		Index:      syncIndex,
		AdminToken: cfg.Server.AdminToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "mobistore listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
