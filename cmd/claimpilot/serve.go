package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clarivue/claimpilot/internal/claim"
	"github.com/clarivue/claimpilot/internal/config"
	"github.com/clarivue/claimpilot/internal/engine"
	"github.com/clarivue/claimpilot/internal/extract"
	"github.com/clarivue/claimpilot/internal/keywords"
	"github.com/clarivue/claimpilot/internal/match"
	"github.com/clarivue/claimpilot/internal/server"
	"github.com/clarivue/claimpilot/internal/service"
	"github.com/clarivue/claimpilot/internal/storage"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP turn endpoint",
		Long: `Start the conversational claim assessment server.

Turns are posted as multipart forms to /api/chat with an optional document
upload; the reply tells the client what input the next turn expects.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.AIAPIKey == "" {
		return fmt.Errorf("no AI API key configured (set ai.api_key or the provider environment variable)")
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	catalog := keywords.NewCatalog()
	if cfg.KeywordsDir != "" {
		catalog, err = keywords.Load(cfg.KeywordsDir)
		if err != nil {
			return fmt.Errorf("failed to load keyword catalog: %w", err)
		}
	}

	ai, err := extract.NewClient(extract.ClientConfig{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIAPIKey,
		Model:    cfg.AIModel,
		Timeout:  cfg.AITimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create AI client: %w", err)
	}

	logger := slog.Default()
	extractor := extract.NewFieldExtractor(ai, catalog, logger)

	sources := make([]service.PriceSource, 0, len(cfg.MatcherSources))
	for _, name := range cfg.MatcherSources {
		sources = append(sources, match.NewStorageSource(name, store))
	}
	matcher := match.New(match.Config{Threshold: cfg.MatcherThreshold}, sources, ai, logger)

	calculator := claim.New(matcher, claim.Config{CategoryMatchThreshold: cfg.MatcherThreshold}, logger)
	eng := engine.New(store, extractor, matcher, calculator, logger)
	srv := server.New(eng, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.ServerAddr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
