// Package app builds the object graph shared by the binaries: store,
// engine, statement parser and importer, archive and ingestor.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/categorize"
	"github.com/dvloznov/budget-ledger/internal/config"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/budget-ledger/internal/infra/bigquery"
	"github.com/dvloznov/budget-ledger/internal/infra/memory"
	"github.com/dvloznov/budget-ledger/internal/ledger"
	"github.com/dvloznov/budget-ledger/internal/pipeline"
	"github.com/dvloznov/budget-ledger/internal/statement"
	"github.com/rs/zerolog"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Store    domain.Store
	Engine   *ledger.Engine
	Parser   *statement.Parser
	Importer *statement.Importer
	Ingestor *pipeline.Ingestor

	closers []func() error
}

// New wires the components selected by cfg. The memory backend keeps
// everything in process, archive included, so it needs no credentials.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}

	var archive pipeline.StorageService
	switch cfg.StoreBackend {
	case config.BackendMemory:
		a.Store = memory.NewStore()
		archive = memory.NewArchive()
		if cfg.Bucket == "" {
			cfg.Bucket = "memory"
		}
	case config.BackendBigQuery:
		store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.Dataset)
		if err != nil {
			return nil, fmt.Errorf("app.New: creating BigQuery store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
		archive = gcsuploader.NewGCSStorageService()
	default:
		return nil, fmt.Errorf("app.New: unknown store backend %q", cfg.StoreBackend)
	}

	picker, err := newPicker(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Engine = ledger.NewEngine(a.Store)
	a.Parser = statement.NewParser()
	a.Importer = statement.NewImporter(a.Store, a.Store, picker)
	a.Ingestor = pipeline.NewIngestor(a.Store, archive, a.Parser, a.Importer, cfg.Bucket)

	if cfg.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - statement uploads will be disabled")
	}
	log.Info().
		Str("store", cfg.StoreBackend).
		Str("categorizer", cfg.Categorizer).
		Msg("Application wired")

	return a, nil
}

func newPicker(ctx context.Context, cfg *config.Config) (statement.CategoryPicker, error) {
	switch cfg.Categorizer {
	case "", "first":
		return categorize.First{}, nil
	case "gemini":
		g, err := categorize.NewGemini(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("app.New: creating Gemini categorizer: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("app.New: unknown categorizer %q", cfg.Categorizer)
	}
}

// Close releases the store's clients.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
