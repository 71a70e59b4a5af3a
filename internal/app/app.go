// Package app assembles the coldstart pipeline from a loaded configuration.
// The CLI, the HTTP API and the MCP server all run on one App.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/coldstart/internal/chunker"
	"github.com/dshills/coldstart/internal/config"
	"github.com/dshills/coldstart/internal/embedder"
	"github.com/dshills/coldstart/internal/indexer"
	"github.com/dshills/coldstart/internal/searcher"
	"github.com/dshills/coldstart/internal/storage"
)

// Version is set at build time with -ldflags
var Version = "0.1.0-dev"

// App owns the long-lived components. Indexer and Searcher share one
// embedding cache, so vectors computed at index time serve later queries.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *storage.SQLiteStore
	Model    embedder.Model
	Cache    *embedder.Cache
	Chunker  *chunker.Chunker
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
}

// New opens the store and builds every component. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ch, err := chunker.New(cfg.ChunkerConfig(), chunker.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	model, err := embedder.New(cfg.EmbedderConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	store, err := storage.NewSQLiteStore(ctx, cfg.StorePath)
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Model:   model,
		Cache:   embedder.NewCache(model, cfg.EmbeddingCacheSize),
		Chunker: ch,
	}

	a.Searcher = searcher.New(store, a.Cache, searcher.WithEncodeOptions(cfg.EncodeOptions()))
	a.Indexer = indexer.New(ch, a.Cache, store,
		indexer.WithLogger(logger),
		indexer.WithWorkers(cfg.IndexWorkers),
		indexer.WithEncodeOptions(cfg.EncodeOptions()),
		indexer.OnIndexed(a.Searcher.Invalidate),
	)

	logger.Debug("pipeline ready",
		"store", cfg.StorePath,
		"driver", storage.DriverName,
		"model", model.Name(),
		"dimension", model.Dimension(),
		"max_tokens", cfg.MaxTokens,
		"overlap", cfg.ChunkOverlap)

	return a, nil
}

// DiscoverOptions returns discovery settings carrying the configured
// ignore patterns. No extensions means every extension the chunker knows.
func (a *App) DiscoverOptions(recursive bool, extensions []string) indexer.DiscoverOptions {
	if len(extensions) == 0 {
		extensions = chunker.KnownExtensions()
	}
	return indexer.DiscoverOptions{
		Recursive:      recursive,
		Extensions:     extensions,
		IgnorePatterns: a.Config.IgnorePatterns,
		Logger:         a.Logger,
	}
}

// Close releases the store and the embedding model
func (a *App) Close() error {
	return errors.Join(a.Store.Close(), a.Model.Close())
}
