// Package app builds docchat's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/docchat/internal/chat"
	"github.com/bull/docchat/internal/chunker"
	"github.com/bull/docchat/internal/config"
	"github.com/bull/docchat/internal/embedding"
	"github.com/bull/docchat/internal/generation"
	ghclient "github.com/bull/docchat/internal/github"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/lease"
	"github.com/bull/docchat/internal/metrics"
	"github.com/bull/docchat/internal/model"
	"github.com/bull/docchat/internal/persistence"
	"github.com/bull/docchat/internal/rag"
	"github.com/bull/docchat/internal/storage"
)

// Embedder covers both document and query embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is everything the application does with chunks.
type ChunkStore interface {
	Insert(ctx context.Context, chunks ...model.Chunk) error
	Search(ctx context.Context, vector []float32, ownerID string, threshold float64, topK int) ([]storage.ScoredChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	CountByDocument(ctx context.Context, documentID string) (int, error)
	Health(ctx context.Context) error
}

// Option overrides a component, mostly for tests and offline runs.
type Option func(*options)

type options struct {
	embedder  Embedder
	generator chat.Generator
}

// WithEmbedder replaces the OpenAI embedder.
func WithEmbedder(e Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithGenerator replaces the OpenAI generator.
func WithGenerator(g chat.Generator) Option {
	return func(o *options) { o.generator = g }
}

// App holds the wired components.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Store       *persistence.Store
	Chunks      ChunkStore
	Embedder    Embedder
	Files       *ingest.FileLoader
	Pipeline    *ingest.Pipeline
	Retriever   *rag.Retriever
	Coordinator *chat.Coordinator
	Importer    *ghclient.Importer

	closers []func() error
}

// New connects to every backing service and wires the components. Close
// releases what New opened, also after a failed New.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Store, err = persistence.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	if err := a.openChunkStore(ctx); err != nil {
		return nil, err
	}

	embedder, generator := o.embedder, o.generator
	if embedder == nil || generator == nil {
		client, err := embedding.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		if embedder == nil {
			embedder = embedding.NewEmbedder(client,
				embedding.WithModel(cfg.OpenAI.EmbeddingModel),
				embedding.WithDimension(cfg.OpenAI.EmbeddingDimension),
			)
		}
		if generator == nil {
			generator = generation.NewGenerator(client.Client(),
				generation.WithModel(cfg.OpenAI.ChatModel),
				generation.WithMaxTokens(cfg.OpenAI.MaxTokens),
				generation.WithTemperature(cfg.OpenAI.Temperature),
				generation.WithLogger(logger),
			)
		}
	}

	a.Embedder = embedder

	locker, err := a.openLocker(ctx)
	if err != nil {
		return nil, err
	}

	gh, err := ghclient.NewClient(cfg.GitHub.Token)
	if err != nil {
		return nil, fmt.Errorf("create github client: %w", err)
	}
	fetcher := ghclient.NewFetcher(gh)

	a.Files = ingest.NewFileLoader(cfg.Server.UploadDir, cfg.Server.MaxUploadBytes)
	loaders := ingest.NewMux()
	loaders.Handle("file", a.Files)
	loaders.Handle(ghclient.Scheme, fetcher)

	a.Pipeline = ingest.NewPipeline(
		a.Store,
		a.Chunks,
		loaders,
		chunker.New(
			chunker.WithChunkSize(cfg.Chunking.Size),
			chunker.WithOverlap(cfg.Chunking.Overlap),
		),
		embedder,
		locker,
		a.Metrics,
		logger.With("component", "ingest"),
		ingest.Options{
			BatchSize:      cfg.Ingest.BatchSize,
			Concurrency:    cfg.Ingest.Concurrency,
			DocConcurrency: cfg.Ingest.DocConcurrency,
			LeaseTTL:       cfg.Ingest.LeaseTTL,
		},
	)
	a.Importer = ghclient.NewImporter(fetcher, a.Pipeline, logger.With("component", "github"))

	a.Retriever = rag.NewRetriever(a.Store, a.Chunks, embedder,
		rag.WithThreshold(cfg.Retrieval.Threshold),
		rag.WithTopK(cfg.Retrieval.TopK),
		rag.WithMetrics(a.Metrics),
		rag.WithLogger(logger.With("component", "rag")),
	)
	a.Coordinator = chat.NewCoordinator(a.Store, a.Retriever, generator, a.Metrics, logger.With("component", "chat"))

	return a, nil
}

func (a *App) openChunkStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		a.Logger.Warn("Using in-memory chunk store; chunks are lost on exit")
		a.Chunks = storage.NewMemoryStore(cfg.OpenAI.EmbeddingDimension)
		return nil
	case config.BackendQdrant:
		store, err := storage.NewQdrantStore(ctx, storage.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
			Dimension:  cfg.OpenAI.EmbeddingDimension,
		})
		if err != nil {
			return fmt.Errorf("connect to qdrant at %s:%d: %w", cfg.Qdrant.Host, cfg.Qdrant.Port, err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
		a.Chunks = store
		return nil
	}
	return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// openLocker returns a Redis-backed locker when Redis is configured, and nil
// otherwise so the pipeline falls back to an in-process one.
func (a *App) openLocker(ctx context.Context) (lease.Locker, error) {
	if a.Config.Redis.Addr == "" {
		return nil, nil
	}
	client, err := lease.Connect(ctx, a.Config.Redis.Addr, a.Config.Redis.Password, a.Config.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", a.Config.Redis.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	return lease.NewRedisLocker(client, "docchat:lease:"), nil
}

// Health checks every backing service and returns one result per service.
func (a *App) Health(ctx context.Context) map[string]error {
	return map[string]error{
		"database": a.Store.Ping(ctx),
		"chunks":   a.Chunks.Health(ctx),
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
