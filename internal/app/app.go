// Package app builds the application's components from configuration.
// The server and the CLI share this wiring.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/chat"
	"github.com/bull/semantic-search/internal/config"
	"github.com/bull/semantic-search/internal/embedding"
	"github.com/bull/semantic-search/internal/generator"
	"github.com/bull/semantic-search/internal/ingest"
	"github.com/bull/semantic-search/internal/ingest/pdf"
	"github.com/bull/semantic-search/internal/rag"
	"github.com/bull/semantic-search/internal/storage"
	"github.com/bull/semantic-search/internal/storage/memory"
)

// StoreMemory selects the in-process vector store.
const StoreMemory = "memory"

// App holds every long-lived component. Build it once and pass it down.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     storage.VectorStore
	Embedder  embedding.TextEmbedder
	Generator generator.Generator
	RAG       *rag.Pipeline
	Ingest    *ingest.Pipeline
	PDF       *pdf.Extractor
	ChatStore *chat.Store
	Chat      *chat.Service
}

// New connects the vector store and builds the pipelines on top of it.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	client := embedding.NewClient(embedding.ClientConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Timeout: cfg.RequestTimeout(),
	})
	embedder := embedding.WithCache(
		embedding.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize),
		cfg.Embedding.CacheSize,
		cfg.EmbeddingCacheTTL(),
		logger.Named("embedding"),
	)

	gen, err := generator.New(generator.Config{
		Provider:    cfg.Generator.Provider,
		BaseURL:     cfg.Generator.BaseURL,
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
		Timeout:     time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create generator: %w", err)
	}

	ragPipeline := rag.NewPipeline(store, embedder, gen, cfg.RAG.TopK, logger.Named("rag"))
	ingester := ingest.NewPipeline(
		store,
		embedder,
		ingest.NewIDAllocator(cfg.Ingest.IDStrategy, store, cfg.Ingest.ScanLimit),
		ingest.Options{ChunkSize: cfg.Ingest.ChunkSize, BatchSize: cfg.Ingest.BatchSize},
		logger.Named("ingest"),
	)
	chatStore := chat.NewStore(store, embedder, chat.Options{
		Collection:        cfg.Chat.Collection,
		SessionCollection: cfg.Chat.SessionCollection,
		ScanLimit:         cfg.Chat.ScanLimit,
	}, logger.Named("chat"))

	logger.Info("components ready",
		zap.String("store", cfg.Qdrant.Store),
		zap.String("embedding_model", embedder.ModelName()),
		zap.Int("embedding_dimension", embedder.Dimension()),
		zap.String("generator", gen.Name()),
		zap.String("id_strategy", cfg.Ingest.IDStrategy))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Embedder:  embedder,
		Generator: gen,
		RAG:       ragPipeline,
		Ingest:    ingester,
		PDF:       pdf.New(cfg.Ingest.PDFTool),
		ChatStore: chatStore,
		Chat:      chat.NewService(ragPipeline, chatStore, logger.Named("chat")),
	}, nil
}

func newStore(cfg *config.Config) (storage.VectorStore, error) {
	if cfg.Qdrant.Store == StoreMemory {
		return memory.New(), nil
	}
	store, err := storage.NewQdrantStorage(storage.QdrantConfig{
		URL:     cfg.Qdrant.URL,
		APIKey:  cfg.Qdrant.APIKey,
		Timeout: time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	return store, nil
}

// WaitHealthy polls the vector store until it answers or maxWait elapses.
// Secrets are not checked at startup, so an unreachable store is logged, not fatal.
func (a *App) WaitHealthy(ctx context.Context, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = maxWait

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := a.Store.Health(ctx)
		if err != nil {
			a.Logger.Warn("vector store not ready", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// Close releases the vector store connection.
func (a *App) Close() error {
	return a.Store.Close()
}
