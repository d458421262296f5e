// Package ingest stores documents in a collection: split into chunks, embed,
// assign IDs, and upsert batch by batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/embedding"
	"github.com/bull/semantic-search/internal/storage"
)

// DefaultBatchSize is the number of chunks per upsert.
const DefaultBatchSize = 20

// ErrEmptyText is returned when there is nothing to store.
var ErrEmptyText = errors.New("no text to ingest")

// Metadata is attached to every chunk of one ingestion.
type Metadata struct {
	Category string
	Source   string // Filename, for uploaded documents
}

// Result describes one ingestion call. On a mid-way failure it covers the
// batches stored before the error.
type Result struct {
	Collection string
	Count      int
	IDs        []string
	Batches    int
	Duration   time.Duration
}

// Document is one input of IngestAll.
type Document struct {
	Source   string
	Category string
	Text     string
}

// FailedDoc is a document IngestAll could not store.
type FailedDoc struct {
	Source string
	Reason string
}

// BatchResult summarises IngestAll.
type BatchResult struct {
	TotalDocs      int
	SuccessfulDocs int
	TotalChunks    int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// Options tune chunking and batching. Zero values select the defaults.
type Options struct {
	ChunkSize int
	BatchSize int
}

// Pipeline orchestrates ingestion from raw text to stored points.
type Pipeline struct {
	store     storage.VectorStore
	embedder  embedding.TextEmbedder
	ids       IDAllocator
	chunkSize int
	batchSize int
	logger    *zap.Logger
}

// NewPipeline creates a new ingestion pipeline with the given components.
func NewPipeline(
	store storage.VectorStore,
	embedder embedding.TextEmbedder,
	ids IDAllocator,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if ids == nil {
		ids = UUIDAllocator{}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		ids:       ids,
		chunkSize: opts.ChunkSize,
		batchSize: opts.BatchSize,
		logger:    logger,
	}
}

// AddDocument stores text as a single chunk, without splitting.
func (p *Pipeline) AddDocument(ctx context.Context, collection, text, category string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return p.ingest(ctx, collection, []string{text}, Metadata{Category: category}, false)
}

// IngestText splits text into fixed-size windows and stores them.
func (p *Pipeline) IngestText(ctx context.Context, collection, text string, meta Metadata) (*Result, error) {
	chunks := SplitText(text, p.chunkSize)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}
	p.logger.Debug("split text",
		zap.String("source", meta.Source),
		zap.Int("chars", len([]rune(text))),
		zap.Int("chunks", len(chunks)))
	return p.IngestChunks(ctx, collection, chunks, meta)
}

// IngestChunks stores pre-split chunks in order, recording each one's position.
func (p *Pipeline) IngestChunks(ctx context.Context, collection string, chunks []string, meta Metadata) (*Result, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}
	return p.ingest(ctx, collection, chunks, meta, true)
}

// IngestAll ingests each document independently. A failing document is recorded
// and skipped; only a missing collection aborts the run.
func (p *Pipeline) IngestAll(ctx context.Context, collection string, docs []Document) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{TotalDocs: len(docs)}

	for _, doc := range docs {
		res, err := p.IngestText(ctx, collection, doc.Text, Metadata{Source: doc.Source, Category: doc.Category})
		if err != nil {
			if errors.Is(err, storage.ErrCollectionNotFound) {
				return nil, err
			}
			p.logger.Warn("Failed to ingest document", zap.String("source", doc.Source), zap.Error(err))
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Source: doc.Source, Reason: err.Error()})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += res.Count
	}

	result.Duration = time.Since(start)
	p.logger.Info("Ingestion complete",
		zap.String("collection", collection),
		zap.Int("successful", result.SuccessfulDocs),
		zap.Int("failed", len(result.FailedDocs)),
		zap.Int("chunks", result.TotalChunks),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, collection string, texts []string, meta Metadata, indexed bool) (*Result, error) {
	start := time.Now()

	exists, err := p.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, collection)
	}

	// IDs are assigned once for the whole call, so sequential IDs continue
	// across batches.
	ids, err := p.ids.Allocate(ctx, collection, len(texts))
	if err != nil {
		return nil, fmt.Errorf("assign ids: %w", err)
	}

	result := &Result{Collection: collection, IDs: make([]string, 0, len(texts))}
	for begin := 0; begin < len(texts); begin += p.batchSize {
		end := min(begin+p.batchSize, len(texts))

		vectors, err := p.embedder.GenerateEmbeddings(ctx, texts[begin:end])
		if err != nil {
			return result, fmt.Errorf("embed chunks %d-%d: %w", begin, end, err)
		}
		if len(vectors) != end-begin {
			return result, fmt.Errorf("embed chunks %d-%d: got %d vectors", begin, end, len(vectors))
		}

		batch := make([]*storage.Chunk, 0, end-begin)
		for i := begin; i < end; i++ {
			chunkIndex := -1
			if indexed {
				chunkIndex = i
			}
			batch = append(batch, &storage.Chunk{
				ID:         ids[i],
				Text:       texts[i],
				Category:   meta.Category,
				Source:     meta.Source,
				ChunkIndex: chunkIndex,
				Embedding:  vectors[i-begin],
			})
		}

		if err := p.store.UpsertChunks(ctx, collection, batch); err != nil {
			return result, fmt.Errorf("store chunks %d-%d: %w", begin, end, err)
		}
		result.Count += len(batch)
		result.IDs = append(result.IDs, ids[begin:end]...)
		result.Batches++
	}

	result.Duration = time.Since(start)
	p.logger.Info("Stored chunks",
		zap.String("collection", collection),
		zap.String("source", meta.Source),
		zap.Int("count", result.Count),
		zap.Int("batches", result.Batches))
	return result, nil
}
