// Package rag answers questions from the documents stored in a collection:
// embed the query, retrieve the nearest chunks, and ask the generator to answer
// from them.
package rag

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/embedding"
	"github.com/bull/semantic-search/internal/generator"
	"github.com/bull/semantic-search/internal/storage"
)

// MissingCollectionMessage is returned in place of a generated answer when the
// target collection does not exist.
const MissingCollectionMessage = "Collection not found. Please create and populate the collection first."

// DefaultTopK is used when neither the caller nor the configuration set K.
const DefaultTopK = 5

// ErrServiceUnavailable wraps any embedding, vector store, or generator failure.
var ErrServiceUnavailable = errors.New("service unavailable")

// Answer is the result of one retrieval-augmented query.
type Answer struct {
	Query      string
	Collection string
	Results    []*storage.ScoredChunk // Ordered by non-increasing score, at most K
	Response   string
	// CollectionMissing is set when Response is MissingCollectionMessage.
	CollectionMissing bool
}

// Pipeline composes the embedder, vector store, and generator.
type Pipeline struct {
	store     storage.VectorStore
	embedder  embedding.TextEmbedder
	generator generator.Generator
	topK      int
	logger    *zap.Logger
}

// NewPipeline creates a pipeline. topK is the default K for callers passing k <= 0.
func NewPipeline(store storage.VectorStore, embedder embedding.TextEmbedder, gen generator.Generator, topK int, logger *zap.Logger) *Pipeline {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		generator: gen,
		topK:      topK,
		logger:    logger,
	}
}

// TopK returns the default K.
func (p *Pipeline) TopK() int { return p.topK }

// Answer retrieves the k chunks most similar to query and generates an answer
// grounded in them. A missing collection is not an error: the answer carries no
// results and MissingCollectionMessage. Adapter failures return ErrServiceUnavailable.
func (p *Pipeline) Answer(ctx context.Context, query, collection string, k int) (*Answer, error) {
	answer := &Answer{Query: query, Collection: collection, Results: []*storage.ScoredChunk{}}

	hits, ok, err := p.retrieve(ctx, query, collection, k)
	if err != nil {
		return nil, err
	}
	if !ok {
		answer.Response = MissingCollectionMessage
		answer.CollectionMissing = true
		return answer, nil
	}
	answer.Results = hits

	response, err := p.generator.Generate(ctx, BuildPrompt(BuildContext(hits), query))
	if err != nil {
		return nil, fmt.Errorf("%w: generate answer: %w", ErrServiceUnavailable, err)
	}
	answer.Response = response

	p.logger.Debug("answered query",
		zap.String("collection", collection),
		zap.Int("hits", len(hits)),
		zap.String("generator", p.generator.Name()))
	return answer, nil
}

// Chat answers message like Answer, with the prior conversation included in the prompt.
func (p *Pipeline) Chat(ctx context.Context, collection string, history []Turn, message string) (*Answer, error) {
	answer := &Answer{Query: message, Collection: collection, Results: []*storage.ScoredChunk{}}

	hits, ok, err := p.retrieve(ctx, message, collection, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		answer.Response = MissingCollectionMessage
		answer.CollectionMissing = true
		return answer, nil
	}
	answer.Results = hits

	response, err := p.generator.Generate(ctx, BuildChatPrompt(BuildContext(hits), history, message))
	if err != nil {
		return nil, fmt.Errorf("%w: generate reply: %w", ErrServiceUnavailable, err)
	}
	answer.Response = response
	return answer, nil
}

// retrieve returns the top-k hits. ok is false when the collection does not exist.
func (p *Pipeline) retrieve(ctx context.Context, query, collection string, k int) ([]*storage.ScoredChunk, bool, error) {
	if k <= 0 {
		k = p.topK
	}

	exists, err := p.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, false, fmt.Errorf("%w: check collection: %w", ErrServiceUnavailable, err)
	}
	if !exists {
		p.logger.Info("query against missing collection", zap.String("collection", collection))
		return nil, false, nil
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("%w: embed query: %w", ErrServiceUnavailable, err)
	}

	hits, err := p.store.SearchChunks(ctx, collection, vec, k)
	if err != nil {
		// Deleted between the existence check and the search.
		if errors.Is(err, storage.ErrCollectionNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: search: %w", ErrServiceUnavailable, err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, true, nil
}
