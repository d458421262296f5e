package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/semantic-search/internal/chat"
	"github.com/bull/semantic-search/internal/rag"
	"github.com/bull/semantic-search/internal/storage"
)

const (
	maxTopK             = 20
	defaultSessionLimit = 20
)

// makeSearchHandler creates the search_collection tool handler.
// Hits below MinScore are dropped after retrieval; the answer is generated from
// all retrieved hits.
func makeSearchHandler(pipeline *rag.Pipeline, defaultCollection string) func(
	context.Context, *mcp.CallToolRequest, SearchCollectionInput,
) (*mcp.CallToolResult, SearchCollectionOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchCollectionInput) (
		*mcp.CallToolResult, SearchCollectionOutput, error,
	) {
		collection := input.Collection
		if collection == "" {
			collection = defaultCollection
		}
		topK := min(input.TopK, maxTopK)

		answer, err := pipeline.Answer(ctx, input.Query, collection, topK)
		if err != nil {
			return nil, SearchCollectionOutput{}, fmt.Errorf("search failed: %w", err)
		}

		output := SearchCollectionOutput{
			Collection: collection,
			Results:    make([]SearchResult, 0, len(answer.Results)),
			Answer:     answer.Response,
		}
		if answer.CollectionMissing {
			output.Message = answer.Response
			return nil, output, nil
		}

		for _, hit := range answer.Results {
			if hit.Score < input.MinScore {
				continue
			}
			output.Results = append(output.Results, SearchResult{
				ID:       hit.ID,
				Score:    hit.Score,
				Text:     hit.Text,
				Category: hit.Category,
				Source:   hit.Source,
			})
		}
		if len(output.Results) == 0 {
			output.Message = "No matching chunks found. Try broader search terms."
		}
		return nil, output, nil
	}
}

// makeListCollectionsHandler creates the list_collections tool handler.
func makeListCollectionsHandler(store storage.VectorStore) func(
	context.Context, *mcp.CallToolRequest, ListCollectionsInput,
) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListCollectionsInput) (
		*mcp.CallToolResult, ListCollectionsOutput, error,
	) {
		names, err := store.ListCollections(ctx)
		if err != nil {
			return nil, ListCollectionsOutput{}, fmt.Errorf("qdrant_error: failed to list collections: %w", err)
		}

		collections := make([]CollectionSummary, 0, len(names))
		for _, name := range names {
			summary := CollectionSummary{Name: name}
			if info, err := store.GetCollectionInfo(ctx, name); err == nil {
				summary.PointsCount = info.PointsCount
				summary.VectorSize = info.VectorSize
			}
			collections = append(collections, summary)
		}

		return nil, ListCollectionsOutput{
			Collections: collections,
			Count:       len(collections),
		}, nil
	}
}

// makeListSessionsHandler creates the list_chat_sessions tool handler.
func makeListSessionsHandler(store *chat.Store) func(
	context.Context, *mcp.CallToolRequest, ListChatSessionsInput,
) (*mcp.CallToolResult, ListChatSessionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListChatSessionsInput) (
		*mcp.CallToolResult, ListChatSessionsOutput, error,
	) {
		limit := input.Limit
		if limit <= 0 {
			limit = defaultSessionLimit
		}

		sessions, err := store.ListSessions(ctx)
		if err != nil {
			return nil, ListChatSessionsOutput{}, fmt.Errorf("failed to list chat sessions: %w", err)
		}
		if len(sessions) > limit {
			sessions = sessions[:limit]
		}

		out := make([]ChatSession, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, ChatSession{
				SessionID:    s.SessionID,
				FirstMessage: s.FirstMessage,
				StartedAt:    s.StartedAt.UTC().Format(time.RFC3339),
				LastActive:   s.LastActive.UTC().Format(time.RFC3339),
				Turns:        s.Turns,
			})
		}
		return nil, ListChatSessionsOutput{Sessions: out, Count: len(out)}, nil
	}
}
