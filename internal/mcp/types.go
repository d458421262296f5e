// Package mcp exposes semantic search and chat history as Model Context Protocol tools.
package mcp

// SearchCollectionInput defines the input parameters for the search_collection tool.
type SearchCollectionInput struct {
	// Query is the natural-language question.
	Query string `json:"query" jsonschema:"The question to search for and answer"`
	// Collection defaults to the server's default collection.
	Collection string `json:"collection,omitempty" jsonschema:"Collection to search (defaults to the configured knowledge base)"`
	// TopK is the number of chunks retrieved.
	TopK int `json:"top_k,omitempty" jsonschema:"Number of chunks to retrieve (default 5, max 20)"`
	// MinScore drops hits below this cosine similarity.
	MinScore float64 `json:"min_score,omitempty" jsonschema:"Minimum similarity score (0-1) for returned chunks"`
}

// SearchCollectionOutput contains the retrieved chunks and the generated answer.
type SearchCollectionOutput struct {
	Collection string         `json:"collection"`
	Results    []SearchResult `json:"results"`
	Answer     string         `json:"answer"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// SearchResult is a single retrieved chunk.
type SearchResult struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
	Category string  `json:"category,omitempty"`
	Source   string  `json:"source,omitempty"`
}

// ListCollectionsInput takes no parameters.
type ListCollectionsInput struct{}

// ListCollectionsOutput lists every collection with its size.
type ListCollectionsOutput struct {
	Collections []CollectionSummary `json:"collections"`
	Count       int                 `json:"count"`
}

// CollectionSummary describes one collection.
type CollectionSummary struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"points_count"`
	VectorSize  uint64 `json:"vector_size"`
}

// ListChatSessionsInput defines the input parameters for the list_chat_sessions tool.
type ListChatSessionsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of sessions to return (default 20)"`
}

// ListChatSessionsOutput lists chat sessions, most recent first.
type ListChatSessionsOutput struct {
	Sessions []ChatSession `json:"sessions"`
	Count    int           `json:"count"`
}

// ChatSession summarises one conversation.
type ChatSession struct {
	SessionID    string `json:"session_id"`
	FirstMessage string `json:"first_message"`
	StartedAt    string `json:"started_at"` // RFC 3339
	LastActive   string `json:"last_active"`
	Turns        int    `json:"turns"`
}
