package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/semantic-search/internal/chat"
	"github.com/bull/semantic-search/internal/rag"
	"github.com/bull/semantic-search/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Store             storage.VectorStore
	Pipeline          *rag.Pipeline
	Chat              *chat.Store
	DefaultCollection string
	Version           string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "semantic-search",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_collection",
		Description: "Semantic search over a document collection. Returns the most similar chunks with scores and an answer generated from them.",
	}, makeSearchHandler(cfg.Pipeline, cfg.DefaultCollection))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_collections",
		Description: "List the document collections in the vector store with their point counts.",
	}, makeListCollectionsHandler(cfg.Store))

	if cfg.Chat != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "list_chat_sessions",
			Description: "List recorded chat sessions, most recently active first.",
		}, makeListSessionsHandler(cfg.Chat))
	}

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
