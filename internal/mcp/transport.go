package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// HTTPOptions configures the /mcp endpoint of the web server.
type HTTPOptions struct {
	// Stateful keeps an MCP session per client. The search and listing tools
	// never call back into the client, so the web server leaves it off and
	// any replica can answer any request.
	Stateful bool
	// JSONResponse answers tool calls with a single application/json body
	// instead of an SSE stream.
	JSONResponse bool
	// Logger records each MCP request at debug level. Nil disables it.
	Logger *zap.Logger
}

// HTTPHandler serves the search tools over Streamable HTTP. Every request is
// bound to this server, so all clients see the same collections and sessions.
func (s *Server) HTTPHandler(opts HTTPOptions) http.Handler {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{
		Stateless:    !opts.Stateful,
		JSONResponse: opts.JSONResponse,
	})
	if opts.Logger == nil {
		return handler
	}

	logger := opts.Logger
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("mcp request",
			zap.String("method", r.Method),
			zap.String("session", r.Header.Get("Mcp-Session-Id")),
			zap.Int64("content_length", r.ContentLength))
		handler.ServeHTTP(w, r)
	})
}
