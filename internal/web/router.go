// Package web serves the HTML interface and the JSON search API.
package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/chat"
	"github.com/bull/semantic-search/internal/ingest"
	"github.com/bull/semantic-search/internal/ingest/pdf"
	"github.com/bull/semantic-search/internal/rag"
	"github.com/bull/semantic-search/internal/storage"
)

// Deps are the components the handlers call. All are built once at startup.
type Deps struct {
	Store  storage.VectorStore
	RAG    *rag.Pipeline
	Ingest *ingest.Pipeline
	PDF    *pdf.Extractor
	Chat   *chat.Service
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *zap.Logger

	DefaultCollection string
	VectorSize        int
	RequestTimeout    time.Duration
	MaxUploadBytes    int64
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) (*gin.Engine, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.DefaultCollection == "" {
		deps.DefaultCollection = "knowledge_base"
	}
	if deps.VectorSize <= 0 {
		deps.VectorSize = 384
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 32 << 20
	}

	h := &handler{deps: deps, markdown: newMarkdownRenderer()}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(AccessLog(deps.Logger))
	router.SetHTMLTemplate(tmpl)

	router.GET("/health", h.health)
	if deps.MCP != nil {
		router.Any("/mcp", gin.WrapH(deps.MCP))
	}

	app := router.Group("")
	app.Use(Timeout(deps.RequestTimeout))
	app.GET("/", h.home)
	app.POST("/search", h.search)
	app.GET("/api/search", h.apiSearch)

	app.GET("/create-collection", h.createCollectionForm)
	app.POST("/create-collection", h.createCollection)
	app.GET("/add-document", h.addDocumentForm)
	app.POST("/add-document", h.addDocument)
	app.GET("/upload-pdf", h.uploadPDFForm)
	app.POST("/upload-pdf", h.uploadPDF)

	app.GET("/chat", h.chatForm)
	app.POST("/chat", h.chat)
	app.GET("/chat-history", h.chatHistory)
	app.GET("/chat-session/:session_id", h.chatSession)

	return router, nil
}
