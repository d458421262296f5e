// Package main serves the semantic search web interface, JSON API, and MCP endpoint.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/app"
	"github.com/bull/semantic-search/internal/config"
	"github.com/bull/semantic-search/internal/logger"
	mcpserver "github.com/bull/semantic-search/internal/mcp"
	"github.com/bull/semantic-search/internal/web"
)

const (
	startupHealthWait = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.New(cfg, zlog)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.WaitHealthy(ctx, startupHealthWait); err != nil {
		zlog.Warn("vector store unreachable at startup; requests will fail until it recovers", zap.Error(err))
	}

	mcp := mcpserver.NewServer(&mcpserver.Config{
		Store:             a.Store,
		Pipeline:          a.RAG,
		Chat:              a.ChatStore,
		DefaultCollection: cfg.RAG.DefaultCollection,
	})

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := web.NewRouter(web.Deps{
		Store:             a.Store,
		RAG:               a.RAG,
		Ingest:            a.Ingest,
		PDF:               a.PDF,
		Chat:              a.Chat,
		MCP:               mcp.HTTPHandler(mcpserver.HTTPOptions{JSONResponse: true, Logger: zlog.Named("mcp")}),
		Logger:            zlog.Named("http"),
		DefaultCollection: cfg.RAG.DefaultCollection,
		VectorSize:        cfg.Embedding.Dimension,
		RequestTimeout:    cfg.RequestTimeout(),
		MaxUploadBytes:    int64(cfg.Server.MaxUploadMB) << 20,
	})
	if err != nil {
		return err
	}

	if err := a.PDF.CheckAvailable(); err != nil {
		zlog.Warn("PDF upload disabled until pdftotext is installed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("starting HTTP server",
			zap.String("addr", srv.Addr),
			zap.String("mcp", "/mcp"),
			zap.String("health", "/health"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
