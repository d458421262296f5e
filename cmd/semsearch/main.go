// Package main provides the semsearch CLI for managing and querying collections.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/semantic-search/internal/app"
	"github.com/bull/semantic-search/internal/config"
	"github.com/bull/semantic-search/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "semsearch",
	Short: "Semantic search collection tool",
	Long: `CLI for creating, populating, and querying Qdrant collections.

Environment variables:
  QDRANT_URL          Qdrant endpoint (e.g. https://xyz.cloud.qdrant.io:6333)
  QDRANT_API_KEY      Qdrant Cloud API key
  EMBEDDING_BASE_URL  OpenAI-compatible embeddings endpoint (default: http://localhost:8081/v1)
  GROQ_API_KEY        Groq API key for answer generation (search only)
  CONFIG_FILE         Optional YAML config file (same as --config)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default: $CONFIG_FILE)")
	rootCmd.AddCommand(createCollectionCmd, indexCmd, ingestPDFCmd, searchCmd, mcpCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

// loadApp builds the components. Logs go to stderr so command output stays clean.
func loadApp() (*app.App, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return app.New(cfg, zlog)
}
