// Package config loads service configuration from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ID assignment strategies for ingested chunks.
const (
	IDStrategyUUID       = "uuid"
	IDStrategySequential = "sequential"
)

// QdrantConfig contains connection details for the hosted vector store.
type QdrantConfig struct {
	// Store selects the backend: "qdrant" or "memory" (local development only).
	Store       string `yaml:"store"`
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding endpoint.
type EmbeddingConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	Dimension    int    `yaml:"dimension"`
	BatchSize    int    `yaml:"batch_size"`
	CacheSize    int    `yaml:"cache_size"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
}

// GeneratorConfig configures the answer-generating LLM.
type GeneratorConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// RAGConfig configures retrieval.
type RAGConfig struct {
	TopK              int    `yaml:"top_k"`
	DefaultCollection string `yaml:"default_collection"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	ChunkSize  int    `yaml:"chunk_size"`
	BatchSize  int    `yaml:"batch_size"`
	ScanLimit  int    `yaml:"scan_limit"`
	IDStrategy string `yaml:"id_strategy"`
	PDFTool    string `yaml:"pdf_tool"`
}

// ChatConfig configures chat history storage.
type ChatConfig struct {
	Collection        string `yaml:"collection"`
	SessionCollection string `yaml:"session_collection"`
	ScanLimit         int    `yaml:"scan_limit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port               string `yaml:"port"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	MaxUploadMB        int    `yaml:"max_upload_mb"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config is the root configuration.
type Config struct {
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	RAG       RAGConfig       `yaml:"rag"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Chat      ChatConfig      `yaml:"chat"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Load builds the configuration: defaults, then the YAML file at path (if any), then
// environment variables. A missing file is not an error.
// Secrets are not validated here; a missing key surfaces as a downstream failure.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Qdrant: QdrantConfig{
			Store:       "qdrant",
			TimeoutSecs: 60,
		},
		Embedding: EmbeddingConfig{
			BaseURL:      "http://localhost:8081/v1",
			Model:        "BAAI/bge-small-en-v1.5",
			Dimension:    384,
			BatchSize:    500,
			CacheSize:    1024,
			CacheTTLSecs: 600,
		},
		Generator: GeneratorConfig{
			Provider:    "openai",
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama3-8b-8192",
			MaxTokens:   200,
			Temperature: 0.3,
			TimeoutSecs: 60,
		},
		RAG: RAGConfig{
			TopK:              5,
			DefaultCollection: "knowledge_base",
		},
		Ingest: IngestConfig{
			ChunkSize:  500,
			BatchSize:  20,
			ScanLimit:  100,
			IDStrategy: IDStrategyUUID,
			PDFTool:    "pdftotext",
		},
		Chat: ChatConfig{
			Collection:        "chat_history",
			SessionCollection: "chat_sessions",
			ScanLimit:         1000,
		},
		Server: ServerConfig{
			Port:               "8000",
			RequestTimeoutSecs: 60,
			MaxUploadMB:        32,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Qdrant.Store = getEnv("VECTOR_STORE", cfg.Qdrant.Store)
	cfg.Qdrant.URL = getEnv("QDRANT_URL", cfg.Qdrant.URL)
	cfg.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.TimeoutSecs = getEnvInt("QDRANT_TIMEOUT_SECS", cfg.Qdrant.TimeoutSecs)

	cfg.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimension = getEnvInt("EMBEDDING_DIMENSION", cfg.Embedding.Dimension)
	cfg.Embedding.CacheSize = getEnvInt("EMBEDDING_CACHE_SIZE", cfg.Embedding.CacheSize)
	cfg.Embedding.CacheTTLSecs = getEnvInt("EMBEDDING_CACHE_TTL_SECS", cfg.Embedding.CacheTTLSecs)

	cfg.Generator.Provider = getEnv("GENERATOR_PROVIDER", cfg.Generator.Provider)
	cfg.Generator.BaseURL = getEnv("GENERATOR_BASE_URL", cfg.Generator.BaseURL)
	cfg.Generator.Model = getEnv("GENERATOR_MODEL", cfg.Generator.Model)
	cfg.Generator.MaxTokens = getEnvInt("GENERATOR_MAX_TOKENS", cfg.Generator.MaxTokens)
	cfg.Generator.Temperature = getEnvFloat("GENERATOR_TEMPERATURE", cfg.Generator.Temperature)
	cfg.Generator.TimeoutSecs = getEnvInt("GENERATOR_TIMEOUT_SECS", cfg.Generator.TimeoutSecs)
	if cfg.Generator.Provider == "gemini" {
		cfg.Generator.APIKey = getEnv("GEMINI_API_KEY", cfg.Generator.APIKey)
	} else {
		cfg.Generator.APIKey = getEnv("GROQ_API_KEY", cfg.Generator.APIKey)
	}

	cfg.RAG.TopK = getEnvInt("RAG_TOP_K", cfg.RAG.TopK)
	cfg.RAG.DefaultCollection = getEnv("DEFAULT_COLLECTION", cfg.RAG.DefaultCollection)

	cfg.Ingest.ChunkSize = getEnvInt("INGEST_CHUNK_SIZE", cfg.Ingest.ChunkSize)
	cfg.Ingest.BatchSize = getEnvInt("INGEST_BATCH_SIZE", cfg.Ingest.BatchSize)
	cfg.Ingest.ScanLimit = getEnvInt("INGEST_SCAN_LIMIT", cfg.Ingest.ScanLimit)
	cfg.Ingest.IDStrategy = getEnv("INGEST_ID_STRATEGY", cfg.Ingest.IDStrategy)
	cfg.Ingest.PDFTool = getEnv("PDF_TOOL", cfg.Ingest.PDFTool)

	cfg.Chat.Collection = getEnv("CHAT_COLLECTION", cfg.Chat.Collection)
	cfg.Chat.SessionCollection = getEnv("CHAT_SESSION_COLLECTION", cfg.Chat.SessionCollection)
	cfg.Chat.ScanLimit = getEnvInt("CHAT_SCAN_LIMIT", cfg.Chat.ScanLimit)

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.RequestTimeoutSecs = getEnvInt("REQUEST_TIMEOUT_SECS", cfg.Server.RequestTimeoutSecs)
	cfg.Server.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", cfg.Server.MaxUploadMB)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Development = getEnv("LOG_DEVELOPMENT", strconv.FormatBool(cfg.Log.Development)) == "true"
}

// applyDefaults restores defaults for values a YAML file or the environment zeroed out.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = def.Embedding.Dimension
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = def.Ingest.ChunkSize
	}
	if cfg.Ingest.BatchSize <= 0 {
		cfg.Ingest.BatchSize = def.Ingest.BatchSize
	}
	if cfg.Ingest.ScanLimit <= 0 {
		cfg.Ingest.ScanLimit = def.Ingest.ScanLimit
	}
	if cfg.Ingest.IDStrategy != IDStrategySequential {
		cfg.Ingest.IDStrategy = IDStrategyUUID
	}
	if cfg.Chat.ScanLimit <= 0 {
		cfg.Chat.ScanLimit = def.Chat.ScanLimit
	}
	if cfg.Generator.Provider == "gemini" {
		// Groq defaults do not apply to Gemini.
		if cfg.Generator.BaseURL == def.Generator.BaseURL {
			cfg.Generator.BaseURL = ""
		}
		if cfg.Generator.Model == def.Generator.Model {
			cfg.Generator.Model = "gemini-2.0-flash"
		}
	}
	if cfg.Generator.MaxTokens <= 0 {
		cfg.Generator.MaxTokens = def.Generator.MaxTokens
	}
	if cfg.Server.RequestTimeoutSecs <= 0 {
		cfg.Server.RequestTimeoutSecs = def.Server.RequestTimeoutSecs
	}
}

// RequestTimeout is the bound applied to every request's outbound calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// EmbeddingCacheTTL returns the embedding cache expiry.
func (c *Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.Embedding.CacheTTLSecs) * time.Second
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
