package embedding

import (
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientConfig points the client at an OpenAI-compatible embeddings endpoint.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates a client for the configured endpoint. Local embedding servers
// usually ignore the key, so an empty one is sent as a placeholder.
func NewClient(cfg ClientConfig) *Client {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}

	// Retries are handled by the embedder's backoff, not the SDK.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client}
}
