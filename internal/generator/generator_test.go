package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SelectsProvider(t *testing.T) {
	g, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, g)
	assert.Equal(t, "openai:llama3-8b-8192", g.Name())

	g, err = New(Config{Provider: "Gemini"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiGenerator{}, g)
	assert.Equal(t, "gemini:gemini-2.0-flash", g.Name())

	_, err = New(Config{Provider: "cohere"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestGenerate_MissingKey(t *testing.T) {
	_, err := NewOpenAIGenerator(Config{}).Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewGeminiGenerator(Config{}).Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

type chatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer groq-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "llama3-8b-8192",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "  Cosine similarity compares directions.\n"}}]
		}`)
	}))
	defer server.Close()

	g := NewOpenAIGenerator(Config{BaseURL: server.URL, APIKey: "groq-key", Temperature: 0.3})

	answer, err := g.Generate(context.Background(), "What is cosine similarity?")
	require.NoError(t, err)
	assert.Equal(t, "  Cosine similarity compares directions.\n", answer, "returned verbatim")

	assert.Equal(t, "llama3-8b-8192", got.Model)
	assert.Equal(t, 200, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "What is cosine similarity?", got.Messages[0].Content)
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "c1", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`)
	}))
	defer server.Close()

	_, err := NewOpenAIGenerator(Config{BaseURL: server.URL, APIKey: "k"}).Generate(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIGenerator_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid key"}}`)
	}))
	defer server.Close()

	_, err := NewOpenAIGenerator(Config{BaseURL: server.URL, APIKey: "bad"}).Generate(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion failed")
}

func TestGeminiGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "Vectors point the same way."}]}}]}`)
	}))
	defer server.Close()

	g := NewGeminiGenerator(Config{BaseURL: server.URL, APIKey: "gemini-key"})

	answer, err := g.Generate(context.Background(), "What is cosine similarity?")
	require.NoError(t, err)
	assert.Equal(t, "Vectors point the same way.", answer)
}
