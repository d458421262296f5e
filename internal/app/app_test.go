package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/semantic-search/internal/config"
	"github.com/bull/semantic-search/internal/generator"
	"github.com/bull/semantic-search/internal/storage/memory"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Qdrant.Store = StoreMemory
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	a, err := New(memoryConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.Store{}, a.Store)
	assert.Equal(t, 384, a.Embedder.Dimension())
	assert.Equal(t, "openai:llama3-8b-8192", a.Generator.Name())
	assert.Equal(t, 5, a.RAG.TopK())
	assert.NotNil(t, a.Ingest)
	assert.NotNil(t, a.PDF)
	assert.Same(t, a.ChatStore, a.Chat.Store())
	assert.NoError(t, a.WaitHealthy(context.Background(), time.Second))
}

func TestNew_UnknownGenerator(t *testing.T) {
	cfg := memoryConfig()
	cfg.Generator.Provider = "mystery"

	_, err := New(cfg, nil)

	assert.ErrorIs(t, err, generator.ErrUnknownProvider)
}
