package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/semantic-search/internal/embedding/embeddingtest"
	"github.com/bull/semantic-search/internal/ingest"
	"github.com/bull/semantic-search/internal/ingest/pdf"
	"github.com/bull/semantic-search/internal/rag"
	"github.com/bull/semantic-search/internal/storage"
	"github.com/bull/semantic-search/internal/storage/memory"
)

const testDim = 32

type cannedGenerator string

func (g cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return string(g), nil
}

func (g cannedGenerator) Name() string { return "canned" }

type fileRunner map[string]string

// Run returns the text registered for the PDF bytes read from stdin.
func (r fileRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, err
	}
	text, ok := r[string(data)]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return []byte(text), nil
}

func newIngester(store storage.VectorStore) *ingest.Pipeline {
	return ingest.NewPipeline(store, embeddingtest.New(testDim), ingest.SequentialAllocator{Store: store},
		ingest.Options{ChunkSize: 16, BatchSize: 2}, nil)
}

func TestCreateCollection(t *testing.T) {
	store := memory.New()
	var out bytes.Buffer

	require.NoError(t, createCollection(context.Background(), &out, store, "kb", testDim))
	require.NoError(t, createCollection(context.Background(), &out, store, "kb", testDim))

	assert.Equal(t, "Collection 'kb' created successfully!\nCollection 'kb' already exists.\n", out.String())
	assert.ErrorIs(t, createCollection(context.Background(), &out, store, "a/b", testDim), storage.ErrInvalidName)
}

func TestIndexSession_CreatesAndAdds(t *testing.T) {
	store := memory.New()
	var out bytes.Buffer
	input := strings.Join([]string{
		"y",                      // create?
		"",                       // default vector size
		"Qdrant is fast",         // text
		"databases",              // category
		"Entry without category", // text
		"",                       // category, skipped
		"Go has goroutines",      // text
		"languages",              // category
		"",                       // finish
	}, "\n") + "\n"

	s := &indexSession{
		in:          bufio.NewScanner(strings.NewReader(input)),
		out:         &out,
		store:       store,
		ingester:    newIngester(store),
		defaultSize: testDim,
	}
	require.NoError(t, s.run(context.Background(), "notes"))

	output := out.String()
	assert.Contains(t, output, "Collection 'notes' does not exist. Create it? (y/n): ")
	assert.Contains(t, output, "Collection 'notes' created.")
	assert.Contains(t, output, "Added entry with ID 1 to collection 'notes'.")
	assert.Contains(t, output, "Category is required. Skipping entry.")
	assert.Contains(t, output, "Added entry with ID 2 to collection 'notes'.")
	assert.True(t, strings.HasSuffix(output, "Done.\n"))

	info, err := store.GetCollectionInfo(context.Background(), "notes")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.PointsCount)
	assert.Equal(t, uint64(testDim), info.VectorSize)
}

func TestIndexSession_Declined(t *testing.T) {
	store := memory.New()
	var out bytes.Buffer
	s := &indexSession{
		in:          bufio.NewScanner(strings.NewReader("n\n")),
		out:         &out,
		store:       store,
		ingester:    newIngester(store),
		defaultSize: testDim,
	}

	require.NoError(t, s.run(context.Background(), "notes"))

	assert.Contains(t, out.String(), "Exiting.")
	exists, err := store.CollectionExists(context.Background(), "notes")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIndexSession_PromptsForCollection(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.CreateCollection(context.Background(), "kb", testDim))
	var out bytes.Buffer
	s := &indexSession{
		in:       bufio.NewScanner(strings.NewReader("kb\n\n")),
		out:      &out,
		store:    store,
		ingester: newIngester(store),
	}

	require.NoError(t, s.run(context.Background(), ""))

	assert.Contains(t, out.String(), "Collection 'kb' already exists.")
}

func TestIngestPDFs(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateCollection(ctx, "kb", testDim))

	dir := t.TempDir()
	good := filepath.Join(dir, "guide.pdf")
	broken := filepath.Join(dir, "broken.pdf")
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(good, []byte("pdf-1"), 0o600))
	require.NoError(t, os.WriteFile(broken, []byte("pdf-2"), 0o600))
	require.NoError(t, os.WriteFile(notes, []byte("text"), 0o600))

	extractor := pdf.NewWithRunner("", fileRunner{"pdf-1": "Vectors live in collections. Points carry payloads."})
	var out bytes.Buffer

	err := ingestPDFs(ctx, &out, extractor, newIngester(store), "kb", "manual", []string{good, broken, notes})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "Documents: 1/3")
	assert.Contains(t, output, "Chunks: 4")
	assert.Contains(t, output, "  - notes.txt: file must have a .pdf extension")
	assert.Contains(t, output, "  - broken.pdf: pdftotext failed")

	hits, err := store.SearchChunks(ctx, "kb", make([]float32, testDim), 10)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	for _, hit := range hits {
		assert.Equal(t, "guide.pdf", hit.Source)
		assert.Equal(t, "manual", hit.Category)
	}
}

func TestIngestPDFs_MissingCollection(t *testing.T) {
	store := memory.New()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf-1"), 0o600))
	extractor := pdf.NewWithRunner("", fileRunner{"pdf-1": "some text"})

	err := ingestPDFs(context.Background(), io.Discard, extractor, newIngester(store), "missing", "", []string{path})

	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	embedder := embeddingtest.New(testDim)
	require.NoError(t, store.CreateCollection(ctx, "kb", testDim))
	vec, err := embedder.Embed(ctx, "Cosine similarity compares directions")
	require.NoError(t, err)
	require.NoError(t, store.UpsertChunks(ctx, "kb", []*storage.Chunk{
		{ID: "1", Text: "Cosine similarity compares directions", ChunkIndex: -1, Embedding: vec},
	}))
	pipeline := rag.NewPipeline(store, embedder, cannedGenerator("It compares directions."), 5, nil)

	var out bytes.Buffer
	require.NoError(t, search(ctx, &out, pipeline, "kb", "cosine similarity", 0))

	output := out.String()
	assert.Contains(t, output, "Search results for: 'cosine similarity'")
	assert.Contains(t, output, "1. Score: ")
	assert.Contains(t, output, "   Text: Cosine similarity compares directions")
	assert.Contains(t, output, "   Category: N/A")
	assert.True(t, strings.HasSuffix(output, "Answer:\nIt compares directions.\n"))

	out.Reset()
	require.NoError(t, search(ctx, &out, pipeline, "missing", "x", 0))
	assert.Equal(t, "Collection 'missing' does not exist. Create and populate it first.\n", out.String())
}
