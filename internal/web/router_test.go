package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/semantic-search/internal/chat"
	"github.com/bull/semantic-search/internal/embedding/embeddingtest"
	"github.com/bull/semantic-search/internal/ingest"
	"github.com/bull/semantic-search/internal/ingest/pdf"
	"github.com/bull/semantic-search/internal/rag"
	"github.com/bull/semantic-search/internal/storage"
	"github.com/bull/semantic-search/internal/storage/memory"
)

const testDim = 64

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *stubGenerator) Name() string { return "stub" }

type stubRunner struct {
	out []byte
	err error
}

func (r stubRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	_, _ = io.Copy(io.Discard, stdin)
	return r.out, r.err
}

type unhealthyStore struct{ *memory.Store }

func (unhealthyStore) Health(ctx context.Context) error { return storage.ErrQdrantUnreachable }

type testEnv struct {
	router *gin.Engine
	store  storage.VectorStore
	gen    *stubGenerator
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()
	vs := memory.New()
	embedder := embeddingtest.New(testDim)

	require.NoError(t, vs.CreateCollection(ctx, "kb", testDim))
	docs := []struct{ text, category string }{
		{"Qdrant is a vector database written in Rust.", "databases"},
		{"Cosine similarity measures the angle between two vectors.", "math"},
		{"Bananas are rich in potassium.", ""},
	}
	for i, d := range docs {
		vec, err := embedder.Embed(ctx, d.text)
		require.NoError(t, err)
		require.NoError(t, vs.UpsertChunks(ctx, "kb", []*storage.Chunk{{
			ID: string(rune('1' + i)), Text: d.text, Category: d.category, ChunkIndex: -1, Embedding: vec,
		}}))
	}

	gen := &stubGenerator{response: "Qdrant is a **vector database**."}
	pipeline := rag.NewPipeline(vs, embedder, gen, 5, nil)
	ingester := ingest.NewPipeline(vs, embedder, ingest.SequentialAllocator{Store: vs}, ingest.Options{ChunkSize: 20}, nil)
	chatStore := chat.NewStore(vs, embedder, chat.Options{}, nil)

	deps := Deps{
		Store:             vs,
		RAG:               pipeline,
		Ingest:            ingester,
		PDF:               pdf.NewWithRunner("", stubRunner{out: []byte("Page one text about vectors.\fPage two.")}),
		Chat:              chat.NewService(pipeline, chatStore, nil),
		DefaultCollection: "kb",
		VectorSize:        testDim,
		MaxUploadBytes:    1 << 20,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	router, err := NewRouter(deps)
	require.NoError(t, err)
	return &testEnv{router: router, store: vs, gen: gen}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHome_ListsCollections(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<option value="kb" selected>kb</option>`)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestRequestID_Propagated(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-123")

	w := env.do(req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-Id"))
}

func TestSearch_RendersRankedResults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/search", url.Values{"query": {"What is Qdrant?"}, "collection_name": {"kb"}}))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<strong>vector database</strong>")
	assert.Contains(t, body, "#1 · score ")
	assert.Contains(t, body, "Qdrant is a vector database written in Rust.")
	assert.Contains(t, body, "category N/A")
	require.Len(t, env.gen.prompts, 1)
	assert.True(t, strings.HasPrefix(env.gen.prompts[0], "Based on the following relevant documents:\n\n1. "))
}

func TestSearch_DefaultsCollection(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/search", url.Values{"query": {"cosine similarity"}}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Collection: <strong>kb</strong>")
}

func TestSearch_MissingCollection(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/search", url.Values{"query": {"anything"}, "collection_name": {"nope"}}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), rag.MissingCollectionMessage)
	assert.Empty(t, env.gen.prompts)
}

func TestSearch_EmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/search", url.Values{"query": {"   "}}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a question.")
}

func TestSearch_GeneratorFailureIsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errors.New("quota exceeded")

	w := env.do(postForm("/search", url.Values{"query": {"What is Qdrant?"}}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "temporarily unavailable")
	assert.NotContains(t, w.Body.String(), "quota exceeded")
}

func TestAPISearch_JSON(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/search?query=bananas+potassium&collection_name=kb&top_k=2", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp apiSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bananas potassium", resp.Query)
	assert.Equal(t, "kb", resp.Collection)
	assert.Equal(t, "Qdrant is a **vector database**.", resp.AIResponse)
	require.Len(t, resp.SearchResults, 2)
	assert.Equal(t, "Bananas are rich in potassium.", resp.SearchResults[0].Text)
	assert.Equal(t, "N/A", resp.SearchResults[0].Category)
	assert.GreaterOrEqual(t, resp.SearchResults[0].Score, resp.SearchResults[1].Score)
}

func TestAPISearch_DefaultTopK(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/search?query=vectors", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp apiSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "kb", resp.Collection)
	assert.Len(t, resp.SearchResults, 3)
}

func TestAPISearch_MissingCollection(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/search?query=x&collection_name=nope", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp apiSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.SearchResults)
	assert.Equal(t, rag.MissingCollectionMessage, resp.AIResponse)
}

func TestAPISearch_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		url  string
	}{
		{"missing query", "/api/search"},
		{"blank query", "/api/search?query=%20"},
		{"non-numeric top_k", "/api/search?query=x&top_k=abc"},
		{"zero top_k", "/api/search?query=x&top_k=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAPISearch_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errors.New("upstream 500")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/search?query=x", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"`+UnavailableMessage+`"}`, w.Body.String())
}

func TestCreateCollection(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/create-collection", url.Values{"collection_name": {"docs"}, "vector_size": {"64"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Collection &#39;docs&#39; created successfully!")

	info, err := env.store.GetCollectionInfo(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, uint64(64), info.VectorSize)

	w = env.do(postForm("/create-collection", url.Values{"collection_name": {"docs"}}))
	assert.Contains(t, w.Body.String(), "Collection &#39;docs&#39; already exists.")
}

func TestCreateCollection_DefaultVectorSize(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.VectorSize = 384 })

	env.do(postForm("/create-collection", url.Values{"collection_name": {"fresh"}}))

	info, err := env.store.GetCollectionInfo(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, uint64(384), info.VectorSize)
}

func TestCreateCollection_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/create-collection", url.Values{"collection_name": {""}}))
	assert.Contains(t, w.Body.String(), "Please enter a collection name.")

	w = env.do(postForm("/create-collection", url.Values{"collection_name": {"a/b"}}))
	assert.Contains(t, w.Body.String(), "is not allowed.")

	w = env.do(postForm("/create-collection", url.Values{"collection_name": {"ok"}, "vector_size": {"-3"}}))
	assert.Contains(t, w.Body.String(), "Vector size must be a positive integer.")
}

func TestAddDocument_SequentialID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/add-document", url.Values{
		"collection_name": {"kb"},
		"text":            {"HNSW is a graph index for approximate nearest neighbour search."},
		"category":        {"indexing"},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Document added to &#39;kb&#39; with ID 4.")
}

func TestAddDocument_SoftFailures(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/add-document", url.Values{"collection_name": {"nope"}, "text": {"hello"}}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Collection &#39;nope&#39; not found.")

	w = env.do(postForm("/add-document", url.Values{"collection_name": {"kb"}, "text": {"  "}}))
	assert.Contains(t, w.Body.String(), "Please enter some text.")
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadPDF_IngestsChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before, err := env.store.GetCollectionInfo(ctx, "kb")
	require.NoError(t, err)

	w := env.do(multipartUpload(t, "Guide.PDF", []byte("%PDF-1.4"), map[string]string{"collection_name": "kb"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Uploaded &#39;Guide.PDF&#39;: 2 chunks added to &#39;kb&#39;.")
	after, err := env.store.GetCollectionInfo(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, before.PointsCount+2, after.PointsCount)
}

func TestUploadPDF_RejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(multipartUpload(t, "notes.txt", []byte("hello"), map[string]string{"collection_name": "kb"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Only PDF files are supported.")
}

func TestUploadPDF_ExtractionFailures(t *testing.T) {
	t.Run("tool missing", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) {
			d.PDF = pdf.NewWithRunner("", stubRunner{err: pdf.ErrToolNotFound})
		})
		w := env.do(multipartUpload(t, "a.pdf", []byte("%PDF"), map[string]string{"collection_name": "kb"}))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("no text", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) {
			d.PDF = pdf.NewWithRunner("", stubRunner{out: []byte("  \n\f ")})
		})
		w := env.do(multipartUpload(t, "scan.pdf", []byte("%PDF"), map[string]string{"collection_name": "kb"}))
		assert.Contains(t, w.Body.String(), "No text could be extracted from &#39;scan.pdf&#39;.")
	})

	t.Run("missing collection", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(multipartUpload(t, "a.pdf", []byte("%PDF"), map[string]string{"collection_name": "nope"}))
		assert.Contains(t, w.Body.String(), "Collection &#39;nope&#39; not found.")
	})
}

func TestUploadPDF_TooLarge(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.MaxUploadBytes = 1 << 10 })

	w := env.do(multipartUpload(t, "big.pdf", bytes.Repeat([]byte("x"), 4<<10), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestChat_IssuesSessionAndPersistsTurns(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/chat", url.Values{"user_message": {"What is Qdrant?"}, "collection_name": {"kb"}}))
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookieFrom(t, w)
	assert.NotEmpty(t, cookie.Value)
	assert.Contains(t, w.Body.String(), "You: What is Qdrant?")
	assert.Contains(t, w.Body.String(), "<strong>vector database</strong>")

	history := chat.EncodeHistory([]rag.Turn{{User: "What is Qdrant?", Assistant: "Qdrant is a **vector database**."}})
	req := postForm("/chat", url.Values{
		"user_message":    {"Is it fast?"},
		"collection_name": {"kb"},
		"history":         {history},
	})
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
	require.Len(t, env.gen.prompts, 2)
	assert.Contains(t, env.gen.prompts[1], "User: What is Qdrant?\nAssistant: Qdrant is a **vector database**.\n")

	w = env.do(httptest.NewRequest(http.MethodGet, "/chat-history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), cookie.Value)
	assert.Contains(t, w.Body.String(), "What is Qdrant?")

	w = env.do(httptest.NewRequest(http.MethodGet, "/chat-session/"+cookie.Value, nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	first := strings.Index(body, "You: What is Qdrant?")
	second := strings.Index(body, "You: Is it fast?")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
}

func TestChatForm_ResumesSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(postForm("/chat", url.Values{"user_message": {"What is Qdrant?"}}))
	cookie := sessionCookieFrom(t, w)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.AddCookie(cookie)
	w = env.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "You: What is Qdrant?")
	assert.Contains(t, w.Body.String(), `name="history" value="[{`)
}

func TestChat_MalformedHistoryIgnored(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/chat", url.Values{"user_message": {"hello"}, "history": {"{broken"}}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, env.gen.prompts[0], "Conversation so far:")
}

func TestChat_EmptyMessage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postForm("/chat", url.Values{"user_message": {""}}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a message.")
	assert.Empty(t, env.gen.prompts)
}

func TestChatHistory_Empty(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/chat-history", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No chat sessions yet.")
}

func TestChatSession_Unknown(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/chat-session/unknown", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No turns recorded for this session.")
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "connected", resp.Qdrant)
		assert.NotEmpty(t, resp.Timestamp)
	})

	t.Run("unhealthy", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) { d.Store = unhealthyStore{memory.New()} })
		w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "disconnected", resp.Qdrant)
	})
}

func TestMCPMounted(t *testing.T) {
	called := false
	env := newTestEnv(t, func(d *Deps) {
		d.MCP = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusAccepted)
		})
	})

	w := env.do(httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}")))

	assert.True(t, called)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestMarkdownRenderer_DropsRawHTML(t *testing.T) {
	r := newMarkdownRenderer()

	out := string(r.render("Hello <script>alert(1)</script> *world*"))

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<em>world</em>")
	assert.Equal(t, "", string(r.render("")))
}
