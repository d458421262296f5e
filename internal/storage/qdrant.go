package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// DefaultGRPCPort is Qdrant's gRPC port. URLs pointing at the REST port (6333) are
	// redirected here.
	DefaultGRPCPort = 6334

	defaultTimeout = 30 * time.Second
)

// QdrantConfig holds connection settings.
type QdrantConfig struct {
	URL     string        // e.g. https://xyz.cloud.qdrant.io:6333; empty means localhost
	APIKey  string        // Qdrant Cloud API key
	Timeout time.Duration // Bound applied to each outbound call
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client  *qdrant.Client
	host    string
	port    int
	timeout time.Duration

	// vector sizes of collections created or inspected through this handle
	sizes *sizeCache
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(cfg QdrantConfig) (*QdrantStorage, error) {
	host, port, useTLS, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	storage := &QdrantStorage{
		client:  client,
		host:    host,
		port:    port,
		timeout: timeout,
		sizes:   newSizeCache(),
	}

	// Perform health check with exponential backoff retry
	if err := storage.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

// parseEndpoint splits a Qdrant URL into gRPC host, port and TLS flag.
func parseEndpoint(raw string) (string, int, bool, error) {
	if raw == "" {
		return "localhost", DefaultGRPCPort, false, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", 0, false, fmt.Errorf("invalid qdrant url %q", raw)
	}

	port := DefaultGRPCPort
	if p := u.Port(); p != "" && p != "6333" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port %q", p)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ListCollections returns the names of all collections.
func (s *QdrantStorage) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// CollectionExists reports whether a collection with the given name exists.
func (s *QdrantStorage) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	return exists, nil
}

// CreateCollection creates a cosine-distance collection with the given vector size.
// Returns ErrCollectionExists if the name is taken.
func (s *QdrantStorage) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", ErrCollectionExists, name)
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}

	s.sizes.set(name, vectorSize)
	return nil
}

// createPayloadIndexes creates payload indexes used for filtering and ordering.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context, collection string, fields map[string]qdrant.FieldType) error {
	for field, fieldType := range fields {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		_, err := s.client.CreateFieldIndex(callCtx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
		})
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// GetCollectionInfo retrieves collection statistics including total points count.
func (s *QdrantStorage) GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", classify(err))
	}

	result := &CollectionInfo{
		Name:        name,
		PointsCount: info.GetPointsCount(),
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		result.VectorSize = params.GetSize()
		s.sizes.set(name, int(params.GetSize()))
	}
	return result, nil
}

// vectorSize returns the collection's vector size, looking it up once per collection.
// Zero means unknown; callers then leave dimension checks to the server.
func (s *QdrantStorage) vectorSize(ctx context.Context, collection string) int {
	if size, ok := s.sizes.get(collection); ok {
		return size
	}
	info, err := s.GetCollectionInfo(ctx, collection)
	if err != nil {
		return 0
	}
	return int(info.VectorSize)
}

// upsert writes points and waits for the write to be applied.
func (s *QdrantStorage) upsert(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	return classify(err)
}

// UpsertChunks stores chunks in a single request. Callers own batching.
func (s *QdrantStorage) UpsertChunks(ctx context.Context, collection string, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Validate embedding dimensions
	if size := s.vectorSize(ctx, collection); size > 0 {
		for i, chunk := range chunks {
			if len(chunk.Embedding) != size {
				return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
					ErrDimensionMismatch, i, len(chunk.Embedding), size)
			}
		}
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]any{
			fieldText:     chunk.Text,
			fieldCategory: chunk.Category,
		}
		if chunk.Source != "" {
			payload[fieldSource] = chunk.Source
		}
		if chunk.ChunkIndex >= 0 {
			payload[fieldChunkIndex] = int64(chunk.ChunkIndex)
		}

		points[i] = &qdrant.PointStruct{
			Id:      toPointID(chunk.ID),
			Vectors: qdrant.NewVectors(chunk.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	if err := s.upsert(ctx, collection, points); err != nil {
		return fmt.Errorf("failed to upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// SearchChunks performs vector similarity search.
// Returns top N chunks with similarity scores, ordered by score descending.
func (s *QdrantStorage) SearchChunks(ctx context.Context, collection string, embedding []float32, limit int) ([]*ScoredChunk, error) {
	if size := s.vectorSize(ctx, collection); size > 0 && len(embedding) != size {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), size)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false), // Don't need vectors in response
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", classify(err))
	}

	scored := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		scored = append(scored, &ScoredChunk{
			Chunk: chunkFromPayload(fromPointID(result.Id), result.Payload),
			Score: float64(result.Score), // Qdrant returns float32, convert to float64
		})
	}
	return scored, nil
}

// ScanPointIDs lists up to limit point IDs in store-determined order.
func (s *QdrantStorage) ScanPointIDs(ctx context.Context, collection string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", classify(err))
	}

	ids := make([]string, 0, len(results))
	for _, result := range results {
		ids = append(ids, fromPointID(result.Id))
	}
	return ids, nil
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) *Chunk {
	chunk := &Chunk{
		ID:         id,
		Text:       payload[fieldText].GetStringValue(),
		Category:   payload[fieldCategory].GetStringValue(),
		Source:     payload[fieldSource].GetStringValue(),
		ChunkIndex: -1,
	}
	if v, ok := payload[fieldChunkIndex]; ok {
		chunk.ChunkIndex = int(v.GetIntegerValue())
	}
	return chunk
}

// toPointID maps decimal strings to numeric IDs and everything else to UUIDs.
func toPointID(id string) *qdrant.PointId {
	if n, ok := NumericID(id); ok {
		return qdrant.NewIDNum(n)
	}
	return qdrant.NewIDUUID(id)
}

func fromPointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	case *qdrant.PointId_Uuid:
		return v.Uuid
	}
	return ""
}

// classify maps gRPC status codes onto package errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
	case codes.Unavailable:
		return fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	return err
}
