// Package memory is an in-process storage.VectorStore using brute-force cosine
// similarity. It backs tests and local development without a Qdrant instance.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bull/semantic-search/internal/storage"
)

type collection struct {
	size     int
	chunks   []*storage.Chunk // insertion order; upserts replace in place
	turns    []*storage.ChatTurn
	sessions map[string]*storage.SessionSummary
}

// Store is a simple in-memory vector store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	order       []string
}

var _ storage.VectorStore = (*Store)(nil)

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) Health(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	if err := storage.ValidateCollectionName(name); err != nil {
		return err
	}
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("%w: %s", storage.ErrCollectionExists, name)
	}
	s.collections[name] = &collection{size: vectorSize, sessions: make(map[string]*storage.SessionSummary)}
	s.order = append(s.order, name)
	return nil
}

func (s *Store) CreateChatCollection(ctx context.Context, name string, vectorSize int) error {
	return s.CreateCollection(ctx, name, vectorSize)
}

func (s *Store) CreateSessionIndex(ctx context.Context, name string, vectorSize int) error {
	return s.CreateCollection(ctx, name, vectorSize)
}

// EnsureChatIndexes only checks the collection exists; the map needs no indexes.
func (s *Store) EnsureChatIndexes(ctx context.Context, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.get(name)
	return err
}

func (s *Store) EnsureSessionIndexes(ctx context.Context, name string) error {
	return s.EnsureChatIndexes(ctx, name)
}

func (s *Store) GetCollectionInfo(ctx context.Context, name string) (*storage.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return &storage.CollectionInfo{
		Name:        name,
		PointsCount: uint64(len(c.chunks) + len(c.turns) + len(c.sessions)),
		VectorSize:  uint64(c.size),
	}, nil
}

func (s *Store) UpsertChunks(ctx context.Context, name string, chunks []*storage.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	for i, chunk := range chunks {
		if len(chunk.Embedding) != c.size {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				storage.ErrDimensionMismatch, i, len(chunk.Embedding), c.size)
		}
	}
	for _, chunk := range chunks {
		stored := *chunk
		replaced := false
		for i, existing := range c.chunks {
			if existing.ID == chunk.ID {
				c.chunks[i] = &stored
				replaced = true
				break
			}
		}
		if !replaced {
			c.chunks = append(c.chunks, &stored)
		}
	}
	return nil
}

func (s *Store) SearchChunks(ctx context.Context, name string, embedding []float32, limit int) ([]*storage.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	if len(embedding) != c.size {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			storage.ErrDimensionMismatch, len(embedding), c.size)
	}

	scored := make([]*storage.ScoredChunk, 0, len(c.chunks))
	for _, chunk := range c.chunks {
		hit := *chunk
		hit.Embedding = nil
		scored = append(scored, &storage.ScoredChunk{Chunk: &hit, Score: cosine(chunk.Embedding, embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *Store) ScanPointIDs(ctx context.Context, name string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, min(limit, len(c.chunks)))
	for _, chunk := range c.chunks {
		if len(ids) == limit {
			break
		}
		ids = append(ids, chunk.ID)
	}
	return ids, nil
}

func (s *Store) UpsertTurn(ctx context.Context, name string, turn *storage.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	if len(turn.Embedding) != c.size {
		return fmt.Errorf("%w: turn has %d dimensions, expected %d",
			storage.ErrDimensionMismatch, len(turn.Embedding), c.size)
	}
	stored := *turn
	c.turns = append(c.turns, &stored)
	return nil
}

func (s *Store) RecentTurns(ctx context.Context, name, sessionID string, limit int) ([]*storage.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	var turns []*storage.ChatTurn
	for _, turn := range c.turns {
		if turn.SessionID == sessionID {
			t := *turn
			turns = append(turns, &t)
		}
	}
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].CreatedAt.After(turns[j].CreatedAt) })
	if len(turns) > limit {
		turns = turns[:limit]
	}
	return turns, nil
}

func (s *Store) GetSession(ctx context.Context, name, sessionID string) (*storage.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	session, ok := c.sessions[sessionID]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	out := *session
	return &out, nil
}

func (s *Store) UpsertSession(ctx context.Context, name string, session *storage.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	stored := *session
	c.sessions[session.SessionID] = &stored
	return nil
}

func (s *Store) TouchSession(ctx context.Context, name, sessionID string, lastActive time.Time, turns int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	session, ok := c.sessions[sessionID]
	if !ok {
		return storage.ErrSessionNotFound
	}
	session.LastActive = lastActive
	session.Turns = turns
	return nil
}

func (s *Store) ListSessions(ctx context.Context, name string, limit int) ([]*storage.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	sessions := make([]*storage.SessionSummary, 0, len(c.sessions))
	for _, session := range c.sessions {
		out := *session
		sessions = append(sessions, &out)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].LastActive.After(sessions[j].LastActive) })
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// get must be called with s.mu held.
func (s *Store) get(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
	}
	return c, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
