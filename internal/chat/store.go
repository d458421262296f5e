// Package chat persists chat turns in the vector store and keeps a per-session
// index for listing conversations by recency.
package chat

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/embedding"
	"github.com/bull/semantic-search/internal/storage"
)

const (
	DefaultCollection        = "chat_history"
	DefaultSessionCollection = "chat_sessions"
	DefaultScanLimit         = 1000

	sessionLocks = 64
)

// Options name the collections and bound reads. Zero values select the defaults.
type Options struct {
	Collection        string
	SessionCollection string
	ScanLimit         int
	// Now is the clock used for turn timestamps.
	Now func() time.Time
}

// Store appends turns and reads sessions back.
type Store struct {
	store             storage.VectorStore
	embedder          embedding.TextEmbedder
	collection        string
	sessionCollection string
	scanLimit         int
	now               func() time.Time
	logger            *zap.Logger

	// readyMu guards ready, which is set once both collections and their
	// payload indexes exist.
	readyMu sync.Mutex
	ready   bool

	// locks serialize index updates per session within this process.
	locks [sessionLocks]sync.Mutex
}

func NewStore(store storage.VectorStore, embedder embedding.TextEmbedder, opts Options, logger *zap.Logger) *Store {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.SessionCollection == "" {
		opts.SessionCollection = DefaultSessionCollection
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = DefaultScanLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		store:             store,
		embedder:          embedder,
		collection:        opts.Collection,
		sessionCollection: opts.SessionCollection,
		scanLimit:         opts.ScanLimit,
		now:               opts.Now,
		logger:            logger,
	}
}

// AppendTurn stores one exchange under a fresh UUID and advances the session's
// index entry, creating both collections on first use.
func (s *Store) AppendTurn(ctx context.Context, sessionID, collection, userMessage, botReply string) (*storage.ChatTurn, error) {
	if err := s.ensureCollections(ctx); err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, userMessage)
	if err != nil {
		return nil, fmt.Errorf("embed chat message: %w", err)
	}

	turn := &storage.ChatTurn{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		UserMessage: userMessage,
		BotReply:    botReply,
		Collection:  collection,
		CreatedAt:   s.now().UTC(),
		Embedding:   vec,
	}
	if err := s.store.UpsertTurn(ctx, s.collection, turn); err != nil {
		return nil, err
	}

	if err := s.indexTurn(ctx, turn); err != nil {
		return nil, err
	}

	s.logger.Debug("stored chat turn",
		zap.String("session_id", sessionID),
		zap.String("turn_id", turn.ID))
	return turn, nil
}

func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%sessionLocks]
}

// indexTurn reads the session entry and writes it back with one more turn.
// The read-modify-write is serialized per session here; replicas sharing a
// Qdrant can still interleave and undercount Turns.
func (s *Store) indexTurn(ctx context.Context, turn *storage.ChatTurn) error {
	mu := s.sessionLock(turn.SessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.store.GetSession(ctx, s.sessionCollection, turn.SessionID)
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		return s.store.UpsertSession(ctx, s.sessionCollection, &storage.SessionSummary{
			SessionID:    turn.SessionID,
			FirstMessage: turn.UserMessage,
			StartedAt:    turn.CreatedAt,
			LastActive:   turn.CreatedAt,
			Turns:        1,
			Embedding:    turn.Embedding,
		})
	case err != nil:
		return fmt.Errorf("read session: %w", err)
	}

	lastActive := turn.CreatedAt
	if session.LastActive.After(lastActive) {
		lastActive = session.LastActive
	}
	return s.store.TouchSession(ctx, s.sessionCollection, turn.SessionID, lastActive, session.Turns+1)
}

func (s *Store) ensureCollections(ctx context.Context) error {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	if s.ready {
		return nil
	}

	dim := s.embedder.Dimension()
	if err := s.ensure(ctx, s.collection, dim, s.store.CreateChatCollection, s.store.EnsureChatIndexes); err != nil {
		return err
	}
	if err := s.ensure(ctx, s.sessionCollection, dim, s.store.CreateSessionIndex, s.store.EnsureSessionIndexes); err != nil {
		return err
	}
	s.ready = true
	return nil
}

// ensure creates the collection when missing and then its payload indexes.
// Indexes are created even for a collection that already existed, so a
// collection left without them by an earlier failure is repaired.
func (s *Store) ensure(ctx context.Context, name string, dim int,
	create func(context.Context, string, int) error, indexes func(context.Context, string) error,
) error {
	exists, err := s.store.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check chat collection: %w", err)
	}
	if !exists {
		err := create(ctx, name, dim)
		switch {
		case err == nil:
			s.logger.Info("created chat collection", zap.String("collection", name), zap.Int("vector_size", dim))
		case errors.Is(err, storage.ErrCollectionExists):
			// Created concurrently by another writer.
		default:
			return fmt.Errorf("create chat collection %s: %w", name, err)
		}
	}
	if err := indexes(ctx, name); err != nil {
		return fmt.Errorf("create chat indexes %s: %w", name, err)
	}
	return nil
}

// ListSessions returns sessions, most recently active first. No chat yet means
// an empty list.
func (s *Store) ListSessions(ctx context.Context) ([]*storage.SessionSummary, error) {
	sessions, err := s.store.ListSessions(ctx, s.sessionCollection, s.scanLimit)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return []*storage.SessionSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Replay returns one session's turns in chronological order. Sessions longer
// than the scan limit keep their most recent turns.
func (s *Store) Replay(ctx context.Context, sessionID string) ([]*storage.ChatTurn, error) {
	turns, err := s.store.RecentTurns(ctx, s.collection, sessionID, s.scanLimit)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return []*storage.ChatTurn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replay session: %w", err)
	}
	slices.Reverse(turns)
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].CreatedAt.Before(turns[j].CreatedAt) })
	return turns, nil
}
