package storage

import (
	"context"
	"time"
)

// Chunk is one stored unit of text with its embedding.
// Chunks are add-only: they are never updated in place.
type Chunk struct {
	ID         string    // Decimal integer ("42") or UUID
	Text       string    // Chunk text body
	Category   string    // Optional category label
	Source     string    // Optional source filename (PDF uploads)
	ChunkIndex int       // Position within the source document, -1 when not chunked
	Embedding  []float32 // Must match the collection's vector size
}

// ScoredChunk is a search hit with its cosine similarity score.
type ScoredChunk struct {
	*Chunk
	Score float64
}

// ChatTurn is one user/assistant exchange. The embedding (of the user message)
// only makes the turn storable as a point; nothing searches over it.
type ChatTurn struct {
	ID          string // Fresh UUID per turn
	SessionID   string
	UserMessage string
	BotReply    string
	Collection  string // Collection the reply was grounded in
	CreatedAt   time.Time
	Embedding   []float32
}

// SessionSummary is the per-session entry of the session index.
type SessionSummary struct {
	SessionID    string
	FirstMessage string
	StartedAt    time.Time
	LastActive   time.Time
	Turns        int
	Embedding    []float32 // Embedding of FirstMessage
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	Name        string
	PointsCount uint64
	VectorSize  uint64
}

// VectorStore is the vector database surface the application uses.
// QdrantStorage is the production implementation; memory.Store backs tests.
type VectorStore interface {
	Health(ctx context.Context) error
	Close() error

	ListCollections(ctx context.Context) ([]string, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, vectorSize int) error
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	UpsertChunks(ctx context.Context, collection string, chunks []*Chunk) error
	SearchChunks(ctx context.Context, collection string, embedding []float32, limit int) ([]*ScoredChunk, error)
	ScanPointIDs(ctx context.Context, collection string, limit int) ([]string, error)

	CreateChatCollection(ctx context.Context, name string, vectorSize int) error
	EnsureChatIndexes(ctx context.Context, name string) error
	UpsertTurn(ctx context.Context, collection string, turn *ChatTurn) error
	// RecentTurns returns the newest limit turns of a session, newest first.
	RecentTurns(ctx context.Context, collection, sessionID string, limit int) ([]*ChatTurn, error)

	CreateSessionIndex(ctx context.Context, name string, vectorSize int) error
	EnsureSessionIndexes(ctx context.Context, name string) error
	GetSession(ctx context.Context, collection, sessionID string) (*SessionSummary, error)
	UpsertSession(ctx context.Context, collection string, session *SessionSummary) error
	TouchSession(ctx context.Context, collection, sessionID string, lastActive time.Time, turns int) error
	ListSessions(ctx context.Context, collection string, limit int) ([]*SessionSummary, error)
}

// Payload keys. "text" and "category" match points written by earlier tooling.
const (
	fieldText        = "text"
	fieldCategory    = "category"
	fieldSource      = "source"
	fieldChunkIndex  = "chunk_index"
	fieldSessionID   = "session_id"
	fieldUserMessage = "user_message"
	fieldBotReply    = "bot_reply"
	fieldCollection  = "collection_name"
	fieldCreatedAt   = "created_at"
	fieldFirstMsg    = "first_message"
	fieldStartedAt   = "started_at"
	fieldLastActive  = "last_active"
	fieldTurns       = "turns"
)
