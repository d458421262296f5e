package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bull/semantic-search/internal/rag"
	"github.com/bull/semantic-search/internal/storage"
)

// Reply is the outcome of one chat message.
type Reply struct {
	Answer  *rag.Answer
	Turn    *storage.ChatTurn
	History []rag.Turn // Prior turns plus this one
}

// Service answers chat messages and records them.
type Service struct {
	pipeline *rag.Pipeline
	store    *Store
	logger   *zap.Logger
}

func NewService(pipeline *rag.Pipeline, store *Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pipeline: pipeline, store: store, logger: logger}
}

// Store exposes the underlying turn store for listing and replay.
func (s *Service) Store() *Store { return s.store }

// Reply answers message from collection given the prior history, then
// persists the turn. A failure to persist fails the call.
func (s *Service) Reply(ctx context.Context, sessionID, collection, message string, history []rag.Turn) (*Reply, error) {
	answer, err := s.pipeline.Chat(ctx, collection, history, message)
	if err != nil {
		return nil, err
	}

	turn, err := s.store.AppendTurn(ctx, sessionID, collection, message, answer.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: store chat turn: %w", rag.ErrServiceUnavailable, err)
	}

	updated := make([]rag.Turn, 0, len(history)+1)
	updated = append(updated, history...)
	updated = append(updated, rag.Turn{User: message, Assistant: answer.Response})

	s.logger.Info("chat reply",
		zap.String("session_id", sessionID),
		zap.String("collection", collection),
		zap.Int("hits", len(answer.Results)),
		zap.Int("history", len(updated)))
	return &Reply{Answer: answer, Turn: turn, History: updated}, nil
}

// EncodeHistory serialises turns for the chat form's hidden history field.
func EncodeHistory(turns []rag.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeHistory parses the hidden history field. An empty field is no history.
func DecodeHistory(raw string) ([]rag.Turn, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var turns []rag.Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}
	return turns, nil
}

// TurnsToHistory converts stored turns into prompt history.
func TurnsToHistory(turns []*storage.ChatTurn) []rag.Turn {
	history := make([]rag.Turn, 0, len(turns))
	for _, turn := range turns {
		history = append(history, rag.Turn{User: turn.UserMessage, Assistant: turn.BotReply})
	}
	return history
}
