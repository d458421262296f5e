package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

var (
	chatIndexes = map[string]qdrant.FieldType{
		fieldSessionID: qdrant.FieldType_FieldTypeKeyword,
		fieldCreatedAt: qdrant.FieldType_FieldTypeInteger,
	}
	sessionIndexes = map[string]qdrant.FieldType{
		fieldSessionID:  qdrant.FieldType_FieldTypeKeyword,
		fieldLastActive: qdrant.FieldType_FieldTypeInteger,
	}
)

// CreateChatCollection creates the chat-turn collection with the payload indexes
// needed to filter by session and order by timestamp.
func (s *QdrantStorage) CreateChatCollection(ctx context.Context, name string, vectorSize int) error {
	if err := s.CreateCollection(ctx, name, vectorSize); err != nil {
		return err
	}
	return s.EnsureChatIndexes(ctx, name)
}

// EnsureChatIndexes creates the chat payload indexes. Qdrant treats an existing
// index as success, so this is safe to repeat.
func (s *QdrantStorage) EnsureChatIndexes(ctx context.Context, name string) error {
	return s.createPayloadIndexes(ctx, name, chatIndexes)
}

// CreateSessionIndex creates the session index collection. Points are keyed by
// session and ordered by last activity.
func (s *QdrantStorage) CreateSessionIndex(ctx context.Context, name string, vectorSize int) error {
	if err := s.CreateCollection(ctx, name, vectorSize); err != nil {
		return err
	}
	return s.EnsureSessionIndexes(ctx, name)
}

// EnsureSessionIndexes creates the session index payload indexes.
func (s *QdrantStorage) EnsureSessionIndexes(ctx context.Context, name string) error {
	return s.createPayloadIndexes(ctx, name, sessionIndexes)
}

// UpsertTurn stores one chat turn as a point.
func (s *QdrantStorage) UpsertTurn(ctx context.Context, collection string, turn *ChatTurn) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(turn.ID),
		Vectors: qdrant.NewVectors(turn.Embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			fieldSessionID:   turn.SessionID,
			fieldUserMessage: turn.UserMessage,
			fieldBotReply:    turn.BotReply,
			fieldCollection:  turn.Collection,
			fieldCreatedAt:   turn.CreatedAt.UnixMilli(),
		}),
	}
	if err := s.upsert(ctx, collection, []*qdrant.PointStruct{point}); err != nil {
		return fmt.Errorf("failed to store chat turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest limit turns of one session, newest first.
func (s *QdrantStorage) RecentTurns(ctx context.Context, collection, sessionID string, limit int) ([]*ChatTurn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(fieldSessionID, sessionID),
			},
		},
		OrderBy: &qdrant.OrderBy{
			Key:       fieldCreatedAt,
			Direction: qdrant.Direction_Desc.Enum(),
		},
		Limit:       qdrant.PtrOf(uint32(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll chat turns: %w", classify(err))
	}

	turns := make([]*ChatTurn, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		turns = append(turns, &ChatTurn{
			ID:          fromPointID(result.Id),
			SessionID:   payload[fieldSessionID].GetStringValue(),
			UserMessage: payload[fieldUserMessage].GetStringValue(),
			BotReply:    payload[fieldBotReply].GetStringValue(),
			Collection:  payload[fieldCollection].GetStringValue(),
			CreatedAt:   time.UnixMilli(payload[fieldCreatedAt].GetIntegerValue()).UTC(),
		})
	}
	return turns, nil
}

// UpsertSession writes a full session index entry, including its vector.
func (s *QdrantStorage) UpsertSession(ctx context.Context, collection string, session *SessionSummary) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(sessionPointID(session.SessionID)),
		Vectors: qdrant.NewVectors(session.Embedding...),
		Payload: qdrant.NewValueMap(sessionPayload(session)),
	}
	if err := s.upsert(ctx, collection, []*qdrant.PointStruct{point}); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// TouchSession advances an existing entry's activity time and turn count.
func (s *QdrantStorage) TouchSession(ctx context.Context, collection, sessionID string, lastActive time.Time, turns int) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Payload: qdrant.NewValueMap(map[string]any{
			fieldLastActive: lastActive.UnixMilli(),
			fieldTurns:      int64(turns),
		}),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDUUID(sessionPointID(sessionID))),
	})
	if err != nil {
		return fmt.Errorf("failed to update session: %w", classify(err))
	}
	return nil
}

// GetSession returns one session index entry or ErrSessionNotFound.
func (s *QdrantStorage) GetSession(ctx context.Context, collection, sessionID string) (*SessionSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(sessionPointID(sessionID))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrSessionNotFound
	}
	return sessionFromPayload(results[0].Payload), nil
}

// ListSessions returns up to limit sessions, most recently active first.
func (s *QdrantStorage) ListSessions(ctx context.Context, collection string, limit int) ([]*SessionSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		OrderBy: &qdrant.OrderBy{
			Key:       fieldLastActive,
			Direction: qdrant.Direction_Desc.Enum(),
		},
		Limit:       qdrant.PtrOf(uint32(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", classify(err))
	}

	sessions := make([]*SessionSummary, 0, len(results))
	for _, result := range results {
		sessions = append(sessions, sessionFromPayload(result.Payload))
	}
	return sessions, nil
}

func sessionPayload(session *SessionSummary) map[string]any {
	return map[string]any{
		fieldSessionID:  session.SessionID,
		fieldFirstMsg:   session.FirstMessage,
		fieldStartedAt:  session.StartedAt.UnixMilli(),
		fieldLastActive: session.LastActive.UnixMilli(),
		fieldTurns:      int64(session.Turns),
	}
}

func sessionFromPayload(payload map[string]*qdrant.Value) *SessionSummary {
	return &SessionSummary{
		SessionID:    payload[fieldSessionID].GetStringValue(),
		FirstMessage: payload[fieldFirstMsg].GetStringValue(),
		StartedAt:    time.UnixMilli(payload[fieldStartedAt].GetIntegerValue()).UTC(),
		LastActive:   time.UnixMilli(payload[fieldLastActive].GetIntegerValue()).UTC(),
		Turns:        int(payload[fieldTurns].GetIntegerValue()),
	}
}
