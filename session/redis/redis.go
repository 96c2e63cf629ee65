package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/newsrag/models"
	"github.com/mohammad-safakhou/newsrag/session"
	"github.com/redis/go-redis/v9"
)

// Store keeps each history as a Redis list of JSON-encoded messages.
type Store struct {
	client redis.UniversalClient
}

func NewRedisSessionStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (store *Store) Load(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	raw, err := store.client.LRange(ctx, session.HistoryKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", sessionID, err)
	}
	out := make([]models.ChatMessage, 0, len(raw))
	for i, entry := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("decode history %s[%d]: %w", sessionID, i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Append pushes and re-arms the expiry in one MULTI/EXEC so the key never
// outlives or undercuts ttl.
func (store *Store) Append(ctx context.Context, sessionID string, msg models.ChatMessage, ttl time.Duration) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := session.HistoryKey(sessionID)
	_, err = store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history %s: %w", sessionID, err)
	}
	return nil
}

func (store *Store) Clear(ctx context.Context, sessionID string) error {
	if err := store.client.Del(ctx, session.HistoryKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear history %s: %w", sessionID, err)
	}
	return nil
}
