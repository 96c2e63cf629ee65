// Package session stores the ordered, TTL-bounded chat history of each session.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/newsrag/models"
)

// Store persists chat messages per session id, oldest first.
type Store interface {
	// Load returns the whole history; an unknown or expired session yields an empty slice.
	Load(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	// Append adds msg at the tail and resets the session's time-to-live to ttl.
	Append(ctx context.Context, sessionID string, msg models.ChatMessage, ttl time.Duration) error
	// Clear removes the session and all of its messages.
	Clear(ctx context.Context, sessionID string) error
}

type StoreType string

const (
	RedisStore    StoreType = "redis"
	InMemoryStore StoreType = "inmemory"
)

// HistoryKey is the key holding a session's message list.
func HistoryKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}
