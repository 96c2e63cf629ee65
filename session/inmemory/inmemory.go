package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/newsrag/models"
)

type history struct {
	messages  []models.ChatMessage
	expiresAt time.Time
}

// Store is a process-local history store. Expired sessions are dropped lazily
// on access.
type Store struct {
	sessions map[string]*history
	mu       sync.Mutex
	now      func() time.Time
}

func NewInMemorySessionStore() *Store {
	return &Store{sessions: make(map[string]*history), now: time.Now}
}

// WithClock replaces the time source used for expiry.
func (store *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		store.now = now
	}
	return store
}

func (store *Store) live(id string) *history {
	h, ok := store.sessions[id]
	if !ok {
		return nil
	}
	if !store.now().Before(h.expiresAt) {
		delete(store.sessions, id)
		return nil
	}
	return h
}

func (store *Store) Load(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	h := store.live(sessionID)
	if h == nil {
		return []models.ChatMessage{}, nil
	}
	return append([]models.ChatMessage(nil), h.messages...), nil
}

func (store *Store) Append(_ context.Context, sessionID string, msg models.ChatMessage, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	h := store.live(sessionID)
	if h == nil {
		h = &history{}
		store.sessions[sessionID] = h
	}
	h.messages = append(h.messages, msg)
	h.expiresAt = store.now().Add(ttl)
	return nil
}

func (store *Store) Clear(_ context.Context, sessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, sessionID)
	return nil
}

// TTL reports the remaining lifetime of a session, or zero when absent.
func (store *Store) TTL(sessionID string) time.Duration {
	store.mu.Lock()
	defer store.mu.Unlock()
	h := store.live(sessionID)
	if h == nil {
		return 0
	}
	return h.expiresAt.Sub(store.now())
}
