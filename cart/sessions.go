package cart

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionHeader carries the shopper's cart session id in both directions.
const SessionHeader = "X-Cart-Session"

// Sessions opens the Store that belongs to a cart session id.
type Sessions struct {
	storage func(sessionID string) Storage
}

// RedisSessions keeps carts in Redis, one key per session.
func RedisSessions(client *redis.Client) *Sessions {
	return &Sessions{storage: func(id string) Storage { return NewRedisStorage(client, id) }}
}

// MemorySessions keeps carts in process. Used by tests and local runs.
func MemorySessions() *Sessions {
	var mu sync.Mutex
	byID := make(map[string]*MemoryStorage)
	return &Sessions{storage: func(id string) Storage {
		mu.Lock()
		defer mu.Unlock()
		s, ok := byID[id]
		if !ok {
			s = NewMemoryStorage(nil)
			byID[id] = s
		}
		return s
	}}
}

func (s *Sessions) Open(ctx context.Context, sessionID string) (*Store, error) {
	return Open(ctx, s.storage(sessionID))
}

// SessionID returns the request's cart session and whether it was supplied.
// Missing or malformed ids get a fresh one.
func SessionID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if _, err := uuid.Parse(id); err == nil {
		return id, true
	}
	return uuid.NewString(), false
}
