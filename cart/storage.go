package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL is how long an untouched cart survives in Redis.
const SessionTTL = 30 * 24 * time.Hour

// MemoryStorage keeps the serialized cart in process.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStorage(initial []byte) *MemoryStorage {
	return &MemoryStorage{data: initial}
}

func (m *MemoryStorage) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryStorage) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data[:0:0], data...)
	return nil
}

// Bytes returns what was last saved.
func (m *MemoryStorage) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// RedisStorage keeps one session's cart under cart:<session>, refreshing the
// expiry on every read and write.
type RedisStorage struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, sessionID string) *RedisStorage {
	return &RedisStorage{
		client: client,
		key:    "cart:" + sessionID,
		ttl:    SessionTTL,
	}
}

func (r *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.GetEx(ctx, r.key, r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisStorage) Save(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, r.ttl).Err()
}
