package rdx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", addr, err)
	}
	return conn, nil
}

// Locker hands out short-lived SET NX locks.
type Locker struct {
	conn   *redis.Client
	prefix string
}

func NewLocker(conn *redis.Client, prefix string) *Locker {
	return &Locker{conn: conn, prefix: prefix}
}

// Acquire tries to take the lock for key. It never blocks.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.conn.SetNX(ctx, l.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", l.prefix+key, err)
	}
	return ok, nil
}

// Release drops the lock. Failures only log; the TTL frees it eventually.
func (l *Locker) Release(ctx context.Context, key string) {
	if err := l.conn.Del(ctx, l.prefix+key).Err(); err != nil {
		log.Printf("Release: failed for %s, err=%v\n", l.prefix+key, err)
	}
}

// Cache stores JSON-encoded values under a key prefix with a fixed TTL.
type Cache struct {
	conn   *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCache(conn *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{conn: conn, prefix: prefix, ttl: ttl}
}

// Get decodes the cached value into dst. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := c.conn.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", c.prefix+key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", c.prefix+key, err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

func (c *Cache) Del(ctx context.Context, key string) error {
	return c.conn.Del(ctx, c.prefix+key).Err()
}
