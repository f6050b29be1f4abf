// Package markers stores the last caption each user was shown, so a rating
// session can resume where it left off.
package markers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "rate_last_seen_caption_id:"

func markerKey(userID string) string {
	return keyPrefix + userID
}

// RedisStore keeps markers in redis. A zero ttl keeps them forever.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewClient creates a go-redis client from a URL (e.g., "redis://localhost:6379")
// and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisStore(rdb *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (string, bool, error) {
	id, err := s.rdb.Get(ctx, markerKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get marker: %w", err)
	}
	return id, id != "", nil
}

func (s *RedisStore) Set(ctx context.Context, userID, itemID string) error {
	if err := s.rdb.Set(ctx, markerKey(userID), itemID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set marker: %w", err)
	}
	return nil
}

// MemoryStore keeps markers in process memory. Used when no redis is configured.
type MemoryStore struct {
	mu  sync.RWMutex
	ids map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: map[string]string{}}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[userID]
	return id, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[userID] = itemID
	return nil
}
