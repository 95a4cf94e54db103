package durable

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tasklinehq/taskline"
)

// MemoryCache is a thread-safe in-memory step cache. Suitable for tests and
// single-process runs; results do not survive a restart.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]json.RawMessage),
	}
}

var _ Cache = (*MemoryCache)(nil)

// Get retrieves a cached value by key.
func (m *MemoryCache) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores a value by key.
func (m *MemoryCache) Set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// RedisCache stores step results in Redis, which lets a run interrupted in
// one process replay in another.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache with the given key prefix and
// TTL. A zero TTL keeps results until deleted externally.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

var _ Cache = (*RedisCache)(nil)

// Get retrieves a cached value by key.
func (r *RedisCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, taskline.NewTransientError("durable: redis get failed", err)
	}
	return data, true, nil
}

// Set stores a value by key.
func (r *RedisCache) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := r.client.Set(ctx, r.prefix+key, []byte(value), r.ttl).Err(); err != nil {
		return taskline.NewTransientError("durable: redis set failed", err)
	}
	return nil
}
