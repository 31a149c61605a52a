package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.flowdeck.io/connect/cache"
)

// Store implements the cache.Store interface using Redis. This is the
// deployment-grade variant of the secure store: per-key TTL is enforced by
// Redis itself and GETDEL gives atomic single-use semantics across every
// instance of the service, so the flow survives horizontal scaling.
type Store struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewStore creates a new [Store] instance.
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the Redis key for a given store key.
func (r *Store) redisKey(key string) string {
	return fmt.Sprintf("%s:authflow:%s", r.prefix, key)
}

// Set stores a value with its TTL in Redis.
func (r *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key in Redis: %w", err)
	}
	return nil
}

// Get retrieves a value from Redis. Expired keys are evicted by Redis, so a
// missing key and an expired key are indistinguishable here.
func (r *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key from Redis: %w", err)
	}
	return val, nil
}

// GetAndDelete atomically consumes a key via GETDEL.
func (r *Store) GetAndDelete(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.GetDel(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume key from Redis: %w", err)
	}
	return val, nil
}

// Delete removes a key from Redis.
func (r *Store) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key from Redis: %w", err)
	}
	return nil
}
