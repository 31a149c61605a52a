package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store using ttlcache. It is process-local: state
// does not survive a restart and is not shared across instances, so it is
// suitable for single-instance deployments only. Horizontal scaling requires
// the Redis store instead.
type MemoryStore struct {
	cache *ttlcache.Cache[string, []byte]

	// mu serializes GetAndDelete so two concurrent callbacks replaying the
	// same state cannot both observe the value before either deletes it.
	mu sync.Mutex
}

// NewMemoryStore creates a new in-memory store with background cleanup.
// Expiry is also checked lazily on every lookup, so the sweeper is an
// optimization, not a correctness requirement.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryStore{
		cache: cache,
	}
}

// Set implements Store.Set. Each key carries its own TTL; minutes-scale flow
// context and weeks-scale client credentials coexist in the same cache.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

// GetAndDelete implements Store.GetAndDelete.
func (s *MemoryStore) GetAndDelete(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrNotFound
	}
	value := item.Value()
	s.cache.Delete(key)

	return value, nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)

	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cache.Stop()

	return nil
}
