package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key is absent or its TTL has elapsed.
var ErrNotFound = errors.New("key not found or expired")

// Store is the short-lived secure store bridging the initiation and callback
// hops of an authorization flow. Values expire after a per-key TTL and are
// never returned past it, whether or not a sweeper has run. Implementations
// must be safe for concurrent use; flows do not interfere with each other
// because each is keyed by an unguessable state value.
//
//go:generate mockgen -source=$GOFILE -destination=../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	// GetAndDelete atomically reads and removes a key. This is the single-use
	// guarantee behind state replay protection.
	GetAndDelete(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// SetJSON marshals v and stores it under key with the given TTL.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// GetJSON reads key and unmarshals it into out.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal value for %q: %w", key, err)
	}
	return nil
}

// TakeJSON atomically consumes key and unmarshals it into out.
func TakeJSON(ctx context.Context, s Store, key string, out any) error {
	data, err := s.GetAndDelete(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal value for %q: %w", key, err)
	}
	return nil
}
