package cache

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// This abstraction allows swapping between memory cache (development)
// and Redis cache (production) without changing business logic.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Take atomically reads and removes a value. Returns ErrCacheMiss if not found.
	Take(ctx context.Context, key string) ([]byte, error)

	// GetOrSet retrieves a value or computes and stores it if missing.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)
}

// Notifier fans out change signals per topic. A signal carries no payload;
// subscribers re-read whatever the topic names.
type Notifier interface {
	// Publish signals every current subscriber of topic.
	Publish(ctx context.Context, topic string) error

	// Subscribe returns a channel that receives a signal per publish.
	// Bursts may be coalesced. The channel closes when ctx ends or the
	// notifier shuts down.
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, error)
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"

	// ErrClosed is returned by a notifier that has been shut down.
	ErrClosed CacheError = "notifier closed"
)

// ItemsTopic names the change topic for one user's pantry items.
func ItemsTopic(userID string) string {
	return "items:" + userID
}
