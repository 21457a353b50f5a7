// Package cache provides the cache layer in front of the session store,
// with an in-memory LRU for single-instance deployments and an optional
// Redis tier for multi-instance ones.
package cache

import (
	"context"
	"time"
)

// Service defines the cache service interface.
type Service interface {
	// Get retrieves a value from cache.
	// Returns: value, whether it exists
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in cache.
	// ttl: expiration time
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate invalidates cache entries.
	// pattern: supports a trailing wildcard (user:123:*)
	Invalidate(ctx context.Context, pattern string) error
}
