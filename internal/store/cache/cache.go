// Package cache abstracts a TTL key-value cache so callers don't care
// whether it is backed by process memory or redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss means the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores marshaled values with a TTL.
type Cache interface {
	// Get unmarshals the cached value into dest, or returns ErrMiss.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Delete removes a key.
	Delete(ctx context.Context, key string) error
}
