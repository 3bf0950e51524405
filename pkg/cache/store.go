// Package cache implements the two-tier result cache: a byte store keyed by
// opaque strings, and the content/identity key scheme layered on top.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Store is a flat key-value store with per-entry TTL. Implementations must
// be safe for concurrent use.
type Store interface {
	// Get returns the stored bytes, or an error wrapping ErrCacheMiss when
	// the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A ttl of zero or less means the
	// entry must not be stored; any previous value under the key is removed.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
}
