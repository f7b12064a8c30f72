// Package cache implements the TTL Cache component.
//
// Entries are opaque byte slices with a per-entry time-to-live. Two
// backends are provided:
//   - Memory: in-process map with lazy expiry and a background sweeper
//   - Redis: shared cache for multiple gateway instances
//
// Callers own their TTL classes and must treat any error other than
// ErrNotFound as a degraded cache, falling back to a direct fetch.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: not found")

// Store is a key/value cache with per-entry TTL.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous entry.
	// A non-positive ttl is a no-op.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete invalidates key.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error

	Close() error
}
