// ABOUTME: TrackingCache interface for TTL-bounded dedup entries
// ABOUTME: Shared contract for the badger-backed and in-memory implementations

package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a cache key is absent or expired
var ErrNotFound = errors.New("cache entry not found")

// TrackingCache stores dedup markers with a TTL. Entries are best-effort
// hints, not locks: two concurrent writers may both miss before either
// writes, and an expired entry lets the event be recorded again.
type TrackingCache interface {
	// Has reports whether a live entry exists for the key.
	Has(ctx context.Context, key string) (bool, error)

	// Get returns the value stored under the key.
	// Returns ErrNotFound when absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Put stores a value under the key with the given TTL.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Close releases any resources held by the cache
	Close() error
}
