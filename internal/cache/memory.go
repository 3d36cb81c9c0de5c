// ABOUTME: Thread-safe in-memory implementation of the TrackingCache interface
// ABOUTME: Per-entry TTLs with periodic cleanup; used in tests and ephemeral deployments

package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry stores a value and its expiry time.
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a process-local TrackingCache. Entries do not survive a
// restart, so a deployment using it trades dedup durability for zero setup.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	done    chan struct{}
	closed  bool
}

// NewMemoryCache creates an in-memory cache. A background goroutine
// periodically removes expired entries.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Has reports whether a live entry exists for the key.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return ok && time.Now().Before(entry.expiresAt), nil
}

// Get returns the value stored under the key.
// Returns ErrNotFound when absent or expired.
func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", ErrNotFound
	}
	return entry.value, nil
}

// Put stores a value under the key with the given TTL.
func (c *MemoryCache) Put(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *MemoryCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
	return nil
}

// Ensure MemoryCache implements TrackingCache interface
var _ TrackingCache = (*MemoryCache)(nil)
