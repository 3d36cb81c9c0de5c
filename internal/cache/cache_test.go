// ABOUTME: Tests for the TTL dedup cache implementations
// ABOUTME: Runs the same contract against memory and badger backends

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testImplementations(t *testing.T) map[string]TrackingCache {
	t.Helper()

	badgerCache, err := NewInMemoryBadgerCache()
	if err != nil {
		t.Fatalf("NewInMemoryBadgerCache failed: %v", err)
	}

	return map[string]TrackingCache{
		"memory": NewMemoryCache(),
		"badger": badgerCache,
	}
}

func TestCache_PutGetHas(t *testing.T) {
	for name, c := range testImplementations(t) {
		t.Run(name, func(t *testing.T) {
			defer c.Close()
			ctx := context.Background()

			has, err := c.Has(ctx, "missing")
			if err != nil {
				t.Fatalf("Has failed: %v", err)
			}
			if has {
				t.Error("expected miss for unknown key")
			}

			if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			if err := c.Put(ctx, "view-exp-token-abc", "test", time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			has, err = c.Has(ctx, "view-exp-token-abc")
			if err != nil {
				t.Fatalf("Has failed: %v", err)
			}
			if !has {
				t.Error("expected hit after Put")
			}

			value, err := c.Get(ctx, "view-exp-token-abc")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if value != "test" {
				t.Errorf("expected value test, got %q", value)
			}
		})
	}
}

func TestCache_Expiry(t *testing.T) {
	for name, c := range testImplementations(t) {
		t.Run(name, func(t *testing.T) {
			defer c.Close()
			ctx := context.Background()

			if err := c.Put(ctx, "short", "v", 50*time.Millisecond); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			time.Sleep(100 * time.Millisecond)

			has, err := c.Has(ctx, "short")
			if err != nil {
				t.Fatalf("Has failed: %v", err)
			}
			if has {
				t.Error("expected entry to expire")
			}
			if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after expiry, got %v", err)
			}
		})
	}
}

func TestCache_Overwrite(t *testing.T) {
	for name, c := range testImplementations(t) {
		t.Run(name, func(t *testing.T) {
			defer c.Close()
			ctx := context.Background()

			if err := c.Put(ctx, "k", "first", time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := c.Put(ctx, "k", "second", time.Hour); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			value, err := c.Get(ctx, "k")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if value != "second" {
				t.Errorf("expected second, got %q", value)
			}
		})
	}
}

func TestMemoryCache_CloseIdempotent(t *testing.T) {
	c := NewMemoryCache()
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestBadgerCache_Durable(t *testing.T) {
	dir := t.TempDir()

	c, err := NewBadgerCache(dir)
	if err != nil {
		t.Fatalf("NewBadgerCache failed: %v", err)
	}
	ctx := context.Background()
	if err := c.Put(ctx, "persist", "yes", time.Hour); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen and confirm the entry survived
	c, err = NewBadgerCache(dir)
	if err != nil {
		t.Fatalf("reopening cache failed: %v", err)
	}
	defer c.Close()

	value, err := c.Get(ctx, "persist")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if value != "yes" {
		t.Errorf("expected yes, got %q", value)
	}
}
