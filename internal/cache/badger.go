// ABOUTME: BadgerDB implementation of the TrackingCache interface
// ABOUTME: Durable TTL entries so dedup survives restarts within the window

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCache implements TrackingCache on an embedded BadgerDB. Badger
// expires entries natively, so TTL bookkeeping stays in the storage layer.
type BadgerCache struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerCache opens a durable cache at the given directory.
// The directory is created if needed.
func NewBadgerCache(path string) (*BadgerCache, error) {
	if path == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	logger := slog.Default().With("component", "cache")
	opts := badger.DefaultOptions(path).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger cache: %w", err)
	}

	logger.Info("badger cache initialized", "path", path)
	return &BadgerCache{db: db, logger: logger}, nil
}

// NewInMemoryBadgerCache opens a non-persistent cache, used in tests.
func NewInMemoryBadgerCache() (*BadgerCache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory badger cache: %w", err)
	}
	return &BadgerCache{db: db, logger: slog.Default().With("component", "cache")}, nil
}

// Has reports whether a live entry exists for the key.
func (c *BadgerCache) Has(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the value stored under the key.
// Returns ErrNotFound when absent or expired.
func (c *BadgerCache) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var value string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading cache entry: %w", err)
	}

	return value, nil
}

// Put stores a value under the key with the given TTL.
func (c *BadgerCache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	return nil
}

// Close closes the underlying database
func (c *BadgerCache) Close() error {
	c.logger.Info("closing badger cache")
	return c.db.Close()
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Ensure BadgerCache implements TrackingCache interface
var _ TrackingCache = (*BadgerCache)(nil)
