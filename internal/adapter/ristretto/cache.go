// Package ristretto implements the cache port on dgraph-io/ristretto, the
// in-process L1 used for tenant lookups.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is an in-process cache. Set blocks until the write is visible to Get,
// so a caller that stores a mapping can rely on the next read seeing it.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache bounded to maxSizeMB megabytes of values.
func New(maxSizeMB int) (*Cache, error) {
	if maxSizeMB < 1 {
		return nil, fmt.Errorf("ristretto: max size must be at least 1 MB, got %d", maxSizeMB)
	}
	maxCost := int64(maxSizeMB) << 20
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// tenant entries are tiny, so size the admission counters on an
		// average of ~64 bytes per entry including key overhead
		NumCounters: maxCost / 64 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Cache{c: c}, nil
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value. A zero ttl keeps the entry until eviction or Clear.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(key) + len(value))
	if !c.c.SetWithTTL(key, value, cost, ttl) {
		return fmt.Errorf("ristretto: set %q dropped", key)
	}
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear(_ context.Context) error {
	c.c.Clear()
	return nil
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
