// Package service implements business logic on top of ports.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	cfotel "github.com/Strob0t/CourseForge/internal/adapter/otel"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/cache"
)

const tenantKeyPrefix = "tenant:"

// ErrCacheNotResettable is returned by Reset when the backing cache cannot
// be cleared.
var ErrCacheNotResettable = errors.New("tenant cache backend does not support clear")

// TenantCache maps normalized business names to tenant ids. Entries never
// expire; a renamed tenant keeps its old mapping until Reset or restart.
type TenantCache struct {
	backend cache.Cache
	metrics *cfotel.Metrics
}

// NewTenantCache wraps backend. metrics may be nil.
func NewTenantCache(backend cache.Cache, metrics *cfotel.Metrics) *TenantCache {
	return &TenantCache{backend: backend, metrics: metrics}
}

func tenantKey(businessName string) string {
	return tenantKeyPrefix + tenant.NormalizeBusinessName(businessName)
}

// Lookup returns the cached id for businessName. Backend failures are logged
// and reported as a miss.
func (c *TenantCache) Lookup(ctx context.Context, businessName string) (int64, bool) {
	key := tenantKey(businessName)
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "tenant cache get failed", "key", key, "error", err)
		ok = false
	}
	if ok {
		id, perr := strconv.ParseInt(string(data), 10, 64)
		if perr == nil && id > 0 {
			c.metrics.RecordCacheHit(ctx)
			return id, true
		}
		slog.WarnContext(ctx, "tenant cache entry corrupt", "key", key)
	}
	c.metrics.RecordCacheMiss(ctx)
	return 0, false
}

// Store records the mapping without expiry.
func (c *TenantCache) Store(ctx context.Context, businessName string, id int64) {
	key := tenantKey(businessName)
	if err := c.backend.Set(ctx, key, []byte(strconv.FormatInt(id, 10)), 0); err != nil {
		slog.WarnContext(ctx, "tenant cache set failed", "key", key, "error", err)
	}
}

// Reset drops every cached mapping.
func (c *TenantCache) Reset(ctx context.Context) error {
	clr, ok := c.backend.(cache.Clearer)
	if !ok {
		return ErrCacheNotResettable
	}
	return clr.Clear(ctx)
}
