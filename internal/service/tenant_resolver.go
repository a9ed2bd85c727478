package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

var (
	// ErrMissingTenantContext means neither a tenant id nor a business name
	// was supplied.
	ErrMissingTenantContext = fmt.Errorf("businessName or tenantId is required: %w", domain.ErrValidation)

	// ErrInvalidTenantID means the supplied tenant id is not a positive integer.
	ErrInvalidTenantID = fmt.Errorf("tenantId must be a positive integer: %w", domain.ErrValidation)

	// ErrTenantNotFound means no tenant carries the business name or id.
	ErrTenantNotFound = database.ErrTenantNotFound
)

// lookupTimeout bounds a shared tenant lookup once it is detached from the
// caller that started it.
const lookupTimeout = 10 * time.Second

// TenantResolver turns a tenant reference into a tenant id.
type TenantResolver struct {
	store database.TenantStore
	cache *TenantCache
	group singleflight.Group
}

// NewTenantResolver creates a resolver backed by store and cache.
func NewTenantResolver(store database.TenantStore, cache *TenantCache) *TenantResolver {
	return &TenantResolver{store: store, cache: cache}
}

// Resolve returns the tenant id for ref. An explicit tenant id wins and is
// returned without a lookup. Business names are looked up once per process;
// concurrent misses for the same name share one store query.
func (r *TenantResolver) Resolve(ctx context.Context, ref tenant.Ref) (int64, error) {
	if raw := strings.TrimSpace(ref.TenantID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, ErrInvalidTenantID
		}
		return id, nil
	}

	name := strings.TrimSpace(ref.BusinessName)
	if name == "" {
		return 0, ErrMissingTenantContext
	}

	if id, ok := r.cache.Lookup(ctx, name); ok {
		return id, nil
	}

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("resolve tenant %q: %w", name, err)
	}

	// The shared lookup outlives any single caller; each caller still
	// stops waiting when its own context ends.
	key := tenant.NormalizeBusinessName(name)
	ch := r.group.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		slog.DebugContext(lookupCtx, "tenant cache miss", "business_name", name)
		id, err := r.store.FindTenantIDByBusinessName(lookupCtx, name)
		if err != nil {
			return int64(0), err
		}
		r.cache.Store(lookupCtx, name, id)
		return id, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("resolve tenant %q: %w", name, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		if errors.Is(res.Err, domain.ErrNotFound) {
			return 0, fmt.Errorf("%w: %q", ErrTenantNotFound, name)
		}
		return 0, fmt.Errorf("resolve tenant %q: %w", name, res.Err)
	}
	if res.Shared {
		slog.DebugContext(ctx, "tenant lookup shared", "business_name", name)
	}
	return res.Val.(int64), nil
}

// Reset empties the tenant cache.
func (r *TenantResolver) Reset(ctx context.Context) error {
	return r.cache.Reset(ctx)
}
