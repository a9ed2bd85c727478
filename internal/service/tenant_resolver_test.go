package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/CourseForge/internal/adapter/memstore"
	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
)

func newResolverFixture(t *testing.T) (*TenantResolver, *countingTenantStore, *mapCache, int64) {
	t.Helper()
	base := memstore.New()
	acme, err := base.CreateTenant(context.Background(), tenant.CreateRequest{BusinessName: "Acme Academy"})
	if err != nil {
		t.Fatal(err)
	}
	store := &countingTenantStore{TenantStore: base}
	c := newMapCache()
	return NewTenantResolver(store, NewTenantCache(c, nil)), store, c, acme.ID
}

func TestResolveExplicitTenantID(t *testing.T) {
	r, store, _, _ := newResolverFixture(t)

	id, err := r.Resolve(context.Background(), tenant.Ref{TenantID: " 17 ", BusinessName: "ignored"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 17 {
		t.Fatalf("expected 17, got %d", id)
	}
	if store.calls.Load() != 0 {
		t.Fatalf("explicit id must not query the store, got %d calls", store.calls.Load())
	}
}

func TestResolveInvalidTenantID(t *testing.T) {
	r, _, _, _ := newResolverFixture(t)

	for _, raw := range []string{"abc", "0", "-3", "1.5"} {
		_, err := r.Resolve(context.Background(), tenant.Ref{TenantID: raw})
		if !errors.Is(err, ErrInvalidTenantID) || !errors.Is(err, domain.ErrValidation) {
			t.Errorf("tenantId %q: expected ErrInvalidTenantID, got %v", raw, err)
		}
	}
}

func TestResolveMissingContext(t *testing.T) {
	r, _, _, _ := newResolverFixture(t)

	_, err := r.Resolve(context.Background(), tenant.Ref{BusinessName: "   "})
	if !errors.Is(err, ErrMissingTenantContext) {
		t.Fatalf("expected ErrMissingTenantContext, got %v", err)
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatal("missing tenant context must be a validation error")
	}
}

func TestResolveCachesNormalizedName(t *testing.T) {
	r, store, c, acmeID := newResolverFixture(t)
	ctx := context.Background()

	for _, name := range []string{"Acme Academy", "  acme academy ", "ACME ACADEMY"} {
		id, err := r.Resolve(ctx, tenant.Ref{BusinessName: name})
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if id != acmeID {
			t.Fatalf("%q: expected %d, got %d", name, acmeID, id)
		}
	}
	if got := store.calls.Load(); got != 1 {
		t.Fatalf("expected 1 store lookup, got %d", got)
	}
	if _, ok, _ := c.Get(ctx, "tenant:acme academy"); !ok {
		t.Fatal("expected normalized cache key")
	}
}

// Scenario F: absent names are never cached.
func TestResolveUnknownNameNotCached(t *testing.T) {
	r, store, c, _ := newResolverFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(ctx, tenant.Ref{BusinessName: "Nowhere Inc"})
		if !errors.Is(err, ErrTenantNotFound) || !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("call %d: expected ErrTenantNotFound, got %v", i, err)
		}
	}
	if got := store.calls.Load(); got != 2 {
		t.Fatalf("expected a fresh lookup per call, got %d", got)
	}
	if c.len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.len())
	}
}

func TestResolveCacheErrorFallsBackToStore(t *testing.T) {
	r, store, c, acmeID := newResolverFixture(t)
	c.getErr = errors.New("cache down")

	id, err := r.Resolve(context.Background(), tenant.Ref{BusinessName: "Acme Academy"})
	if err != nil {
		t.Fatal(err)
	}
	if id != acmeID || store.calls.Load() != 1 {
		t.Fatalf("expected store fallback, got id=%d calls=%d", id, store.calls.Load())
	}
}

func TestResolveConcurrentMissesShareLookup(t *testing.T) {
	r, store, _, acmeID := newResolverFixture(t)
	store.started = make(chan struct{})
	store.release = make(chan struct{})

	const n = 16
	var wg sync.WaitGroup
	ids := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = r.Resolve(context.Background(), tenant.Ref{BusinessName: "acme academy"})
		}(i)
	}

	<-store.started
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil || ids[i] != acmeID {
			t.Fatalf("caller %d: id=%d err=%v", i, ids[i], errs[i])
		}
	}
	if got := store.calls.Load(); got != 1 {
		t.Fatalf("expected 1 shared lookup, got %d", got)
	}
}

func TestResolveCancelOnlyFailsCanceledCaller(t *testing.T) {
	r, store, _, acmeID := newResolverFixture(t)
	store.started = make(chan struct{})
	store.release = make(chan struct{})

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctxA, tenant.Ref{BusinessName: "Acme Academy"})
		errA <- err
	}()
	<-store.started

	type result struct {
		id  int64
		err error
	}
	resB := make(chan result, 1)
	go func() {
		id, err := r.Resolve(context.Background(), tenant.Ref{BusinessName: "acme academy"})
		resB <- result{id, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller: expected context.Canceled, got %v", err)
	}

	close(store.release)
	got := <-resB
	if got.err != nil || got.id != acmeID {
		t.Fatalf("live caller: id=%d err=%v", got.id, got.err)
	}
	if n := store.calls.Load(); n != 1 {
		t.Fatalf("expected 1 shared lookup, got %d", n)
	}
}

func TestResolveStorageFailure(t *testing.T) {
	r, store, _, _ := newResolverFixture(t)
	store.release = make(chan struct{})
	t.Cleanup(func() { close(store.release) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, tenant.Ref{BusinessName: "Acme Academy"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatal("storage failure must not look like not found")
	}
}

func TestResetClearsCache(t *testing.T) {
	r, store, c, _ := newResolverFixture(t)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, tenant.Ref{BusinessName: "Acme Academy"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if c.len() != 0 {
		t.Fatal("expected empty cache after reset")
	}
	if _, err := r.Resolve(ctx, tenant.Ref{BusinessName: "Acme Academy"}); err != nil {
		t.Fatal(err)
	}
	if got := store.calls.Load(); got != 2 {
		t.Fatalf("expected lookup after reset, got %d calls", got)
	}
}
