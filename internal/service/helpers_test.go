package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/CourseForge/internal/adapter/memstore"
	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/cache"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

var (
	_ cache.Cache   = (*mapCache)(nil)
	_ cache.Clearer = (*mapCache)(nil)
)

// mapCache is an in-memory cache.Cache for tests.
type mapCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// countingTenantStore counts lookups and can block them until released.
type countingTenantStore struct {
	database.TenantStore
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *countingTenantStore) FindTenantIDByBusinessName(ctx context.Context, name string) (int64, error) {
	s.calls.Add(1)
	if s.started != nil {
		s.once.Do(func() { close(s.started) })
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return s.TenantStore.FindTenantIDByBusinessName(ctx, name)
}

// failingEnrollmentStore fails every enrollment call with err.
type failingEnrollmentStore struct {
	database.EnrollmentStore
	err   error
	calls atomic.Int32
}

func (s *failingEnrollmentStore) CreateEnrollmentRequest(context.Context, int64, *enrollment.NewRequest) (*enrollment.Request, error) {
	s.calls.Add(1)
	return nil, s.err
}

func (s *failingEnrollmentStore) ListEnrollmentRequests(context.Context, int64, enrollment.Filter) ([]enrollment.Request, error) {
	s.calls.Add(1)
	return nil, s.err
}

func (s *failingEnrollmentStore) GetEnrollmentRequest(context.Context, int64, int64) (*enrollment.Request, error) {
	s.calls.Add(1)
	return nil, s.err
}

// recordingPublisher keeps published subjects.
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *recordingPublisher) PublishEnrollment(_ context.Context, subject string, _ *enrollment.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

// recordingBroadcaster keeps broadcast event types per tenant.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
	tenant []int64
}

func (b *recordingBroadcaster) BroadcastEvent(_ context.Context, tenantID int64, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
	b.tenant = append(b.tenant, tenantID)
}

type fixture struct {
	store    *memstore.Store
	svc      *EnrollmentService
	resolver *TenantResolver
	acme     *tenant.Tenant
	globex   *tenant.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	acme, err := store.CreateTenant(ctx, tenant.CreateRequest{BusinessName: "Acme Academy"})
	if err != nil {
		t.Fatal(err)
	}
	globex, err := store.CreateTenant(ctx, tenant.CreateRequest{BusinessName: "Globex School"})
	if err != nil {
		t.Fatal(err)
	}
	resolver := NewTenantResolver(store, NewTenantCache(newMapCache(), nil))
	svc := NewEnrollmentService(store, resolver, EnrollmentOptions{MaxListLimit: 500})
	return &fixture{store: store, svc: svc, resolver: resolver, acme: acme, globex: globex}
}

func validPayload(businessName, email string) *enrollment.CreatePayload {
	return &enrollment.CreatePayload{
		BusinessName:         businessName,
		CourseID:             "course-42",
		CourseTitle:          "Go for Backend Engineers",
		LearnerName:          "Awa Diop",
		LearnerEmail:         email,
		PaymentMethod:        "wave",
		TransactionReference: "TX-1001",
		ProofURL:             "https://files.example.com/proof.png",
		ProofFilename:        "proof.png",
	}
}
