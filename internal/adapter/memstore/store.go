// Package memstore is an in-memory implementation of the database ports,
// used by tests and local demos. It enforces the same tenant scoping and
// review-field rules as the PostgreSQL store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

// Store implements database.Store in memory.
type Store struct {
	mu       sync.RWMutex
	tenants  map[int64]tenant.Tenant
	requests map[int64]enrollment.Request
	nextTID  int64
	nextRID  int64

	// Now is the store clock for submittedAt and reviewedAt.
	Now func() time.Time
}

var _ database.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		tenants:  make(map[int64]tenant.Tenant),
		requests: make(map[int64]enrollment.Request),
		Now:      time.Now,
	}
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *Store) Ping(ctx context.Context) error { return checkCtx(ctx) }

// --- Tenants ---

func (s *Store) FindTenantIDByBusinessName(ctx context.Context, name string) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if strings.EqualFold(t.BusinessName, name) {
			return t.ID, nil
		}
	}
	return 0, fmt.Errorf("find tenant %q: %w", name, domain.ErrNotFound)
}

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.BusinessName)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if strings.EqualFold(t.BusinessName, name) {
			return nil, fmt.Errorf("create tenant %q: %w", name, database.ErrTenantNameTaken)
		}
	}
	s.nextTID++
	t := tenant.Tenant{ID: s.nextTID, BusinessName: name, CreatedAt: s.Now()}
	s.tenants[t.ID] = t
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Enrollment requests ---

func (s *Store) CreateEnrollmentRequest(ctx context.Context, tenantID int64, req *enrollment.NewRequest) (*enrollment.Request, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = enrollment.StatusPending
	}
	if status != enrollment.StatusPending && req.Review == nil {
		return nil, fmt.Errorf("create enrollment request: status %s without review: %w", status, domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("create enrollment request for tenant %d: %w", tenantID, database.ErrTenantNotFound)
	}

	s.nextRID++
	now := s.Now()
	r := enrollment.Request{
		ID:                   s.nextRID,
		TenantID:             tenantID,
		BusinessName:         t.BusinessName,
		CourseID:             req.CourseID,
		CourseTitle:          req.CourseTitle,
		CoursePriceCents:     clone(req.CoursePriceCents),
		Currency:             req.Currency,
		AmountLabel:          clone(req.AmountLabel),
		UserID:               clone(req.UserID),
		LearnerName:          req.LearnerName,
		LearnerEmail:         req.LearnerEmail,
		PaymentMethod:        req.PaymentMethod,
		TransactionReference: req.TransactionReference,
		Notes:                clone(req.Notes),
		ProofURL:             req.ProofURL,
		ProofFilename:        req.ProofFilename,
		SubmittedAt:          now,
	}
	applyReview(&r, status, req.Review, now)
	s.requests[r.ID] = r
	return &r, nil
}

func (s *Store) ListEnrollmentRequests(ctx context.Context, tenantID int64, f enrollment.Filter) ([]enrollment.Request, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	search := strings.ToLower(f.Search)

	s.mu.RLock()
	out := []enrollment.Request{}
	for _, r := range s.requests {
		switch {
		case r.TenantID != tenantID:
		case f.Status != "" && r.Status != f.Status:
		case search != "" && !matchesSearch(&r, search):
		case f.LearnerEmail != "" && !strings.EqualFold(r.LearnerEmail, f.LearnerEmail):
		case f.UserID != nil && (r.UserID == nil || *r.UserID != *f.UserID):
		default:
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesSearch(r *enrollment.Request, term string) bool {
	return strings.Contains(strings.ToLower(r.LearnerName), term) ||
		strings.Contains(strings.ToLower(r.LearnerEmail), term) ||
		strings.Contains(strings.ToLower(r.CourseTitle), term)
}

func (s *Store) GetEnrollmentRequest(ctx context.Context, tenantID, id int64) (*enrollment.Request, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok || r.TenantID != tenantID {
		return nil, fmt.Errorf("get enrollment request %d: %w", id, database.ErrRequestNotFound)
	}
	return &r, nil
}

func (s *Store) UpdateEnrollmentStatus(ctx context.Context, tenantID, id int64, d *enrollment.Decision) (*enrollment.Request, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.TenantID != tenantID {
		return nil, fmt.Errorf("update enrollment request %d: %w", id, database.ErrRequestNotFound)
	}
	applyReview(&r, d.Status, d, s.Now())
	s.requests[id] = r
	return &r, nil
}

// EnrollmentMetrics counts over every request of the tenant.
func (s *Store) EnrollmentMetrics(ctx context.Context, tenantID int64, since time.Time) (enrollment.Counts, error) {
	if err := checkCtx(ctx); err != nil {
		return enrollment.Counts{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]enrollment.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if r.TenantID == tenantID {
			rows = append(rows, r)
		}
	}
	return enrollment.CountRows(rows, since), nil
}

// Seed stores a request as is, for fixtures that need exact timestamps.
// The tenant must exist.
func (s *Store) Seed(r enrollment.Request) (*enrollment.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[r.TenantID]
	if !ok {
		return nil, fmt.Errorf("seed: tenant %d: %w", r.TenantID, domain.ErrNotFound)
	}
	s.nextRID++
	r.ID = s.nextRID
	r.BusinessName = t.BusinessName
	s.requests[r.ID] = r
	return &r, nil
}

// applyReview sets or clears all review fields together.
func applyReview(r *enrollment.Request, status enrollment.Status, d *enrollment.Decision, now time.Time) {
	r.Status = status
	if status == enrollment.StatusPending {
		r.ReviewerID, r.ReviewerName, r.ReviewNotes, r.ReviewedAt = nil, nil, nil, nil
		return
	}
	id, name, notes := d.ReviewerID, d.ReviewerName, d.ReviewNotes
	r.ReviewerID, r.ReviewerName, r.ReviewNotes, r.ReviewedAt = &id, &name, &notes, &now
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
