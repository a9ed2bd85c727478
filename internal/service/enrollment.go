package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cfotel "github.com/Strob0t/CourseForge/internal/adapter/otel"
	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/broadcast"
	"github.com/Strob0t/CourseForge/internal/port/database"
	"github.com/Strob0t/CourseForge/internal/port/messagequeue"
)

// EnrollmentOptions tunes the workflow. Zero values fall back to the
// enrollment package defaults.
type EnrollmentOptions struct {
	DefaultCurrency string
	MetricsWindow   time.Duration
	MaxListLimit    int // 0 leaves explicit limits uncapped
}

// ListResult is a listing page plus its dashboard summary.
type ListResult struct {
	Data []enrollment.Request `json:"data"`
	Meta enrollment.Metrics   `json:"meta"`
}

// EnrollmentService runs the manual enrollment review workflow.
type EnrollmentService struct {
	store      database.EnrollmentStore
	resolver   *TenantResolver
	opts       EnrollmentOptions
	tenantWide MetricsAggregator
	derived    MetricsAggregator
	events     EventPublisher
	hub        broadcast.Broadcaster
	metrics    *cfotel.Metrics
	now        func() time.Time
}

// NewEnrollmentService creates the workflow service. Events and broadcasts
// are disabled until SetEventPublisher and SetBroadcaster are called.
func NewEnrollmentService(store database.EnrollmentStore, resolver *TenantResolver, opts EnrollmentOptions) *EnrollmentService {
	return &EnrollmentService{
		store:      store,
		resolver:   resolver,
		opts:       opts,
		tenantWide: NewTenantWideAggregator(store, opts.MetricsWindow),
		derived:    NewDerivedAggregator(opts.MetricsWindow),
		events:     NoopPublisher{},
		now:        time.Now,
	}
}

// SetEventPublisher sets the publisher for enrollment events.
func (s *EnrollmentService) SetEventPublisher(p EventPublisher) { s.events = p }

// SetBroadcaster sets the realtime feed for admin consoles.
func (s *EnrollmentService) SetBroadcaster(b broadcast.Broadcaster) { s.hub = b }

// SetMetrics sets the telemetry counters.
func (s *EnrollmentService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// Create validates a learner submission, resolves its tenant and stores it
// as pending.
func (s *EnrollmentService) Create(ctx context.Context, p *enrollment.CreatePayload) (rec *enrollment.Request, err error) {
	ctx, span := cfotel.StartEnrollmentSpan(ctx, "create")
	defer func() { cfotel.EndSpan(span, err) }()

	payload := *p
	if strings.TrimSpace(payload.Currency) == "" && s.opts.DefaultCurrency != "" {
		payload.Currency = s.opts.DefaultCurrency
	}
	req, err := enrollment.ValidateCreate(&payload)
	if err != nil {
		return nil, err
	}

	tenantID, err := s.resolver.Resolve(ctx, req.Tenant)
	if err != nil {
		return nil, err
	}
	cfotel.SetTenant(span, tenantID)

	rec, err = s.store.CreateEnrollmentRequest(ctx, tenantID, req)
	if err != nil {
		return nil, fmt.Errorf("create enrollment request: %w", err)
	}
	cfotel.SetRequest(span, rec.ID, string(rec.Status))

	slog.InfoContext(ctx, "enrollment created",
		"tenant_id", tenantID, "request_id", rec.ID, "status", rec.Status)
	s.metrics.RecordCreated(ctx, tenantID)
	s.announce(ctx, messagequeue.SubjectEnrollmentSubmitted, broadcast.EventEnrollmentSubmitted, rec)
	return rec, nil
}

// List returns the tenant's requests matching q, newest first, with the
// dashboard summary. Learner-scoped listings derive the summary from the
// returned rows; others use tenant-wide counts.
func (s *EnrollmentService) List(ctx context.Context, q *enrollment.ListQuery) (res *ListResult, err error) {
	ctx, span := cfotel.StartEnrollmentSpan(ctx, "list")
	defer func() { cfotel.EndSpan(span, err) }()

	f, err := enrollment.NormalizeFilter(q)
	if err != nil {
		return nil, err
	}
	tenantID, err := s.resolver.Resolve(ctx, q.TenantRef())
	if err != nil {
		return nil, err
	}
	cfotel.SetTenant(span, tenantID)

	if s.opts.MaxListLimit > 0 && f.Limit > s.opts.MaxListLimit {
		f.Limit = s.opts.MaxListLimit
	}

	rows, err := s.store.ListEnrollmentRequests(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("list enrollment requests: %w", err)
	}
	if rows == nil {
		rows = []enrollment.Request{}
	}

	agg := s.tenantWide
	if f.LearnerScoped() {
		agg = s.derived
	}
	meta, err := agg.Summarize(ctx, tenantID, rows, s.now())
	if err != nil {
		return nil, err
	}
	return &ListResult{Data: rows, Meta: meta}, nil
}

// Get returns one request of the referenced tenant.
func (s *EnrollmentService) Get(ctx context.Context, ref tenant.Ref, id int64) (*enrollment.Request, error) {
	tenantID, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fmt.Errorf("get %d: %w", id, database.ErrRequestNotFound)
	}
	return s.store.GetEnrollmentRequest(ctx, tenantID, id)
}

// Review applies an administrator decision. Repeating a decision re-stamps
// the reviewer and review time. Concurrent reviews of one request are not
// serialized; the last write wins.
func (s *EnrollmentService) Review(ctx context.Context, id int64, p *enrollment.ReviewPayload) (rec *enrollment.Request, err error) {
	ctx, span := cfotel.StartEnrollmentSpan(ctx, "review")
	defer func() { cfotel.EndSpan(span, err) }()

	d, err := enrollment.ValidateReview(p)
	if err != nil {
		return nil, err
	}

	tenantID, err := s.resolver.Resolve(ctx, p.TenantRef())
	if err != nil {
		return nil, err
	}
	cfotel.SetTenant(span, tenantID)

	if id <= 0 {
		return nil, fmt.Errorf("review %d: %w", id, database.ErrRequestNotFound)
	}
	if _, err := s.store.GetEnrollmentRequest(ctx, tenantID, id); err != nil {
		return nil, err
	}

	rec, err = s.store.UpdateEnrollmentStatus(ctx, tenantID, id, d)
	if err != nil {
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}
	cfotel.SetRequest(span, rec.ID, string(rec.Status))

	slog.InfoContext(ctx, "enrollment reviewed",
		"tenant_id", tenantID, "request_id", rec.ID, "status", rec.Status, "reviewer_id", d.ReviewerID)
	s.metrics.RecordReviewed(ctx, tenantID, string(rec.Status))
	s.announce(ctx, messagequeue.SubjectEnrollmentReviewed, broadcast.EventEnrollmentReviewed, rec)
	return rec, nil
}

// announce publishes the event and pushes the record to open consoles.
// Both are best effort once the write has committed.
func (s *EnrollmentService) announce(ctx context.Context, subject, eventType string, rec *enrollment.Request) {
	if err := s.events.PublishEnrollment(ctx, subject, rec); err != nil {
		slog.WarnContext(ctx, "enrollment event not published",
			"subject", subject, "request_id", rec.ID, "error", err)
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, rec.TenantID, eventType, rec)
	}
}
