package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/CourseForge/internal/adapter/memstore"
	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/broadcast"
	"github.com/Strob0t/CourseForge/internal/port/database"
	"github.com/Strob0t/CourseForge/internal/port/messagequeue"
)

func assertConsistent(t *testing.T, r *enrollment.Request) {
	t.Helper()
	if !r.ReviewConsistent() {
		t.Fatalf("request %d: review fields inconsistent with status %s: %+v", r.ID, r.Status, r)
	}
}

// Scenario A.
func TestCreateStoresPendingNormalized(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	hub := &recordingBroadcaster{}
	f.svc.SetEventPublisher(pub)
	f.svc.SetBroadcaster(hub)

	rec, err := f.svc.Create(context.Background(), validPayload("acme academy", "A@Example.com"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != enrollment.StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}
	if rec.LearnerEmail != "a@example.com" {
		t.Fatalf("expected lower-cased email, got %q", rec.LearnerEmail)
	}
	if rec.TenantID != f.acme.ID || rec.BusinessName != "Acme Academy" {
		t.Fatalf("unexpected tenant decoration: %d %q", rec.TenantID, rec.BusinessName)
	}
	if rec.PaymentMethod != "wave" || rec.Currency != enrollment.DefaultCurrency {
		t.Fatalf("unexpected method/currency: %q %q", rec.PaymentMethod, rec.Currency)
	}
	assertConsistent(t, rec)

	if len(pub.subjects) != 1 || pub.subjects[0] != messagequeue.SubjectEnrollmentSubmitted {
		t.Fatalf("expected submitted event, got %v", pub.subjects)
	}
	if len(hub.events) != 1 || hub.events[0] != broadcast.EventEnrollmentSubmitted || hub.tenant[0] != f.acme.ID {
		t.Fatalf("expected tenant broadcast, got %v %v", hub.events, hub.tenant)
	}
}

func TestCreateUsesConfiguredCurrency(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.DefaultCurrency = "GHS"

	p := validPayload("Acme Academy", "b@example.com")
	cents := 250000.0
	p.CoursePriceCents = &cents
	rec, err := f.svc.Create(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Currency != "GHS" || rec.AmountLabel == nil || *rec.AmountLabel != "GHS 2500" {
		t.Fatalf("unexpected currency/label: %q %v", rec.Currency, rec.AmountLabel)
	}
}

// Scenario B.
func TestCreateWithoutProofPersistsNothing(t *testing.T) {
	f := newFixture(t)
	p := validPayload("Acme Academy", "a@example.com")
	p.ProofURL = ""

	_, err := f.svc.Create(context.Background(), p)
	var verr *enrollment.ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "payment proof is required") {
		t.Fatalf("expected proof message, got %q", err.Error())
	}

	res, err := f.svc.List(context.Background(), &enrollment.ListQuery{BusinessName: "Acme Academy"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Data) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(res.Data))
	}
}

func TestValidationPrecedesStorage(t *testing.T) {
	f := newFixture(t)
	failing := &failingEnrollmentStore{err: errors.New("db down")}
	svc := NewEnrollmentService(failing, f.resolver, EnrollmentOptions{})

	_, err := svc.Create(context.Background(), &enrollment.CreatePayload{BusinessName: "Acme Academy"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Review(context.Background(), 1, &enrollment.ReviewPayload{Status: "maybe", BusinessName: "Acme Academy"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if failing.calls.Load() != 0 {
		t.Fatalf("store touched %d times", failing.calls.Load())
	}
}

func TestListValidatesFilterBeforeTenantLookup(t *testing.T) {
	tenants := &countingTenantStore{TenantStore: memstore.New()}
	failing := &failingEnrollmentStore{err: errors.New("db down")}
	svc := NewEnrollmentService(failing, NewTenantResolver(tenants, NewTenantCache(newMapCache(), nil)), EnrollmentOptions{})

	queries := []*enrollment.ListQuery{
		{BusinessName: "Nowhere", Status: "bogus"},
		{BusinessName: "Nowhere", UserID: "abc"},
		{BusinessName: "Nowhere", Limit: -1},
	}
	for _, q := range queries {
		if _, err := svc.List(context.Background(), q); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", q, err)
		}
	}
	if got := tenants.calls.Load(); got != 0 {
		t.Fatalf("tenant store touched %d times", got)
	}
	if got := failing.calls.Load(); got != 0 {
		t.Fatalf("enrollment store touched %d times", got)
	}
}

func TestStorageFailurePassesThrough(t *testing.T) {
	f := newFixture(t)
	dbErr := errors.New("connection reset")
	failing := &failingEnrollmentStore{err: dbErr}
	svc := NewEnrollmentService(failing, f.resolver, EnrollmentOptions{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, validPayload("Acme Academy", "a@example.com")); !errors.Is(err, dbErr) {
		t.Errorf("create: expected storage error, got %v", err)
	}
	if _, err := svc.List(ctx, &enrollment.ListQuery{BusinessName: "Acme Academy"}); !errors.Is(err, dbErr) {
		t.Errorf("list: expected storage error, got %v", err)
	}
	_, err := svc.Review(ctx, 1, &enrollment.ReviewPayload{Status: "approved", BusinessName: "Acme Academy"})
	if !errors.Is(err, dbErr) {
		t.Errorf("review: expected storage error, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		t.Error("storage error must not be reclassified")
	}
}

func TestCreateUnknownTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), validPayload("Initech", "a@example.com"))
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

// Scenario C.
func TestReviewRejectRequiresNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.svc.Create(ctx, validPayload("Acme Academy", "a@example.com"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Review(ctx, rec.ID, &enrollment.ReviewPayload{Status: "rejected", BusinessName: "Acme Academy"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, err := f.svc.Get(ctx, tenant.Ref{BusinessName: "Acme Academy"}, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != enrollment.StatusPending {
		t.Fatalf("failed review must not change status, got %s", got.Status)
	}

	reviewed, err := f.svc.Review(ctx, rec.ID, &enrollment.ReviewPayload{
		Status:       "rejected",
		ReviewNotes:  "blurry screenshot",
		ReviewerID:   "9",
		BusinessName: "Acme Academy",
	})
	if err != nil {
		t.Fatal(err)
	}
	if reviewed.Status != enrollment.StatusRejected {
		t.Fatalf("expected rejected, got %s", reviewed.Status)
	}
	if reviewed.ReviewerID == nil || *reviewed.ReviewerID != 9 ||
		reviewed.ReviewerName == nil || *reviewed.ReviewerName != enrollment.DefaultReviewerName ||
		reviewed.ReviewNotes == nil || *reviewed.ReviewNotes != "blurry screenshot" ||
		reviewed.ReviewedAt == nil {
		t.Fatalf("expected all review fields populated: %+v", reviewed)
	}
}

// Scenario D.
func TestReviewUnknownID(t *testing.T) {
	f := newFixture(t)
	for _, id := range []int64{999, 0} {
		_, err := f.svc.Review(context.Background(), id, &enrollment.ReviewPayload{Status: "approved", BusinessName: "Acme Academy"})
		if !errors.Is(err, database.ErrRequestNotFound) || !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("id %d: expected ErrRequestNotFound, got %v", id, err)
		}
	}
}

func TestReviewMissingTenantContext(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Review(context.Background(), 1, &enrollment.ReviewPayload{Status: "approved"})
	if !errors.Is(err, ErrMissingTenantContext) {
		t.Fatalf("expected ErrMissingTenantContext, got %v", err)
	}
}

func TestReviewRoundTripKeepsInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	f.svc.SetEventPublisher(pub)

	rec, err := f.svc.Create(ctx, validPayload("Acme Academy", "a@example.com"))
	if err != nil {
		t.Fatal(err)
	}
	steps := []struct {
		decision string
		want     enrollment.Status
	}{
		{"approve", enrollment.StatusApproved},
		{"pending", enrollment.StatusPending},
		{"reject", enrollment.StatusRejected},
		{"approved", enrollment.StatusApproved},
	}
	for _, step := range steps {
		got, err := f.svc.Review(ctx, rec.ID, &enrollment.ReviewPayload{
			Decision:     step.decision,
			ReviewNotes:  "checked",
			BusinessName: "Acme Academy",
		})
		if err != nil {
			t.Fatalf("%s: %v", step.decision, err)
		}
		if got.Status != step.want {
			t.Fatalf("%s: expected %s, got %s", step.decision, step.want, got.Status)
		}
		assertConsistent(t, got)
		if got.ProofURL != rec.ProofURL || got.ProofFilename != rec.ProofFilename {
			t.Fatal("proof must not change on review")
		}
	}
	// one submitted plus one per review
	if len(pub.subjects) != 1+len(steps) {
		t.Fatalf("expected %d events, got %d", 1+len(steps), len(pub.subjects))
	}
}

func TestReviewSameDecisionTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f.store.Now = func() time.Time { return clock }

	rec, err := f.svc.Create(ctx, validPayload("Acme Academy", "a@example.com"))
	if err != nil {
		t.Fatal(err)
	}
	review := &enrollment.ReviewPayload{Status: "approved", BusinessName: "Acme Academy"}

	clock = clock.Add(time.Hour)
	first, err := f.svc.Review(ctx, rec.ID, review)
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(time.Hour)
	second, err := f.svc.Review(ctx, rec.ID, review)
	if err != nil {
		t.Fatal(err)
	}

	if first.Status != second.Status {
		t.Fatalf("status changed: %s -> %s", first.Status, second.Status)
	}
	if !second.ReviewedAt.After(*first.ReviewedAt) {
		t.Fatalf("expected refreshed reviewedAt: %v then %v", first.ReviewedAt, second.ReviewedAt)
	}
	if second.ReviewNotes == nil || *second.ReviewNotes != "" {
		t.Fatalf("approval notes default to empty, got %v", second.ReviewNotes)
	}

	res, err := f.svc.List(ctx, &enrollment.ListQuery{BusinessName: "Acme Academy"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Data) != 1 {
		t.Fatalf("expected no duplicate records, got %d", len(res.Data))
	}
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acmeRec, err := f.svc.Create(ctx, validPayload("Acme Academy", "shared@example.com"))
	if err != nil {
		t.Fatal(err)
	}
	globexRec, err := f.svc.Create(ctx, validPayload("Globex School", "shared@example.com"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.List(ctx, &enrollment.ListQuery{TenantID: strconv.FormatInt(f.acme.ID, 10)})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res.Data {
		if r.TenantID != f.acme.ID {
			t.Fatalf("acme listing returned tenant %d", r.TenantID)
		}
	}
	if len(res.Data) != 1 || res.Data[0].ID != acmeRec.ID {
		t.Fatalf("unexpected acme listing: %+v", res.Data)
	}

	_, err = f.svc.Get(ctx, tenant.Ref{BusinessName: "Acme Academy"}, globexRec.ID)
	if !errors.Is(err, database.ErrRequestNotFound) {
		t.Fatalf("cross-tenant get: expected not found, got %v", err)
	}
	_, err = f.svc.Review(ctx, globexRec.ID, &enrollment.ReviewPayload{Status: "approved", BusinessName: "Acme Academy"})
	if !errors.Is(err, database.ErrRequestNotFound) {
		t.Fatalf("cross-tenant review: expected not found, got %v", err)
	}
}

// Scenario E.
func TestListByLearnerEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, c := range []struct{ tenant, email string }{
		{"Acme Academy", "Learner@Example.com"},
		{"Acme Academy", "learner@example.com"},
		{"Acme Academy", "other@example.com"},
		{"Globex School", "learner@example.com"},
	} {
		if _, err := f.svc.Create(ctx, validPayload(c.tenant, c.email)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := f.svc.List(ctx, &enrollment.ListQuery{BusinessName: "Acme Academy", LearnerEmail: " LEARNER@example.com "})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Data))
	}
	for _, r := range res.Data {
		if r.LearnerEmail != "learner@example.com" || r.TenantID != f.acme.ID {
			t.Fatalf("unexpected row: %+v", r)
		}
	}
	if res.Meta.TotalCount != int64(len(res.Data)) {
		t.Fatalf("totalCount %d != len(data) %d", res.Meta.TotalCount, len(res.Data))
	}
	if res.Meta.PendingCount != 2 || res.Meta.ApprovalRate != 0 {
		t.Fatalf("unexpected meta: %+v", res.Meta)
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f.store.Now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	var ids []int64
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		rec, err := f.svc.Create(ctx, validPayload("Acme Academy", email))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}
	if _, err := f.svc.Review(ctx, ids[1], &enrollment.ReviewPayload{Status: "approved", BusinessName: "Acme Academy"}); err != nil {
		t.Fatal(err)
	}

	all, err := f.svc.List(ctx, &enrollment.ListQuery{BusinessName: "Acme Academy", Status: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Data) != 3 || all.Data[0].ID != ids[2] || all.Data[2].ID != ids[0] {
		t.Fatalf("expected newest first, got %v", all.Data)
	}
	if all.Meta.TotalCount != 3 || all.Meta.PendingCount != 2 || all.Meta.ApprovalRate != 33 {
		t.Fatalf("unexpected tenant-wide meta: %+v", all.Meta)
	}

	approved, err := f.svc.List(ctx, &enrollment.ListQuery{BusinessName: "Acme Academy", Status: "approved"})
	if err != nil {
		t.Fatal(err)
	}
	if len(approved.Data) != 1 || approved.Data[0].ID != ids[1] {
		t.Fatalf("unexpected approved listing: %+v", approved.Data)
	}

	_, err = f.svc.List(ctx, &enrollment.ListQuery{BusinessName: "Acme Academy", Status: "archived"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestListCapsLimit(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.MaxListLimit = 2
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Create(ctx, validPayload("Acme Academy", "a@example.com")); err != nil {
			t.Fatal(err)
		}
	}
	res, err := f.svc.List(ctx, &enrollment.ListQuery{BusinessName: "Acme Academy", Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Data) != 2 {
		t.Fatalf("expected capped page of 2, got %d", len(res.Data))
	}
}

func TestListEmptyTenant(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.List(context.Background(), &enrollment.ListQuery{BusinessName: "Globex School"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Data == nil || len(res.Data) != 0 {
		t.Fatalf("expected empty non-nil data, got %#v", res.Data)
	}
	if res.Meta != (enrollment.Metrics{}) {
		t.Fatalf("expected zero meta, got %+v", res.Meta)
	}
}

func TestListMissingTenantContext(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), &enrollment.ListQuery{})
	if !errors.Is(err, ErrMissingTenantContext) {
		t.Fatalf("expected ErrMissingTenantContext, got %v", err)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.svc.SetEventPublisher(&recordingPublisher{err: errors.New("nats down")})

	if _, err := f.svc.Create(context.Background(), validPayload("Acme Academy", "a@example.com")); err != nil {
		t.Fatalf("create must succeed when publishing fails: %v", err)
	}
}
