package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

func newRequest(email, title string) *enrollment.NewRequest {
	return &enrollment.NewRequest{
		CourseID:             "course-1",
		CourseTitle:          title,
		Currency:             "XOF",
		LearnerName:          "Learner",
		LearnerEmail:         email,
		PaymentMethod:        "wave",
		TransactionReference: "TX",
		ProofURL:             "https://files.example.com/p.png",
		ProofFilename:        "p.png",
		Status:               enrollment.StatusPending,
	}
}

func mustTenant(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	tn, err := s.CreateTenant(context.Background(), tenant.CreateRequest{BusinessName: name})
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	return tn.ID
}

func TestTenantLookupIgnoresCase(t *testing.T) {
	s := New()
	id := mustTenant(t, s, "Acme Academy")

	got, err := s.FindTenantIDByBusinessName(context.Background(), "ACME academy")
	if err != nil || got != id {
		t.Fatalf("got %d, %v; want %d", got, err, id)
	}

	_, err = s.FindTenantIDByBusinessName(context.Background(), "Globex")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = s.CreateTenant(context.Background(), tenant.CreateRequest{BusinessName: "acme ACADEMY"})
	if !errors.Is(err, database.ErrTenantNameTaken) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrTenantNameTaken, got %v", err)
	}
}

func TestCreateAndReview(t *testing.T) {
	s := New()
	ctx := context.Background()
	tid := mustTenant(t, s, "Acme")

	created, err := s.CreateEnrollmentRequest(ctx, tid, newRequest("a@example.com", "Go"))
	if err != nil {
		t.Fatal(err)
	}
	if created.BusinessName != "Acme" || created.Status != enrollment.StatusPending || !created.ReviewConsistent() {
		t.Fatalf("unexpected created record %+v", created)
	}

	d := &enrollment.Decision{Status: enrollment.StatusRejected, ReviewerName: "Fatou", ReviewNotes: "blurry"}
	reviewed, err := s.UpdateEnrollmentStatus(ctx, tid, created.ID, d)
	if err != nil {
		t.Fatal(err)
	}
	if reviewed.Status != enrollment.StatusRejected || !reviewed.ReviewConsistent() {
		t.Fatalf("unexpected reviewed record %+v", reviewed)
	}

	reopened, err := s.UpdateEnrollmentStatus(ctx, tid, created.ID, &enrollment.Decision{Status: enrollment.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ReviewedAt != nil || reopened.ReviewerName != nil || !reopened.ReviewConsistent() {
		t.Fatalf("reopen did not clear review fields: %+v", reopened)
	}
	if reopened.ProofURL != created.ProofURL || !reopened.SubmittedAt.Equal(created.SubmittedAt) {
		t.Fatal("proof or submission time changed")
	}
}

func TestCreateSeededReviewedStatus(t *testing.T) {
	s := New()
	tid := mustTenant(t, s, "Acme")

	req := newRequest("a@example.com", "Go")
	req.Status = enrollment.StatusApproved
	if _, err := s.CreateEnrollmentRequest(context.Background(), tid, req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation without review, got %v", err)
	}

	req.Review = &enrollment.Decision{Status: enrollment.StatusApproved, ReviewerName: "Admin reviewer"}
	r, err := s.CreateEnrollmentRequest(context.Background(), tid, req)
	if err != nil {
		t.Fatal(err)
	}
	if r.ReviewedAt == nil || !r.ReviewConsistent() {
		t.Fatalf("seeded approval missing review fields: %+v", r)
	}
}

func TestTenantIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := mustTenant(t, s, "Acme")
	b := mustTenant(t, s, "Globex")

	ra, _ := s.CreateEnrollmentRequest(ctx, a, newRequest("a@example.com", "Go"))
	_, _ = s.CreateEnrollmentRequest(ctx, b, newRequest("a@example.com", "Go"))

	rows, err := s.ListEnrollmentRequests(ctx, b, enrollment.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.TenantID != b {
			t.Fatalf("tenant %d leaked into %d", r.TenantID, b)
		}
	}

	if _, err := s.GetEnrollmentRequest(ctx, b, ra.ID); !errors.Is(err, database.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound across tenants, got %v", err)
	}
	d := &enrollment.Decision{Status: enrollment.StatusApproved, ReviewerName: "x"}
	if _, err := s.UpdateEnrollmentStatus(ctx, b, ra.ID, d); !errors.Is(err, database.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound across tenants, got %v", err)
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.Now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }
	tid := mustTenant(t, s, "Acme")

	uid := int64(7)
	first, _ := s.CreateEnrollmentRequest(ctx, tid, newRequest("awa@example.com", "Go Basics"))
	withUser := newRequest("binta@example.com", "Rust")
	withUser.UserID = &uid
	second, _ := s.CreateEnrollmentRequest(ctx, tid, withUser)
	third, _ := s.CreateEnrollmentRequest(ctx, tid, newRequest("cheikh@example.com", "Advanced GO"))

	all, _ := s.ListEnrollmentRequests(ctx, tid, enrollment.Filter{})
	if len(all) != 3 || all[0].ID != third.ID || all[2].ID != first.ID {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	bySearch, _ := s.ListEnrollmentRequests(ctx, tid, enrollment.Filter{Search: "go"})
	if got := ids(bySearch); len(got) != 2 || got[0] != third.ID || got[1] != first.ID {
		t.Fatalf("search go = %v", got)
	}

	byEmail, _ := s.ListEnrollmentRequests(ctx, tid, enrollment.Filter{LearnerEmail: "BINTA@example.com"})
	if got := ids(byEmail); len(got) != 1 || got[0] != second.ID {
		t.Fatalf("email filter = %v", got)
	}

	byUser, _ := s.ListEnrollmentRequests(ctx, tid, enrollment.Filter{UserID: &uid})
	if got := ids(byUser); len(got) != 1 || got[0] != second.ID {
		t.Fatalf("user filter = %v", got)
	}

	limited, _ := s.ListEnrollmentRequests(ctx, tid, enrollment.Filter{Limit: 1})
	if got := ids(limited); len(got) != 1 || got[0] != third.ID {
		t.Fatalf("limit = %v", got)
	}

	approved, _ := s.ListEnrollmentRequests(ctx, tid, enrollment.Filter{Status: enrollment.StatusApproved})
	if len(approved) != 0 {
		t.Fatalf("expected no approved rows, got %v", ids(approved))
	}
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ListEnrollmentRequests(ctx, 1, enrollment.Filter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func ids(rows []enrollment.Request) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
