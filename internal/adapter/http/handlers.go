package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/middleware"
	"github.com/Strob0t/CourseForge/internal/service"
)

const defaultBodyLimit = 1 << 20 // 1 MB

// Pinger reports backend reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handlers and their service dependencies.
type Handlers struct {
	Enrollments *service.EnrollmentService
	Store       Pinger
	// Queue is nil when NATS is disabled.
	Queue     interface{ IsConnected() bool }
	BodyLimit int64
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return defaultBodyLimit
}

// tenantRef merges tenant query parameters with the header hint.
func tenantRef(r *http.Request) tenant.Ref {
	q := r.URL.Query()
	return middleware.MergeTenant(r.Context(), tenant.Ref{
		TenantID:     q.Get("tenantId"),
		BusinessName: q.Get("businessName"),
	})
}

// CreateEnrollment handles POST /api/v1/manual-enrollments
func (h *Handlers) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	p, ok := readJSON[enrollment.CreatePayload](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if p.TenantRef().Empty() {
		hint := middleware.TenantFromContext(r.Context())
		p.TenantID, p.BusinessName = enrollment.LooseString(hint.TenantID), hint.BusinessName
	}

	rec, err := h.Enrollments.Create(r.Context(), &p)
	if err != nil {
		writeDomainError(w, r, err, "enrollment request not found")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListEnrollments handles GET /api/v1/manual-enrollments
func (h *Handlers) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := tenantRef(r)
	query := enrollment.ListQuery{
		Status:       q.Get("status"),
		Search:       q.Get("search"),
		BusinessName: ref.BusinessName,
		TenantID:     ref.TenantID,
		LearnerEmail: q.Get("learnerEmail"),
		UserID:       q.Get("userId"),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		query.Limit = limit
	}

	res, err := h.Enrollments.List(r.Context(), &query)
	if err != nil {
		writeDomainError(w, r, err, "enrollment request not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetEnrollment handles GET /api/v1/manual-enrollments/{id}
func (h *Handlers) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rec, err := h.Enrollments.Get(r.Context(), tenantRef(r), id)
	if err != nil {
		writeDomainError(w, r, err, "enrollment request not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ReviewEnrollment handles PATCH /api/v1/manual-enrollments/{id} and
// POST /api/v1/manual-enrollments/{id}/review
func (h *Handlers) ReviewEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, ok := readJSON[enrollment.ReviewPayload](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if p.TenantRef().Empty() {
		ref := tenantRef(r)
		p.TenantID, p.BusinessName = enrollment.LooseString(ref.TenantID), ref.BusinessName
	}

	rec, err := h.Enrollments.Review(r.Context(), id, &p)
	if err != nil {
		writeDomainError(w, r, err, "enrollment request not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type healthStatus struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	NATS     string `json:"nats"`
}

// Health handles GET /health. It answers 503 when the store is unreachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok", Postgres: "up", NATS: "disabled"}
	code := http.StatusOK

	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			status.Status, status.Postgres = "degraded", "down"
			code = http.StatusServiceUnavailable
		}
	}
	if h.Queue != nil {
		status.NATS = "up"
		if !h.Queue.IsConnected() {
			status.NATS = "down"
		}
	}
	writeJSON(w, code, status)
}
