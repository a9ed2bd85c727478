package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

// requestColumns selects a request joined with its tenant; the source must
// be aliased r and the tenants table t.
const requestColumns = `r.id, r.tenant_id, t.business_name, r.course_id, r.course_title,
	r.course_price_cents, r.currency, r.amount_label, r.user_id, r.learner_name,
	r.learner_email, r.payment_method, r.transaction_reference, r.notes,
	r.proof_url, r.proof_filename, r.status, r.reviewer_id, r.reviewer_name,
	r.review_notes, r.submitted_at, r.reviewed_at`

func scanRequest(row scannable) (enrollment.Request, error) {
	var (
		r      enrollment.Request
		status string
	)
	err := row.Scan(
		&r.ID, &r.TenantID, &r.BusinessName, &r.CourseID, &r.CourseTitle,
		&r.CoursePriceCents, &r.Currency, &r.AmountLabel, &r.UserID, &r.LearnerName,
		&r.LearnerEmail, &r.PaymentMethod, &r.TransactionReference, &r.Notes,
		&r.ProofURL, &r.ProofFilename, &status, &r.ReviewerID, &r.ReviewerName,
		&r.ReviewNotes, &r.SubmittedAt, &r.ReviewedAt,
	)
	r.Status = enrollment.Status(status)
	return r, err
}

// reviewArgs returns the reviewer columns for a status: all nil while
// pending, all set otherwise.
func reviewArgs(status enrollment.Status, d *enrollment.Decision) (id *int64, name, notes *string, err error) {
	if status == enrollment.StatusPending {
		return nil, nil, nil, nil
	}
	if d == nil {
		return nil, nil, nil, fmt.Errorf("status %s without review: %w", status, domain.ErrValidation)
	}
	return &d.ReviewerID, &d.ReviewerName, &d.ReviewNotes, nil
}

func (s *Store) CreateEnrollmentRequest(ctx context.Context, tenantID int64, req *enrollment.NewRequest) (*enrollment.Request, error) {
	status := req.Status
	if status == "" {
		status = enrollment.StatusPending
	}
	reviewerID, reviewerName, reviewNotes, err := reviewArgs(status, req.Review)
	if err != nil {
		return nil, fmt.Errorf("create enrollment request: %w", err)
	}

	// A seeded non-pending status stamps reviewed_at in the same INSERT.
	row := s.pool.QueryRow(ctx,
		`WITH r AS (
			INSERT INTO manual_enrollment_requests (
				tenant_id, course_id, course_title, course_price_cents, currency,
				amount_label, user_id, learner_name, learner_email, payment_method,
				transaction_reference, notes, proof_url, proof_filename, status,
				reviewer_id, reviewer_name, review_notes, reviewed_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, CASE WHEN $15 = 'pending' THEN NULL ELSE now() END
			)
			RETURNING *
		)
		SELECT `+requestColumns+` FROM r JOIN tenants t ON t.id = r.tenant_id`,
		tenantID, req.CourseID, req.CourseTitle, req.CoursePriceCents, req.Currency,
		req.AmountLabel, req.UserID, req.LearnerName, req.LearnerEmail, req.PaymentMethod,
		req.TransactionReference, req.Notes, req.ProofURL, req.ProofFilename, string(status),
		reviewerID, reviewerName, reviewNotes,
	)
	r, err := scanRequest(row)
	if err != nil {
		return nil, constraintWrap(err, "create enrollment request for tenant %d", tenantID)
	}
	return &r, nil
}

func (s *Store) ListEnrollmentRequests(ctx context.Context, tenantID int64, f enrollment.Filter) ([]enrollment.Request, error) {
	var w whereBuilder
	w.eq(colTenantID, tenantID)
	if f.Status != "" {
		w.eq(colStatus, string(f.Status))
	}
	if f.Search != "" {
		w.containsFold(f.Search, colLearnerName, colLearnerEmail, colCourseTitle)
	}
	if f.LearnerEmail != "" {
		w.eqFold(colLearnerEmail, f.LearnerEmail)
	}
	if f.UserID != nil {
		w.eq(colUserID, *f.UserID)
	}

	query := `SELECT ` + requestColumns + `
		FROM manual_enrollment_requests r JOIN tenants t ON t.id = r.tenant_id` +
		w.where() + ` ORDER BY r.submitted_at DESC, r.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + w.arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollment requests: %w", err)
	}
	defer rows.Close()

	var out []enrollment.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enrollment requests: %w", err)
	}
	return orEmpty(out), nil
}

func (s *Store) GetEnrollmentRequest(ctx context.Context, tenantID, id int64) (*enrollment.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+`
		 FROM manual_enrollment_requests r JOIN tenants t ON t.id = r.tenant_id
		 WHERE r.id = $1 AND r.tenant_id = $2`, id, tenantID)
	r, err := scanRequest(row)
	if err != nil {
		return nil, notFoundWrap(err, database.ErrRequestNotFound, "get enrollment request %d", id)
	}
	return &r, nil
}

// UpdateEnrollmentStatus applies a review in one statement, so readers see
// either the old or the new review, never a mix.
func (s *Store) UpdateEnrollmentStatus(ctx context.Context, tenantID, id int64, d *enrollment.Decision) (*enrollment.Request, error) {
	reviewerID, reviewerName, reviewNotes, err := reviewArgs(d.Status, d)
	if err != nil {
		return nil, fmt.Errorf("update enrollment request %d: %w", id, err)
	}

	row := s.pool.QueryRow(ctx,
		`WITH r AS (
			UPDATE manual_enrollment_requests SET
				status = $3,
				reviewer_id = $4,
				reviewer_name = $5,
				review_notes = $6,
				reviewed_at = CASE WHEN $3 = 'pending' THEN NULL ELSE now() END
			WHERE id = $1 AND tenant_id = $2
			RETURNING *
		)
		SELECT `+requestColumns+` FROM r JOIN tenants t ON t.id = r.tenant_id`,
		id, tenantID, string(d.Status), reviewerID, reviewerName, reviewNotes,
	)
	r, err := scanRequest(row)
	if err != nil {
		if pgCode(err) != "" {
			return nil, constraintWrap(err, "update enrollment request %d", id)
		}
		return nil, notFoundWrap(err, database.ErrRequestNotFound, "update enrollment request %d", id)
	}
	return &r, nil
}

func (s *Store) EnrollmentMetrics(ctx context.Context, tenantID int64, since time.Time) (enrollment.Counts, error) {
	var c enrollment.Counts
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'approved' AND reviewed_at >= $2),
			COUNT(*) FILTER (WHERE proof_url IS NOT NULL AND proof_url <> ''),
			COUNT(*)
		 FROM manual_enrollment_requests
		 WHERE tenant_id = $1`, tenantID, since,
	).Scan(&c.Pending, &c.Approved, &c.ApprovedSince, &c.Receipts, &c.Total)
	if err != nil {
		return enrollment.Counts{}, fmt.Errorf("enrollment metrics for tenant %d: %w", tenantID, err)
	}
	return c, nil
}
