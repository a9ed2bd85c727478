// Package enrollment defines the manual-enrollment request model: a learner's
// claim, backed by an uploaded proof, of having paid for a course off-platform.
package enrollment

import (
	"time"

	"github.com/Strob0t/CourseForge/internal/domain/tenant"
)

// Status is the review state of a manual enrollment request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Recognized payment methods. Any other non-blank method is stored verbatim.
const (
	MethodWave = "wave"
	MethodKPay = "kpay"
)

// Defaults applied by the validators.
const (
	DefaultCourseTitle  = "Untitled course"
	DefaultLearnerName  = "Learner"
	DefaultReviewerName = "Admin reviewer"
	DefaultCurrency     = "XOF"
)

// SystemReviewerID is stored when a review carries no reviewer id, so the
// column is never null once a request leaves pending.
const SystemReviewerID int64 = 0

// Request is a stored manual enrollment request.
type Request struct {
	ID                   int64      `json:"id"`
	TenantID             int64      `json:"tenantId"`
	BusinessName         string     `json:"businessName"`
	CourseID             string     `json:"courseId"`
	CourseTitle          string     `json:"courseTitle"`
	CoursePriceCents     *int64     `json:"coursePriceCents"`
	Currency             string     `json:"currency"`
	AmountLabel          *string    `json:"amountLabel"`
	UserID               *int64     `json:"userId"`
	LearnerName          string     `json:"learnerName"`
	LearnerEmail         string     `json:"learnerEmail"`
	PaymentMethod        string     `json:"paymentMethod"`
	TransactionReference string     `json:"transactionReference"`
	Notes                *string    `json:"notes"`
	ProofURL             string     `json:"proofUrl"`
	ProofFilename        string     `json:"proofFilename"`
	Status               Status     `json:"status"`
	ReviewerID           *int64     `json:"reviewerId"`
	ReviewerName         *string    `json:"reviewerName"`
	ReviewNotes          *string    `json:"reviewNotes"`
	SubmittedAt          time.Time  `json:"submittedAt"`
	ReviewedAt           *time.Time `json:"reviewedAt"`
}

// ReviewConsistent reports whether the review fields agree with the status:
// all null while pending, all set otherwise.
func (r *Request) ReviewConsistent() bool {
	if r.Status == StatusPending {
		return r.ReviewerID == nil && r.ReviewerName == nil && r.ReviewNotes == nil && r.ReviewedAt == nil
	}
	return r.ReviewerID != nil && r.ReviewerName != nil && r.ReviewNotes != nil && r.ReviewedAt != nil
}

// NewRequest is a validated, normalized create request ready for insertion.
type NewRequest struct {
	Tenant               tenant.Ref
	CourseID             string
	CourseTitle          string
	CoursePriceCents     *int64
	Currency             string
	AmountLabel          *string
	UserID               *int64
	LearnerName          string
	LearnerEmail         string
	PaymentMethod        string
	TransactionReference string
	Notes                *string
	ProofURL             string
	ProofFilename        string

	// Status is the initial status, pending unless a caller seeds a reviewed
	// record. Review must be set when Status is not pending.
	Status Status
	Review *Decision
}

// Decision is a validated review action.
type Decision struct {
	Status       Status
	ReviewerID   int64
	ReviewerName string
	ReviewNotes  string
}

// Filter is the normalized listing filter handed to the store.
type Filter struct {
	Status       Status // empty means all statuses
	Search       string
	LearnerEmail string
	UserID       *int64
	Limit        int // 0 means unlimited
}

// LearnerScoped reports whether the filter narrows results to one learner.
func (f Filter) LearnerScoped() bool {
	return f.LearnerEmail != "" || f.UserID != nil
}
