package enrollment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/CourseForge/internal/domain/tenant"
)

// LooseString accepts a JSON string, number or null. Identifiers such as
// tenantId and userId arrive as either depending on the client.
type LooseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = LooseString(n.String())
	return nil
}

// String returns the trimmed value.
func (s LooseString) String() string { return strings.TrimSpace(string(s)) }

// CreatePayload is the raw learner submission.
type CreatePayload struct {
	TenantID             LooseString `json:"tenantId"`
	BusinessName         string      `json:"businessName"`
	CourseID             LooseString `json:"courseId"`
	CourseTitle          string      `json:"courseTitle"`
	CoursePrice          *float64    `json:"coursePrice"`
	CoursePriceCents     *float64    `json:"coursePriceCents"`
	Currency             string      `json:"currency"`
	AmountLabel          string      `json:"amountLabel"`
	UserID               LooseString `json:"userId"`
	LearnerName          string      `json:"learnerName"`
	LearnerEmail         string      `json:"learnerEmail"`
	PaymentMethod        string      `json:"paymentMethod"`
	TransactionReference string      `json:"transactionReference"`
	Notes                string      `json:"notes"`
	ProofURL             string      `json:"proofUrl"`
	ProofFilename        string      `json:"proofFilename"`
}

// TenantRef returns the tenant context carried by the payload.
func (p *CreatePayload) TenantRef() tenant.Ref {
	return tenant.Ref{TenantID: p.TenantID.String(), BusinessName: p.BusinessName}
}

// ReviewPayload is the raw administrator decision.
type ReviewPayload struct {
	Status       string      `json:"status"`
	Decision     string      `json:"decision"`
	ReviewerID   LooseString `json:"reviewerId"`
	ReviewerName string      `json:"reviewerName"`
	ReviewNotes  string      `json:"reviewNotes"`
	TenantID     LooseString `json:"tenantId"`
	BusinessName string      `json:"businessName"`
}

// TenantRef returns the tenant context carried by the payload.
func (p *ReviewPayload) TenantRef() tenant.Ref {
	return tenant.Ref{TenantID: p.TenantID.String(), BusinessName: p.BusinessName}
}

// ListQuery is the raw listing filter, usually built from URL query values.
type ListQuery struct {
	Status       string
	Search       string
	BusinessName string
	TenantID     string
	LearnerEmail string
	UserID       string
	Limit        int
}

// TenantRef returns the tenant context carried by the query.
func (q *ListQuery) TenantRef() tenant.Ref {
	return tenant.Ref{TenantID: q.TenantID, BusinessName: q.BusinessName}
}
