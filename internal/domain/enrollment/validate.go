package enrollment

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Strob0t/CourseForge/internal/domain"
)

// ValidationError aggregates every field problem found in one call.
// It matches domain.ErrValidation with errors.Is.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Is reports whether target is domain.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == domain.ErrValidation
}

func (e *ValidationError) add(format string, args ...any) {
	if len(args) == 0 {
		e.Problems = append(e.Problems, format)
		return
	}
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

const learnerEmailTag = "learner_email"

// emailPattern: one "@", no whitespace, and a dot-separated domain after it.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	err := v.RegisterValidation(learnerEmailTag, func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register %s validator: %v", learnerEmailTag, err))
	}
	return v
}

// createShape holds the trimmed string fields checked by struct tags.
type createShape struct {
	CourseID             string `json:"courseId" validate:"required"`
	LearnerEmail         string `json:"learnerEmail" validate:"required,learner_email"`
	PaymentMethod        string `json:"paymentMethod" validate:"required"`
	TransactionReference string `json:"transactionReference" validate:"required"`
	ProofURL             string `json:"proofUrl" validate:"required"`
	ProofFilename        string `json:"proofFilename" validate:"required"`
}

// collectShape runs the tag validators and appends readable messages.
func collectShape(verr *ValidationError, shape any) {
	err := validate.Struct(shape)
	if err == nil {
		return
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.add("%s", err)
		return
	}
	for _, fe := range fieldErrs {
		switch {
		case fe.Tag() == "required" && (fe.Field() == "proofUrl" || fe.Field() == "proofFilename"):
			verr.add("payment proof is required (%s missing)", fe.Field())
		case fe.Tag() == "required":
			verr.add("%s is required", fe.Field())
		case fe.Tag() == learnerEmailTag:
			verr.add("learnerEmail must be a valid email address")
		default:
			verr.add("%s is invalid", fe.Field())
		}
	}
}

// ValidateCreate normalizes and validates a learner submission. It has no
// side effects; tenant resolution happens later in the workflow.
func ValidateCreate(p *CreatePayload) (*NewRequest, error) {
	verr := &ValidationError{}

	ref := p.TenantRef()
	if ref.Empty() {
		verr.add("businessName or tenantId is required")
	} else if ref.TenantID != "" {
		if _, ok := parseID(ref.TenantID); !ok {
			verr.add("tenantId must be a positive integer")
		}
	}

	shape := createShape{
		CourseID:             p.CourseID.String(),
		LearnerEmail:         strings.ToLower(strings.TrimSpace(p.LearnerEmail)),
		PaymentMethod:        strings.TrimSpace(p.PaymentMethod),
		TransactionReference: strings.TrimSpace(p.TransactionReference),
		ProofURL:             strings.TrimSpace(p.ProofURL),
		ProofFilename:        strings.TrimSpace(p.ProofFilename),
	}
	collectShape(verr, &shape)

	cents, ok := priceCents(p.CoursePrice, p.CoursePriceCents)
	if !ok {
		verr.add("coursePrice must be a non-negative amount")
	}

	var userID *int64
	if raw := p.UserID.String(); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			verr.add("userId must be a positive integer")
		} else {
			userID = &id
		}
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	return &NewRequest{
		Tenant:               ref,
		CourseID:             shape.CourseID,
		CourseTitle:          orDefault(p.CourseTitle, DefaultCourseTitle),
		CoursePriceCents:     cents,
		Currency:             currency,
		AmountLabel:          amountLabel(p.AmountLabel, currency, cents),
		UserID:               userID,
		LearnerName:          orDefault(p.LearnerName, DefaultLearnerName),
		LearnerEmail:         shape.LearnerEmail,
		PaymentMethod:        NormalizePaymentMethod(shape.PaymentMethod),
		TransactionReference: shape.TransactionReference,
		Notes:                optional(p.Notes),
		ProofURL:             shape.ProofURL,
		ProofFilename:        shape.ProofFilename,
		Status:               StatusPending,
	}, nil
}

// ValidateReview normalizes and validates an administrator decision.
func ValidateReview(p *ReviewPayload) (*Decision, error) {
	verr := &ValidationError{}

	raw := strings.TrimSpace(p.Status)
	if raw == "" {
		raw = strings.TrimSpace(p.Decision)
	}
	status, known := ParseDecision(raw)
	switch {
	case raw == "":
		verr.add("status is required")
	case !known:
		verr.add("status must be one of approved, rejected, pending")
	}

	reviewerID := SystemReviewerID
	if rawID := p.ReviewerID.String(); rawID != "" {
		id, ok := parseID(rawID)
		if !ok {
			verr.add("reviewerId must be a positive integer")
		}
		reviewerID = id
	}

	notes := strings.TrimSpace(p.ReviewNotes)
	if status == StatusRejected && notes == "" {
		verr.add("reviewNotes are required when rejecting a request")
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}

	return &Decision{
		Status:       status,
		ReviewerID:   reviewerID,
		ReviewerName: orDefault(p.ReviewerName, DefaultReviewerName),
		ReviewNotes:  notes,
	}, nil
}

// NormalizeFilter converts raw list query values into a store filter.
// A blank status or "all" means every status.
func NormalizeFilter(q *ListQuery) (Filter, error) {
	verr := &ValidationError{}
	f := Filter{
		Search:       strings.TrimSpace(q.Search),
		LearnerEmail: strings.ToLower(strings.TrimSpace(q.LearnerEmail)),
		Limit:        q.Limit,
	}

	switch s := Status(strings.ToLower(strings.TrimSpace(q.Status))); {
	case s == "" || s == "all":
	case s.Valid():
		f.Status = s
	default:
		verr.add("status must be one of all, pending, approved, rejected")
	}

	if raw := strings.TrimSpace(q.UserID); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			verr.add("userId must be a positive integer")
		} else {
			f.UserID = &id
		}
	}
	if q.Limit < 0 {
		verr.add("limit must not be negative")
	}

	return f, verr.orNil()
}

// ParseDecision maps a status or verb to a Status. The second result is
// false for unknown input.
func ParseDecision(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "approve":
		return StatusApproved, true
	case "rejected", "reject":
		return StatusRejected, true
	case "pending":
		return StatusPending, true
	}
	return "", false
}

// NormalizePaymentMethod lower-cases recognized methods and keeps any other
// value verbatim.
func NormalizePaymentMethod(method string) string {
	method = strings.TrimSpace(method)
	switch lower := strings.ToLower(method); lower {
	case MethodWave, MethodKPay:
		return lower
	}
	return method
}

// priceCents prefers explicit cents and falls back to a decimal price.
// The second result is false for negative or non-finite input.
func priceCents(price, cents *float64) (*int64, bool) {
	var v float64
	switch {
	case cents != nil:
		v = *cents
	case price != nil:
		v = *price * 100
	default:
		return nil, true
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	n := int64(math.Round(v))
	return &n, true
}

func amountLabel(explicit, currency string, cents *int64) *string {
	if s := strings.TrimSpace(explicit); s != "" {
		return &s
	}
	if cents == nil {
		return nil
	}
	s := currency + " " + FormatAmount(*cents)
	return &s
}

// FormatAmount renders cents as a major-unit amount; whole amounts carry no
// decimal point.
func FormatAmount(cents int64) string {
	if cents%100 == 0 {
		return strconv.FormatInt(cents/100, 10)
	}
	return strconv.FormatFloat(float64(cents)/100, 'f', -1, 64)
}

func parseID(raw string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s != "" {
		return &s
	}
	return nil
}
