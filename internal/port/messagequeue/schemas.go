package messagequeue

import "time"

// EnrollmentEventPayload is the schema for enrollments.submitted and
// enrollments.reviewed messages.
type EnrollmentEventPayload struct {
	EventID      string    `json:"eventId"`
	TenantID     int64     `json:"tenantId"`
	RequestID    int64     `json:"requestId"`
	Status       string    `json:"status"`
	LearnerEmail string    `json:"learnerEmail"`
	CourseID     string    `json:"courseId"`
	OccurredAt   time.Time `json:"occurredAt"`
}
