// Package broadcast defines the port for pushing real-time events to
// connected admin dashboards.
package broadcast

import "context"

// Event types pushed to dashboards.
const (
	EventEnrollmentSubmitted = "enrollment.submitted"
	EventEnrollmentReviewed  = "enrollment.reviewed"
)

// Broadcaster sends real-time events to connected clients of one tenant.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, tenantID int64, eventType string, payload any)
}
