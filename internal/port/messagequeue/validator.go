package messagequeue

import (
	"encoding/json"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch subject {
	case SubjectEnrollmentSubmitted, SubjectEnrollmentReviewed:
		var p EnrollmentEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.TenantID <= 0 || p.RequestID <= 0 {
			return fmt.Errorf("schema validation failed for %s: tenantId and requestId are required", subject)
		}
	}
	return nil
}
