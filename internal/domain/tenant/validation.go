package tenant

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Strob0t/CourseForge/internal/domain"
)

// ValidateCreateRequest validates the fields of a tenant creation request.
func ValidateCreateRequest(req CreateRequest) error {
	name := strings.TrimSpace(req.BusinessName)
	if name == "" {
		return fmt.Errorf("businessName is required: %w", domain.ErrValidation)
	}
	if len(name) > 255 {
		return fmt.Errorf("businessName exceeds 255 characters: %w", domain.ErrValidation)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("businessName contains control characters: %w", domain.ErrValidation)
		}
	}
	return nil
}
