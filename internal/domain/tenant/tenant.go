// Package tenant defines the tenant domain model for multi-tenancy.
package tenant

import (
	"strings"
	"time"
)

// Tenant is an isolated workspace. Business names are unique ignoring case.
type Tenant struct {
	ID           int64     `json:"id"`
	BusinessName string    `json:"businessName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	BusinessName string `json:"businessName"`
}

// NormalizeBusinessName returns the cache key form of a business name.
func NormalizeBusinessName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Ref is the unresolved tenant context carried by an inbound call: either a
// numeric tenant id or a business name. Resolution happens in the service layer.
type Ref struct {
	TenantID     string
	BusinessName string
}

// Empty reports whether neither a tenant id nor a business name was supplied.
func (r Ref) Empty() bool {
	return strings.TrimSpace(r.TenantID) == "" && strings.TrimSpace(r.BusinessName) == ""
}
