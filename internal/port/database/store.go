// Package database defines the database store port (interface).
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
)

// ErrRequestNotFound is returned when no enrollment request with the given id
// exists in the tenant.
var ErrRequestNotFound = fmt.Errorf("enrollment request %w", domain.ErrNotFound)

// ErrTenantNotFound is returned when the referenced tenant does not exist.
var ErrTenantNotFound = fmt.Errorf("tenant %w", domain.ErrNotFound)

// ErrTenantNameTaken is returned when a tenant with the same business name
// (case-insensitive) already exists.
var ErrTenantNameTaken = fmt.Errorf("business name %w", domain.ErrConflict)

// EnrollmentStore persists manual enrollment requests. Every method is scoped
// to one tenant.
type EnrollmentStore interface {
	CreateEnrollmentRequest(ctx context.Context, tenantID int64, req *enrollment.NewRequest) (*enrollment.Request, error)
	ListEnrollmentRequests(ctx context.Context, tenantID int64, f enrollment.Filter) ([]enrollment.Request, error)
	GetEnrollmentRequest(ctx context.Context, tenantID, id int64) (*enrollment.Request, error)
	UpdateEnrollmentStatus(ctx context.Context, tenantID, id int64, d *enrollment.Decision) (*enrollment.Request, error)

	// EnrollmentMetrics counts over every request of the tenant in one query.
	// ApprovedSince counts approved requests reviewed at or after since.
	EnrollmentMetrics(ctx context.Context, tenantID int64, since time.Time) (enrollment.Counts, error)
}

// TenantStore looks up and manages tenants.
type TenantStore interface {
	// FindTenantIDByBusinessName matches name case-insensitively and returns
	// domain.ErrNotFound (wrapped) when no tenant has it.
	FindTenantIDByBusinessName(ctx context.Context, name string) (int64, error)
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
}

// Store is the full persistence port.
type Store interface {
	EnrollmentStore
	TenantStore
	Ping(ctx context.Context) error
}
