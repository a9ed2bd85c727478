package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

// FindTenantIDByBusinessName matches the business name ignoring case.
func (s *Store) FindTenantIDByBusinessName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM tenants WHERE LOWER(business_name) = LOWER($1)`, name,
	).Scan(&id)
	if err != nil {
		return 0, notFoundWrap(err, fmt.Errorf("tenant %w", domain.ErrNotFound), "find tenant %q", name)
	}
	return id, nil
}

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (business_name) VALUES ($1)
		 RETURNING id, business_name, created_at`,
		strings.TrimSpace(req.BusinessName),
	).Scan(&t.ID, &t.BusinessName, &t.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, fmt.Errorf("create tenant %q: %w", req.BusinessName, database.ErrTenantNameTaken)
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, business_name, created_at FROM tenants ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		if err := rows.Scan(&t.ID, &t.BusinessName, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return orEmpty(tenants), nil
}
