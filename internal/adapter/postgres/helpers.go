package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/CourseForge/internal/domain"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

// Postgres error codes mapped to domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil.
// Useful to ensure JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// notFoundWrap wraps notFound when err is pgx.ErrNoRows and the original
// error otherwise.
func notFoundWrap(err, notFound error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, notFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// pgCode returns the SQLSTATE of err, or "" when err is not a server error.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// constraintWrap maps integrity violations to domain errors so the HTTP
// layer answers 4xx instead of 500.
func constraintWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch pgCode(err) {
	case pgForeignKeyViolation:
		// tenant_id is the only foreign key.
		return fmt.Errorf("%s: %w", msg, database.ErrTenantNotFound)
	case pgCheckViolation:
		return fmt.Errorf("%s: %w", msg, domain.ErrValidation)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
