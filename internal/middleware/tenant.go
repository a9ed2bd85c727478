package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Strob0t/CourseForge/internal/domain/tenant"
)

const (
	headerTenantID     = "X-Tenant-ID"
	headerBusinessName = "X-Business-Name"
)

type tenantCtxKey struct{}

// TenantHint copies the X-Tenant-ID and X-Business-Name headers into the
// request context. Handlers fall back to it when the payload or query
// carries no tenant context.
func TenantHint(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := tenant.Ref{
			TenantID:     strings.TrimSpace(r.Header.Get(headerTenantID)),
			BusinessName: strings.TrimSpace(r.Header.Get(headerBusinessName)),
		}
		if ref.Empty() {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), tenantCtxKey{}, ref)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromContext returns the header tenant reference, empty if absent.
func TenantFromContext(ctx context.Context) tenant.Ref {
	ref, _ := ctx.Value(tenantCtxKey{}).(tenant.Ref)
	return ref
}

// MergeTenant fills an empty explicit reference from the header hint.
func MergeTenant(ctx context.Context, explicit tenant.Ref) tenant.Ref {
	if !explicit.Empty() {
		return explicit
	}
	return TenantFromContext(ctx)
}
