package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/CourseForge/internal/middleware"
)

// MountRoutes registers health and API routes on the given chi router.
// mw is applied to the /api/v1 group after the tenant hint middleware,
// typically idempotency when NATS is enabled.
func MountRoutes(r chi.Router, h *Handlers, mw ...func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.TenantHint)
		r.Use(mw...)

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Route("/manual-enrollments", func(r chi.Router) {
			r.Post("/", h.CreateEnrollment)
			r.Get("/", h.ListEnrollments)
			r.Get("/{id}", h.GetEnrollment)
			r.Patch("/{id}", h.ReviewEnrollment)
			r.Post("/{id}/review", h.ReviewEnrollment)
		})
	})
}
