package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/CourseForge/internal/domain/enrollment"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

// MetricsAggregator computes the dashboard summary for a listing.
// rows is the already fetched page; implementations may ignore it.
type MetricsAggregator interface {
	Summarize(ctx context.Context, tenantID int64, rows []enrollment.Request, now time.Time) (enrollment.Metrics, error)
}

// TenantWideAggregator asks the store for counts over the whole tenant.
type TenantWideAggregator struct {
	store  database.EnrollmentStore
	window time.Duration
}

// NewTenantWideAggregator creates an aggregator using the store's aggregate
// query. A zero window falls back to enrollment.MetricsWindow.
func NewTenantWideAggregator(store database.EnrollmentStore, window time.Duration) *TenantWideAggregator {
	return &TenantWideAggregator{store: store, window: windowOrDefault(window)}
}

func (a *TenantWideAggregator) Summarize(ctx context.Context, tenantID int64, _ []enrollment.Request, now time.Time) (enrollment.Metrics, error) {
	counts, err := a.store.EnrollmentMetrics(ctx, tenantID, now.Add(-a.window))
	if err != nil {
		return enrollment.Metrics{}, fmt.Errorf("enrollment metrics: %w", err)
	}
	return counts.Metrics(), nil
}

// DerivedAggregator reduces the fetched rows. Used when the listing is scoped
// to one learner, where tenant-wide figures would leak other learners' data.
type DerivedAggregator struct {
	window time.Duration
}

// NewDerivedAggregator creates a row-reducing aggregator.
func NewDerivedAggregator(window time.Duration) *DerivedAggregator {
	return &DerivedAggregator{window: windowOrDefault(window)}
}

func (a *DerivedAggregator) Summarize(_ context.Context, _ int64, rows []enrollment.Request, now time.Time) (enrollment.Metrics, error) {
	return enrollment.CountRows(rows, now.Add(-a.window)).Metrics(), nil
}

func windowOrDefault(w time.Duration) time.Duration {
	if w <= 0 {
		return enrollment.MetricsWindow
	}
	return w
}
