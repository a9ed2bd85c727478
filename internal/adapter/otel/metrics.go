package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "courseforge"

// Metrics holds the enrollment workflow instruments. A nil *Metrics records
// nothing, so services can run without telemetry.
type Metrics struct {
	EnrollmentsCreated  metric.Int64Counter
	EnrollmentsReviewed metric.Int64Counter
	TenantCacheHits     metric.Int64Counter
	TenantCacheMisses   metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates the instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.EnrollmentsCreated, err = meter.Int64Counter("courseforge.enrollments.created",
		metric.WithDescription("Manual enrollment requests submitted"))
	if err != nil {
		return nil, err
	}

	m.EnrollmentsReviewed, err = meter.Int64Counter("courseforge.enrollments.reviewed",
		metric.WithDescription("Review decisions applied, by resulting status"))
	if err != nil {
		return nil, err
	}

	m.TenantCacheHits, err = meter.Int64Counter("courseforge.tenant_cache.hits",
		metric.WithDescription("Business name resolutions served from cache"))
	if err != nil {
		return nil, err
	}

	m.TenantCacheMisses, err = meter.Int64Counter("courseforge.tenant_cache.misses",
		metric.WithDescription("Business name resolutions that queried the tenant store"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordCreated(ctx context.Context, tenantID int64) {
	if m == nil {
		return
	}
	m.EnrollmentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.Int64("tenant.id", tenantID)))
}

func (m *Metrics) RecordReviewed(ctx context.Context, tenantID int64, status string) {
	if m == nil {
		return
	}
	m.EnrollmentsReviewed.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("tenant.id", tenantID),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.TenantCacheHits.Add(ctx, 1)
}

func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.TenantCacheMisses.Add(ctx, 1)
}
