package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "courseforge"

// StartEnrollmentSpan starts the span for one workflow operation
// ("create", "list", "review"). tenantID is added later via SetTenant once
// resolution succeeded.
func StartEnrollmentSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "enrollment."+op)
}

// SetTenant tags span with the resolved tenant.
func SetTenant(span trace.Span, tenantID int64) {
	span.SetAttributes(attribute.Int64("tenant.id", tenantID))
}

// SetRequest tags span with an enrollment request id and status.
func SetRequest(span trace.Span, requestID int64, status string) {
	span.SetAttributes(
		attribute.Int64("enrollment.request_id", requestID),
		attribute.String("enrollment.status", status),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
