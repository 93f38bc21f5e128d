// Package telemetry wraps OpenTelemetry span/meter creation the way the
// teacher's pkg/telemetry does, used identically from BookingService and
// PaymentWorkerSet.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/msaedi/instructly-booking-engine"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

// StartSpan starts a span named "service.booking.x" / "worker.job.y" per
// the teacher's naming convention observed in booking_service.go and
// payment_service_impl.go.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

// WorkerCandidateCounter returns a counter tracking how many candidate
// bookings a PaymentWorkerSet job examined in a given run. No job
// records to it; authorizationHealthCheck does not read it.
func WorkerCandidateCounter(jobName string) (metric.Int64Counter, error) {
	return meter.Int64Counter(
		"payment_worker_candidates_total",
		metric.WithDescription("candidate bookings examined per PaymentWorkerSet job"),
	)
}

// PSPCallDuration returns a histogram for PSP call latency. No
// PSPAdapter implementation records to it.
func PSPCallDuration() (metric.Float64Histogram, error) {
	return meter.Float64Histogram(
		"psp_call_duration_seconds",
		metric.WithDescription("PSP adapter call latency"),
	)
}
