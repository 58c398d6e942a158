package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/huffmsa/nuts/job"
)

// Metrics returns middleware that records execution metrics with the
// global MeterProvider.
//
// Instruments:
//   - nuts.job.duration (Float64Histogram, seconds)
//   - nuts.job.executions (Int64Counter)
//
// Both carry job_name, workflow, and status ("ok", "error", "cancelled",
// or "timeout").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter returns metrics middleware using meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The OTel API returns noop instruments alongside any error.
	duration, _ := meter.Float64Histogram(
		"nuts.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"nuts.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, inst *job.Instance, next Handler) (any, error) {
		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("job_name", inst.Name),
			attribute.String("workflow", inst.Workflow),
			attribute.String("status", outcome(err)),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)
		return res, err
	}
}
