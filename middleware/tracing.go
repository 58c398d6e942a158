package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/huffmsa/nuts/job"
)

// instrumentationName is the scope name for nuts tracing and metrics.
const instrumentationName = "github.com/huffmsa/nuts"

// Tracing returns middleware that wraps execution in a span from the
// global TracerProvider. Without a configured provider it is a
// pass-through.
//
// Span attributes: nuts.job.name, nuts.job.identity, nuts.workflow,
// nuts.job.params.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(instrumentationName))
}

// TracingWithTracer returns tracing middleware using tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inst *job.Instance, next Handler) (any, error) {
		ctx, span := tracer.Start(ctx, "nuts.job.execute",
			trace.WithAttributes(
				attribute.String("nuts.job.name", inst.Name),
				attribute.String("nuts.job.identity", inst.Identity()),
				attribute.String("nuts.workflow", inst.Workflow),
				attribute.Int("nuts.job.params", len(inst.Params)),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		res, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return res, err
	}
}
