package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	mw "github.com/huffmsa/nuts/middleware"
)

func setupTestTracer() (*tracetest.SpanRecorder, trace.Tracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp.Tracer("test")
}

func TestTracing_CreatesSpanWithAttributes(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)

	if _, err := m(context.Background(), newTestInstance(), okHandler); err != nil {
		t.Fatal(err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "nuts.job.execute" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status().Code)
	}

	attrs := map[string]string{}
	for _, a := range spans[0].Attributes() {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	want := map[string]string{
		"nuts.job.name":     "transform_data",
		"nuts.job.identity": "workflow-etl|transform_data",
		"nuts.workflow":     "etl",
		"nuts.job.params":   "1",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestTracing_ErrorStatus(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)

	_, _ = m(context.Background(), newTestInstance(), func(context.Context) (any, error) {
		return nil, errors.New("bad input")
	})
	span := sr.Ended()[0]
	if span.Status().Code != codes.Error || span.Status().Description != "bad input" {
		t.Fatalf("status = %+v", span.Status())
	}
	if len(span.Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestTracing_PropagatesContext(t *testing.T) {
	_, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)

	_, _ = m(context.Background(), newTestInstance(), func(ctx context.Context) (any, error) {
		if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
			t.Error("handler context carries no span")
		}
		return nil, nil
	})
}

func TestTracing_DefaultNoopSafe(t *testing.T) {
	res, err := mw.Tracing()(context.Background(), newTestInstance(), okHandler)
	if err != nil || res != 42 {
		t.Fatalf("res=%v err=%v", res, err)
	}
}
