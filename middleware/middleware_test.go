package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/middleware"
)

func newTestInstance() *job.Instance {
	return &job.Instance{
		Name:     "transform_data",
		Workflow: "etl",
		Params:   job.Params{map[string]any{"extract_data": []any{1, 2}}},
	}
}

func okHandler(context.Context) (any, error) { return 42, nil }

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string
	mk := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *job.Instance, next middleware.Handler) (any, error) {
			order = append(order, name+"-before")
			res, err := next(ctx)
			order = append(order, name+"-after")
			return res, err
		}
	}

	chain := middleware.Chain(mk("mw1"), mk("mw2"))
	res, err := chain(context.Background(), newTestInstance(), func(context.Context) (any, error) {
		order = append(order, "handler")
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "done" {
		t.Fatalf("result = %v", res)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("order = %v, want %v", order, expected)
	}
}

func TestChain_Empty(t *testing.T) {
	res, err := middleware.Chain()(context.Background(), newTestInstance(), okHandler)
	if err != nil || res != 42 {
		t.Fatalf("res=%v err=%v", res, err)
	}
}

func TestChain_PropagatesError(t *testing.T) {
	want := errors.New("handler error")
	pass := func(ctx context.Context, _ *job.Instance, next middleware.Handler) (any, error) {
		return next(ctx)
	}
	_, err := middleware.Chain(pass)(context.Background(), newTestInstance(), func(context.Context) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	m := middleware.Recover(slog.Default())
	res, err := m(context.Background(), newTestInstance(), func(context.Context) (any, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if res != nil {
		t.Fatalf("expected nil result, got %v", res)
	}
	if !strings.Contains(err.Error(), "transform_data") {
		t.Errorf("error should name the job: %v", err)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	m := middleware.Recover(slog.Default())
	res, err := m(context.Background(), newTestInstance(), okHandler)
	if err != nil || res != 42 {
		t.Fatalf("res=%v err=%v", res, err)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := middleware.Logging(logger)

	_, _ = m(context.Background(), newTestInstance(), okHandler)
	if !strings.Contains(buf.String(), "job completed") {
		t.Fatalf("missing completion log: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "workflow-etl|transform_data") {
		t.Fatalf("log should carry the identity: %s", buf.String())
	}

	buf.Reset()
	_, _ = m(context.Background(), newTestInstance(), func(context.Context) (any, error) {
		return nil, context.Canceled
	})
	if !strings.Contains(buf.String(), "outcome=cancelled") {
		t.Fatalf("missing cancelled outcome: %s", buf.String())
	}
}

func TestTimeout(t *testing.T) {
	jobs := job.NewRegistry()
	jobs.MustRegister(
		job.NewDefinition("transform_data", func(context.Context, job.Params) (any, error) { return nil, nil },
			job.WithTimeout(20*time.Millisecond)),
		job.NewDefinition("untimed", func(context.Context, job.Params) (any, error) { return nil, nil }),
	)
	m := middleware.Timeout(jobs, slog.Default())

	_, err := m(context.Background(), newTestInstance(), func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	_, err = m(context.Background(), &job.Instance{Name: "untimed"}, func(ctx context.Context) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Error("untimed job got a deadline")
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
