package ext_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/huffmsa/nuts/ext"
	"github.com/huffmsa/nuts/job"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) record(s string) error {
	e.calls = append(e.calls, s)
	return nil
}

func (e *allHooksExt) OnJobEnqueued(context.Context, job.Instance) error {
	return e.record("OnJobEnqueued")
}

func (e *allHooksExt) OnJobStarted(context.Context, job.Instance, string) error {
	return e.record("OnJobStarted")
}

func (e *allHooksExt) OnJobCompleted(context.Context, job.Instance, job.Result, time.Duration) error {
	return e.record("OnJobCompleted")
}

func (e *allHooksExt) OnJobFailed(context.Context, job.Instance, job.Result) error {
	return e.record("OnJobFailed")
}

func (e *allHooksExt) OnJobCancelled(context.Context, job.Instance) error {
	return e.record("OnJobCancelled")
}

func (e *allHooksExt) OnJobRecovered(context.Context, string, string) error {
	return e.record("OnJobRecovered")
}

func (e *allHooksExt) OnWorkflowStarted(context.Context, string, string) error {
	return e.record("OnWorkflowStarted")
}

func (e *allHooksExt) OnWorkflowCompleted(context.Context, string, string, time.Duration) error {
	return e.record("OnWorkflowCompleted")
}

func (e *allHooksExt) OnWorkflowFailed(context.Context, string, string, string, string) error {
	return e.record("OnWorkflowFailed")
}

func (e *allHooksExt) OnWorkflowCancelled(context.Context, string, string) error {
	return e.record("OnWorkflowCancelled")
}

func (e *allHooksExt) OnLeadershipAcquired(context.Context, string) error {
	return e.record("OnLeadershipAcquired")
}

func (e *allHooksExt) OnLeadershipLost(context.Context, string) error {
	return e.record("OnLeadershipLost")
}

func (e *allHooksExt) OnScheduleFired(context.Context, string, bool) error {
	return e.record("OnScheduleFired")
}

func (e *allHooksExt) OnShutdown(context.Context) error {
	return e.record("OnShutdown")
}

// completedOnly implements a single hook.
type completedOnly struct {
	name  string
	order *[]string
}

func (e *completedOnly) Name() string { return e.name }

func (e *completedOnly) OnJobCompleted(context.Context, job.Instance, job.Result, time.Duration) error {
	*e.order = append(*e.order, e.name)
	return nil
}

type failingExt struct{}

func (failingExt) Name() string { return "failing" }

func (failingExt) OnJobFailed(context.Context, job.Instance, job.Result) error {
	return errors.New("boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	e := &allHooksExt{}
	r.Register(e)

	ctx := context.Background()
	inst := job.Instance{Name: "AddOne"}
	r.EmitJobEnqueued(ctx, inst)
	r.EmitJobStarted(ctx, inst, "wkr_1")
	r.EmitJobCompleted(ctx, inst, job.Result{Success: true}, time.Second)
	r.EmitJobFailed(ctx, inst, job.Result{Error: "x"})
	r.EmitJobCancelled(ctx, inst)
	r.EmitJobRecovered(ctx, "AddOne", "wkr_1")
	r.EmitWorkflowStarted(ctx, "etl", "wfrun_1")
	r.EmitWorkflowCompleted(ctx, "etl", "wfrun_1", time.Second)
	r.EmitWorkflowFailed(ctx, "etl", "wfrun_1", "transform", "bad input")
	r.EmitWorkflowCancelled(ctx, "etl", "wfrun_1")
	r.EmitLeadershipAcquired(ctx, "wkr_1")
	r.EmitLeadershipLost(ctx, "wkr_1")
	r.EmitScheduleFired(ctx, "etl", true)
	r.EmitShutdown(ctx)

	want := []string{
		"OnJobEnqueued", "OnJobStarted", "OnJobCompleted", "OnJobFailed",
		"OnJobCancelled", "OnJobRecovered", "OnWorkflowStarted",
		"OnWorkflowCompleted", "OnWorkflowFailed", "OnWorkflowCancelled",
		"OnLeadershipAcquired", "OnLeadershipLost", "OnScheduleFired", "OnShutdown",
	}
	if len(e.calls) != len(want) {
		t.Fatalf("calls = %v", e.calls)
	}
	for i := range want {
		if e.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, e.calls[i], want[i])
		}
	}
}

func TestRegistry_OrderPreservedAndOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(nil)
	var order []string
	r.Register(&completedOnly{name: "first", order: &order})
	r.Register(failingExt{})
	r.Register(&completedOnly{name: "second", order: &order})

	r.EmitJobCompleted(context.Background(), job.Instance{Name: "a"}, job.Result{}, 0)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v", order)
	}
	if len(r.Extensions()) != 3 {
		t.Fatalf("expected 3 extensions, got %d", len(r.Extensions()))
	}
}

func TestRegistry_HookErrorsLogged(t *testing.T) {
	var buf bytes.Buffer
	r := ext.NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	r.Register(failingExt{})

	r.EmitJobFailed(context.Background(), job.Instance{Name: "a"}, job.Result{})
	if !strings.Contains(buf.String(), "extension=failing") {
		t.Fatalf("expected hook error to be logged, got %q", buf.String())
	}
}

func TestRegistry_NilIsNoOp(_ *testing.T) {
	var r *ext.Registry
	ctx := context.Background()
	r.EmitJobCompleted(ctx, job.Instance{}, job.Result{}, 0)
	r.EmitWorkflowFailed(ctx, "", "", "", "")
	r.EmitLeadershipAcquired(ctx, "")
	r.EmitShutdown(ctx)
}
