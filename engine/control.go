package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/queue"
	"github.com/huffmsa/nuts/workflow"
)

// ──────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────

// Enqueue adds a standalone instance of the named job to pending. Unknown
// names are rejected with nuts.ErrUnknownJob before anything is written.
func (e *Engine) Enqueue(ctx context.Context, name string, params ...any) error {
	if _, err := e.jobs.Resolve(name); err != nil {
		return err
	}
	inst := job.Instance{Name: name, Params: params}
	if err := e.queue.EnqueuePending(ctx, inst); err != nil {
		return err
	}
	e.extensions.EmitJobEnqueued(ctx, inst)
	return nil
}

// ScheduleJob schedules the named job to be promoted at runAt, replacing
// any earlier schedule for it.
func (e *Engine) ScheduleJob(ctx context.Context, name string, runAt time.Time) error {
	if _, err := e.jobs.Resolve(name); err != nil {
		return err
	}
	return e.queue.Schedule(ctx, name, runAt)
}

// CancelPending removes every standalone pending instance of the named
// job and returns how many were removed.
func (e *Engine) CancelPending(ctx context.Context, name string) (int, error) {
	removed, err := e.queue.RemovePendingWhere(ctx, func(inst job.Instance) bool {
		return inst.Workflow == "" && inst.Name == name
	})
	n := len(removed)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, fmt.Errorf("job %q is not pending: %w", name, nuts.ErrNotFound)
	}
	return n, nil
}

// CancelScheduled removes the named job from the scheduled set.
func (e *Engine) CancelScheduled(ctx context.Context, name string) error {
	ok, err := e.queue.Unschedule(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %q is not scheduled: %w", name, nuts.ErrNotFound)
	}
	return nil
}

// RequestCancel asks a running job to stop. identifier is a running key,
// or a job identity to cancel it wherever it runs. It returns once the
// request is recorded.
func (e *Engine) RequestCancel(ctx context.Context, identifier string) error {
	return e.queue.RequestCancel(ctx, identifier)
}

// ListPending returns the pending instances.
func (e *Engine) ListPending(ctx context.Context) ([]job.Instance, error) {
	return e.queue.ListPending(ctx)
}

// ListRunning returns the running entries.
func (e *Engine) ListRunning(ctx context.Context) ([]queue.RunningEntry, error) {
	return e.queue.ListRunning(ctx)
}

// ListCompleted returns the completion records.
func (e *Engine) ListCompleted(ctx context.Context) ([]queue.CompletedEntry, error) {
	return e.queue.ListCompleted(ctx)
}

// ListScheduled returns the scheduled jobs, earliest first.
func (e *Engine) ListScheduled(ctx context.Context) ([]queue.ScheduledEntry, error) {
	return e.queue.ListScheduled(ctx)
}

// ──────────────────────────────────────────────────
// Workflows
// ──────────────────────────────────────────────────

// TriggerWorkflow schedules the named workflow to start now. The leader
// starts it on its next cycle.
func (e *Engine) TriggerWorkflow(ctx context.Context, name string) error {
	return e.RescheduleWorkflow(ctx, name, e.now())
}

// RescheduleWorkflow sets the next start of the named workflow.
func (e *Engine) RescheduleWorkflow(ctx context.Context, name string, runAt time.Time) error {
	if _, err := e.workflows.Resolve(name); err != nil {
		return err
	}
	return e.queue.ScheduleWorkflow(ctx, name, runAt)
}

// CancelScheduledWorkflow removes the named workflow from the scheduled
// set. A run in progress is not affected.
func (e *Engine) CancelScheduledWorkflow(ctx context.Context, name string) error {
	ok, err := e.queue.UnscheduleWorkflow(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("workflow %q is not scheduled: %w", name, nuts.ErrNotFound)
	}
	return nil
}

// CancelWorkflow requests cancellation of the running workflow.
func (e *Engine) CancelWorkflow(ctx context.Context, name string) error {
	return e.orchestrator.Cancel(ctx, name)
}

// WorkflowStatus returns the state of the latest run of the named
// workflow.
func (e *Engine) WorkflowStatus(ctx context.Context, name string) (*workflow.State, error) {
	return e.orchestrator.Status(ctx, name)
}

// ListWorkflowStates returns the latest run of every workflow.
func (e *Engine) ListWorkflowStates(ctx context.Context) ([]workflow.State, error) {
	return e.orchestrator.States(ctx)
}

// ListScheduledWorkflows returns the scheduled workflows, earliest first.
func (e *Engine) ListScheduledWorkflows(ctx context.Context) ([]queue.ScheduledEntry, error) {
	return e.queue.ListScheduledWorkflows(ctx)
}

// ──────────────────────────────────────────────────
// Cluster
// ──────────────────────────────────────────────────

// Leader returns the worker ID holding the lease.
func (e *Engine) Leader(ctx context.Context) (string, bool, error) {
	return e.elector.Leader(ctx)
}

// Health reports whether the store is reachable.
func (e *Engine) Health(ctx context.Context) error {
	return e.store.Ping(ctx)
}
