package ext

import (
	"context"
	"time"

	"github.com/huffmsa/nuts/job"
)

// Extension is the base interface all extensions implement.
type Extension interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Job hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after an instance is added to the pending queue
// through the engine.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, inst job.Instance) error
}

// JobStarted is called when a worker begins executing an instance.
type JobStarted interface {
	OnJobStarted(ctx context.Context, inst job.Instance, workerID string) error
}

// JobCompleted is called after a handler returns without error.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, inst job.Instance, res job.Result, elapsed time.Duration) error
}

// JobFailed is called after a handler fails or the job is unknown.
type JobFailed interface {
	OnJobFailed(ctx context.Context, inst job.Instance, res job.Result) error
}

// JobCancelled is called when an instance finishes as cancelled.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, inst job.Instance) error
}

// JobRecovered is called when the recovery sweep returns an orphaned
// running entry to pending.
type JobRecovered interface {
	OnJobRecovered(ctx context.Context, identity, workerID string) error
}

// ──────────────────────────────────────────────────
// Workflow hooks
// ──────────────────────────────────────────────────

// WorkflowStarted is called when a workflow run begins.
type WorkflowStarted interface {
	OnWorkflowStarted(ctx context.Context, name, runID string) error
}

// WorkflowCompleted is called when every job of a run succeeded.
type WorkflowCompleted interface {
	OnWorkflowCompleted(ctx context.Context, name, runID string, elapsed time.Duration) error
}

// WorkflowFailed is called when a run fails fast on failedJob.
type WorkflowFailed interface {
	OnWorkflowFailed(ctx context.Context, name, runID, failedJob, msg string) error
}

// WorkflowCancelled is called when a cancel request ends a run.
type WorkflowCancelled interface {
	OnWorkflowCancelled(ctx context.Context, name, runID string) error
}

// ──────────────────────────────────────────────────
// Cluster and schedule hooks
// ──────────────────────────────────────────────────

// LeadershipAcquired is called when a worker becomes leader.
type LeadershipAcquired interface {
	OnLeadershipAcquired(ctx context.Context, workerID string) error
}

// LeadershipLost is called when a leader fails to renew its lease.
type LeadershipLost interface {
	OnLeadershipLost(ctx context.Context, workerID string) error
}

// ScheduleFired is called when a scheduled job is promoted or a scheduled
// workflow is started.
type ScheduleFired interface {
	OnScheduleFired(ctx context.Context, name string, workflow bool) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
