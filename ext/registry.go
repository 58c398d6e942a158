package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/huffmsa/nuts/job"
)

// entry pairs a hook with the extension name captured at registration.
type entry[H any] struct {
	name string
	hook H
}

// cache appends e to list if it implements H.
func cache[H any](list []entry[H], name string, e Extension) []entry[H] {
	if h, ok := e.(H); ok {
		return append(list, entry[H]{name: name, hook: h})
	}
	return list
}

// Registry holds registered extensions and dispatches lifecycle events to
// them. Extensions are type-cached at registration so an emit iterates
// only over implementors. A nil *Registry is a valid no-op registry.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobEnqueued        []entry[JobEnqueued]
	jobStarted         []entry[JobStarted]
	jobCompleted       []entry[JobCompleted]
	jobFailed          []entry[JobFailed]
	jobCancelled       []entry[JobCancelled]
	jobRecovered       []entry[JobRecovered]
	workflowStarted    []entry[WorkflowStarted]
	workflowCompleted  []entry[WorkflowCompleted]
	workflowFailed     []entry[WorkflowFailed]
	workflowCancelled  []entry[WorkflowCancelled]
	leadershipAcquired []entry[LeadershipAcquired]
	leadershipLost     []entry[LeadershipLost]
	scheduleFired      []entry[ScheduleFired]
	shutdown           []entry[Shutdown]
}

// NewRegistry creates an extension registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension. Extensions are notified in registration
// order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	r.jobEnqueued = cache(r.jobEnqueued, name, e)
	r.jobStarted = cache(r.jobStarted, name, e)
	r.jobCompleted = cache(r.jobCompleted, name, e)
	r.jobFailed = cache(r.jobFailed, name, e)
	r.jobCancelled = cache(r.jobCancelled, name, e)
	r.jobRecovered = cache(r.jobRecovered, name, e)
	r.workflowStarted = cache(r.workflowStarted, name, e)
	r.workflowCompleted = cache(r.workflowCompleted, name, e)
	r.workflowFailed = cache(r.workflowFailed, name, e)
	r.workflowCancelled = cache(r.workflowCancelled, name, e)
	r.leadershipAcquired = cache(r.leadershipAcquired, name, e)
	r.leadershipLost = cache(r.leadershipLost, name, e)
	r.scheduleFired = cache(r.scheduleFired, name, e)
	r.shutdown = cache(r.shutdown, name, e)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension {
	if r == nil {
		return nil
	}
	return r.extensions
}

// emit calls fn for every entry, logging hook errors.
func emit[H any](r *Registry, hookName string, list []entry[H], fn func(H) error) {
	for _, e := range list {
		if err := fn(e.hook); err != nil {
			r.logger.Warn("extension hook error",
				slog.String("hook", hookName),
				slog.String("extension", e.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobEnqueued notifies JobEnqueued implementors.
func (r *Registry) EmitJobEnqueued(ctx context.Context, inst job.Instance) {
	if r == nil {
		return
	}
	emit(r, "OnJobEnqueued", r.jobEnqueued, func(h JobEnqueued) error {
		return h.OnJobEnqueued(ctx, inst)
	})
}

// EmitJobStarted notifies JobStarted implementors.
func (r *Registry) EmitJobStarted(ctx context.Context, inst job.Instance, workerID string) {
	if r == nil {
		return
	}
	emit(r, "OnJobStarted", r.jobStarted, func(h JobStarted) error {
		return h.OnJobStarted(ctx, inst, workerID)
	})
}

// EmitJobCompleted notifies JobCompleted implementors.
func (r *Registry) EmitJobCompleted(ctx context.Context, inst job.Instance, res job.Result, elapsed time.Duration) {
	if r == nil {
		return
	}
	emit(r, "OnJobCompleted", r.jobCompleted, func(h JobCompleted) error {
		return h.OnJobCompleted(ctx, inst, res, elapsed)
	})
}

// EmitJobFailed notifies JobFailed implementors.
func (r *Registry) EmitJobFailed(ctx context.Context, inst job.Instance, res job.Result) {
	if r == nil {
		return
	}
	emit(r, "OnJobFailed", r.jobFailed, func(h JobFailed) error {
		return h.OnJobFailed(ctx, inst, res)
	})
}

// EmitJobCancelled notifies JobCancelled implementors.
func (r *Registry) EmitJobCancelled(ctx context.Context, inst job.Instance) {
	if r == nil {
		return
	}
	emit(r, "OnJobCancelled", r.jobCancelled, func(h JobCancelled) error {
		return h.OnJobCancelled(ctx, inst)
	})
}

// EmitJobRecovered notifies JobRecovered implementors.
func (r *Registry) EmitJobRecovered(ctx context.Context, identity, workerID string) {
	if r == nil {
		return
	}
	emit(r, "OnJobRecovered", r.jobRecovered, func(h JobRecovered) error {
		return h.OnJobRecovered(ctx, identity, workerID)
	})
}

// ──────────────────────────────────────────────────
// Workflow event emitters
// ──────────────────────────────────────────────────

// EmitWorkflowStarted notifies WorkflowStarted implementors.
func (r *Registry) EmitWorkflowStarted(ctx context.Context, name, runID string) {
	if r == nil {
		return
	}
	emit(r, "OnWorkflowStarted", r.workflowStarted, func(h WorkflowStarted) error {
		return h.OnWorkflowStarted(ctx, name, runID)
	})
}

// EmitWorkflowCompleted notifies WorkflowCompleted implementors.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, name, runID string, elapsed time.Duration) {
	if r == nil {
		return
	}
	emit(r, "OnWorkflowCompleted", r.workflowCompleted, func(h WorkflowCompleted) error {
		return h.OnWorkflowCompleted(ctx, name, runID, elapsed)
	})
}

// EmitWorkflowFailed notifies WorkflowFailed implementors.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, name, runID, failedJob, msg string) {
	if r == nil {
		return
	}
	emit(r, "OnWorkflowFailed", r.workflowFailed, func(h WorkflowFailed) error {
		return h.OnWorkflowFailed(ctx, name, runID, failedJob, msg)
	})
}

// EmitWorkflowCancelled notifies WorkflowCancelled implementors.
func (r *Registry) EmitWorkflowCancelled(ctx context.Context, name, runID string) {
	if r == nil {
		return
	}
	emit(r, "OnWorkflowCancelled", r.workflowCancelled, func(h WorkflowCancelled) error {
		return h.OnWorkflowCancelled(ctx, name, runID)
	})
}

// ──────────────────────────────────────────────────
// Cluster and schedule event emitters
// ──────────────────────────────────────────────────

// EmitLeadershipAcquired notifies LeadershipAcquired implementors.
func (r *Registry) EmitLeadershipAcquired(ctx context.Context, workerID string) {
	if r == nil {
		return
	}
	emit(r, "OnLeadershipAcquired", r.leadershipAcquired, func(h LeadershipAcquired) error {
		return h.OnLeadershipAcquired(ctx, workerID)
	})
}

// EmitLeadershipLost notifies LeadershipLost implementors.
func (r *Registry) EmitLeadershipLost(ctx context.Context, workerID string) {
	if r == nil {
		return
	}
	emit(r, "OnLeadershipLost", r.leadershipLost, func(h LeadershipLost) error {
		return h.OnLeadershipLost(ctx, workerID)
	})
}

// EmitScheduleFired notifies ScheduleFired implementors.
func (r *Registry) EmitScheduleFired(ctx context.Context, name string, workflow bool) {
	if r == nil {
		return
	}
	emit(r, "OnScheduleFired", r.scheduleFired, func(h ScheduleFired) error {
		return h.OnScheduleFired(ctx, name, workflow)
	})
}

// EmitShutdown notifies Shutdown implementors.
func (r *Registry) EmitShutdown(ctx context.Context) {
	if r == nil {
		return
	}
	emit(r, "OnShutdown", r.shutdown, func(h Shutdown) error {
		return h.OnShutdown(ctx)
	})
}
