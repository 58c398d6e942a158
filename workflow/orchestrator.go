package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/ext"
	"github.com/huffmsa/nuts/id"
	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/queue"
)

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithExtensions sets the lifecycle hook registry.
func WithExtensions(r *ext.Registry) OrchestratorOption {
	return func(o *Orchestrator) { o.extensions = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator drives workflow runs. Start and Advance must only be called
// by the cluster leader; Cancel and the read methods are safe anywhere.
type Orchestrator struct {
	queue      *queue.Manager
	workflows  *Registry
	extensions *ext.Registry
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(q *queue.Manager, workflows *Registry, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		queue:     q,
		workflows: workflows,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ──────────────────────────────────────────────────
// Leader operations
// ──────────────────────────────────────────────────

// Start begins a new run of the named workflow and enqueues its jobs that
// have no requirements. A run already in progress is returned unchanged.
func (o *Orchestrator) Start(ctx context.Context, name string) (*State, error) {
	def, err := o.workflows.Resolve(name)
	if err != nil {
		return nil, err
	}
	order, err := o.workflows.Order(name)
	if err != nil {
		return nil, err
	}

	var cur State
	found, err := o.queue.GetWorkflowState(ctx, name, &cur)
	if err != nil {
		return nil, err
	}
	if found && !cur.Status.Terminal() {
		o.logger.Info("workflow already running",
			slog.String("workflow", name),
			slog.String("run_id", cur.RunID),
		)
		return &cur, nil
	}

	// Records and cancel requests left by the previous run must not leak
	// into this one.
	identities := make([]string, 0, len(order))
	for _, j := range order {
		identities = append(identities, job.Identity(name, j))
	}
	if err := o.queue.DeleteCompleted(ctx, identities...); err != nil {
		return nil, err
	}
	if err := o.queue.ClearCancel(ctx, append(identities, job.WorkflowCancelKey(name))...); err != nil {
		return nil, err
	}

	st := newState(def, order, id.NewRunID().String(), o.queue.Now())
	st.Status = StatusRunning
	if _, err := o.enqueueReady(ctx, st); err != nil {
		return nil, err
	}
	if err := o.save(ctx, st); err != nil {
		return nil, err
	}

	o.logger.Info("workflow started",
		slog.String("workflow", name),
		slog.String("run_id", st.RunID),
		slog.Any("enqueued", st.Running()),
	)
	o.extensions.EmitWorkflowStarted(ctx, name, st.RunID)
	return st, nil
}

// Advance applies pending cancellation requests and moves every stored run
// forward by one step. Errors on one workflow do not stop the others.
func (o *Orchestrator) Advance(ctx context.Context) error {
	raw, err := o.queue.WorkflowStates(ctx)
	if err != nil {
		return err
	}
	members, err := o.queue.ListCancelRequests(ctx)
	if err != nil {
		return err
	}
	cancelRequested := make(map[string]bool)
	for _, m := range members {
		if w, ok := job.ParseWorkflowCancelKey(m); ok {
			cancelRequested[w] = true
		}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		var st State
		if err := o.queue.Codec().Unmarshal(raw[name], &st); err != nil {
			o.logger.Warn("skipping undecodable workflow state",
				slog.String("workflow", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := o.advance(ctx, &st, cancelRequested[name]); err != nil {
			errs = append(errs, fmt.Errorf("workflow %q: %w", name, err))
		}
		delete(cancelRequested, name)
	}

	// Requests for workflows that have never run.
	for name := range cancelRequested {
		o.logger.Info("dropping cancel request for idle workflow", slog.String("workflow", name))
		if err := o.queue.ClearCancel(ctx, job.WorkflowCancelKey(name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) advance(ctx context.Context, st *State, cancelRequested bool) error {
	if st.Status.Terminal() {
		if cancelRequested {
			if err := o.queue.ClearCancel(ctx, job.WorkflowCancelKey(st.Name)); err != nil {
				return err
			}
		}
		// Jobs still executing when the run ended get their results
		// recorded, nothing more.
		changed, _, err := o.collect(ctx, st)
		if err != nil || !changed {
			return err
		}
		return o.save(ctx, st)
	}

	if cancelRequested {
		return o.cancel(ctx, st)
	}

	changed, failed, err := o.collect(ctx, st)
	if err != nil {
		return err
	}
	now := o.queue.Now()

	if failed != nil {
		msg := fmt.Sprintf("job %s failed: %s", failed.Name, failed.Error)
		st.finish(StatusFailed, msg, now)
		if err := o.save(ctx, st); err != nil {
			return err
		}
		o.logger.Warn("workflow failed",
			slog.String("workflow", st.Name),
			slog.String("run_id", st.RunID),
			slog.String("job", failed.Name),
			slog.String("error", failed.Error),
		)
		o.extensions.EmitWorkflowFailed(ctx, st.Name, st.RunID, failed.Name, msg)
		return nil
	}

	if st.AllCompleted() {
		st.finish(StatusCompleted, "", now)
		if err := o.save(ctx, st); err != nil {
			return err
		}
		elapsed := now.Sub(st.StartedAt)
		o.logger.Info("workflow completed",
			slog.String("workflow", st.Name),
			slog.String("run_id", st.RunID),
			slog.Duration("elapsed", elapsed),
		)
		o.extensions.EmitWorkflowCompleted(ctx, st.Name, st.RunID, elapsed)
		return nil
	}

	enqueued, err := o.enqueueReady(ctx, st)
	if err != nil {
		// Jobs enqueued before the error are already marked running.
		if enqueued > 0 || changed {
			if saveErr := o.save(ctx, st); saveErr != nil {
				return errors.Join(err, saveErr)
			}
		}
		return err
	}
	if enqueued == 0 && !changed {
		return nil
	}
	return o.save(ctx, st)
}

// collect folds the completion records of running jobs into st. It returns
// the first job that failed, if any.
func (o *Orchestrator) collect(ctx context.Context, st *State) (bool, *JobState, error) {
	var (
		changed bool
		failed  *JobState
	)
	for i := range st.Jobs {
		js := &st.Jobs[i]
		if js.Status != JobRunning {
			continue
		}
		res, ok, err := o.queue.Completed(ctx, job.Identity(st.Name, js.Name))
		if err != nil {
			return changed, failed, err
		}
		// A record from an earlier run of the same workflow is not ours.
		if !ok || res.RunID != st.RunID {
			continue
		}
		changed = true
		if res.Success {
			js.Status = JobCompleted
			continue
		}
		js.Status = JobFailed
		js.Error = res.Error
		if failed == nil {
			failed = js
		}
	}
	return changed, failed, nil
}

// enqueueReady enqueues every ready job of st and marks it running. Jobs
// with requirements receive one map param holding the result of each
// required job.
func (o *Orchestrator) enqueueReady(ctx context.Context, st *State) (int, error) {
	n := 0
	for _, name := range st.Ready() {
		js := st.Job(name)
		inst := job.Instance{Name: name, Workflow: st.Name, DependsOn: js.Requires, RunID: st.RunID}
		if len(js.Requires) > 0 {
			upstream := make(map[string]any, len(js.Requires))
			for _, dep := range js.Requires {
				res, ok, err := o.queue.Completed(ctx, job.Identity(st.Name, dep))
				if err != nil {
					return n, err
				}
				if ok && res.RunID == st.RunID {
					upstream[dep] = res.Result
				}
			}
			inst.Params = job.Params{upstream}
		}
		if err := o.queue.EnqueuePending(ctx, inst); err != nil {
			return n, err
		}
		js.Status = JobRunning
		n++
		o.extensions.EmitJobEnqueued(ctx, inst)
	}
	return n, nil
}

// cancel ends the run: unclaimed members are removed from pending and
// claimed ones are asked to stop.
func (o *Orchestrator) cancel(ctx context.Context, st *State) error {
	taken, err := o.queue.RemovePendingWhere(ctx, func(inst job.Instance) bool {
		return inst.Workflow == st.Name
	})
	if err != nil {
		return err
	}
	removed := make(map[string]bool, len(taken))
	for _, inst := range taken {
		removed[inst.Name] = true
	}

	entries, err := o.queue.ListRunning(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Workflow != st.Name {
			continue
		}
		if err := o.queue.RequestCancel(ctx, e.Key); err != nil {
			return err
		}
	}

	for i := range st.Jobs {
		js := &st.Jobs[i]
		if js.Status == JobRunning && removed[js.Name] {
			js.Status = JobFailed
			js.Error = job.CancelledError
		}
	}
	st.finish(StatusCancelled, job.CancelledError, o.queue.Now())
	if err := o.save(ctx, st); err != nil {
		return err
	}
	if err := o.queue.ClearCancel(ctx, job.WorkflowCancelKey(st.Name)); err != nil {
		return err
	}

	o.logger.Info("workflow cancelled",
		slog.String("workflow", st.Name),
		slog.String("run_id", st.RunID),
	)
	o.extensions.EmitWorkflowCancelled(ctx, st.Name, st.RunID)
	return nil
}

func (o *Orchestrator) save(ctx context.Context, st *State) error {
	return o.queue.PutWorkflowState(ctx, st.Name, st)
}

// ──────────────────────────────────────────────────
// Control and inspection
// ──────────────────────────────────────────────────

// Cancel records a cancellation request for the running workflow and
// returns. The leader applies it on its next cycle. It fails with
// nuts.ErrNotFound if the workflow is not running.
func (o *Orchestrator) Cancel(ctx context.Context, name string) error {
	st, err := o.Status(ctx, name)
	if err != nil {
		return err
	}
	if st.Status.Terminal() {
		return fmt.Errorf("workflow %q is %s: %w", name, st.Status, nuts.ErrNotFound)
	}
	return o.queue.RequestCancel(ctx, job.WorkflowCancelKey(name))
}

// Status returns the state of the latest run of the named workflow.
func (o *Orchestrator) Status(ctx context.Context, name string) (*State, error) {
	var st State
	found, err := o.queue.GetWorkflowState(ctx, name, &st)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("workflow %q has no run: %w", name, nuts.ErrNotFound)
	}
	return &st, nil
}

// States returns the state of the latest run of every workflow, sorted by
// name.
func (o *Orchestrator) States(ctx context.Context) ([]State, error) {
	raw, err := o.queue.WorkflowStates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]State, 0, len(raw))
	for name, data := range raw {
		var st State
		if err := o.queue.Codec().Unmarshal(data, &st); err != nil {
			o.logger.Warn("skipping undecodable workflow state",
				slog.String("workflow", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
