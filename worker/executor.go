// Package worker runs claimed jobs. An Executor takes one claim through
// cancellation checks, middleware, and the registered handler and always
// records a completion; a Pool runs execution slots that poll the pending
// queue; a Reaper returns running entries orphaned by crashed workers to
// pending.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/backoff"
	"github.com/huffmsa/nuts/ext"
	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/middleware"
	"github.com/huffmsa/nuts/queue"
)

// ErrInterrupted is returned by Execute when the worker itself was shut
// down mid-execution. The instance is returned to pending, not completed.
var ErrInterrupted = errors.New("worker: execution interrupted")

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExtensions sets the lifecycle hook registry.
func WithExtensions(r *ext.Registry) ExecutorOption {
	return func(e *Executor) { e.extensions = r }
}

// WithMiddleware sets the middleware wrapped around every handler call.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithCancelPollInterval sets how often a running instance's cancellation
// request is checked.
func WithCancelPollInterval(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.cancelPoll = d }
}

// WithRecordBackoff sets the delays between attempts to record a result
// while the store is unavailable.
func WithRecordBackoff(s backoff.Strategy) ExecutorOption {
	return func(e *Executor) { e.recordBackoff = s }
}

// WithExecutorLogger sets the structured logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// Executor runs one claimed instance to completion.
type Executor struct {
	queue      *queue.Manager
	jobs       *job.Registry
	extensions *ext.Registry
	mw         middleware.Middleware
	cancelPoll time.Duration
	logger     *slog.Logger

	recordBackoff backoff.Strategy
}

// NewExecutor creates an Executor.
func NewExecutor(q *queue.Manager, jobs *job.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		queue:      q,
		jobs:       jobs,
		mw:         middleware.Chain(),
		cancelPoll: time.Second,
		logger:     slog.Default(),

		recordBackoff: backoff.Default(250 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs c and records its result. Handler failures, panics caught
// by middleware, unknown jobs, and cancellations all become completion
// records; Execute returns an error only when the record could not be
// written or the worker was interrupted. While the store is unavailable
// the record is retried with backoff until it is written or ctx ends.
//
// A cancellation request may name either the running key
// (workerID|identity) or the bare identity.
func (e *Executor) Execute(ctx context.Context, c *queue.Claim) (job.Result, error) {
	inst := c.Instance
	identity := c.Identity()
	cancelIDs := []string{c.RunningKey(), identity}

	res := job.Result{Workflow: inst.Workflow, RunID: inst.RunID, Worker: c.WorkerID, StartedAt: c.StartedAt}
	var elapsed time.Duration

	cancelled, err := e.queue.CheckCancelled(ctx, cancelIDs...)
	if err != nil {
		e.logger.Warn("cancel check failed before start",
			slog.String("job", identity),
			slog.String("error", err.Error()),
		)
	}

	switch def, resolveErr := e.jobs.Resolve(inst.Name); {
	case cancelled:
		res.Error = job.CancelledError
	case resolveErr != nil:
		res.Error = resolveErr.Error()
	default:
		e.extensions.EmitJobStarted(ctx, inst, c.WorkerID)
		start := time.Now()
		value, requested, runErr := e.run(ctx, def, &inst, cancelIDs)
		elapsed = time.Since(start)

		switch {
		case runErr == nil:
			res.Success = true
			res.Result = value
		case requested:
			res.Error = job.CancelledError
		case ctx.Err() != nil:
			return job.Result{}, e.interrupt(c)
		default:
			res.Error = runErr.Error()
		}
	}

	// The result is recorded even if ctx ends now.
	recordCtx := context.WithoutCancel(ctx)
	res.FinishedAt = e.queue.Now().UTC()
	err = e.retry(ctx, identity, func() error {
		return e.queue.Complete(recordCtx, c.WorkerID, identity, res)
	})
	if err != nil {
		e.logger.Error("failed to record completion",
			slog.String("job", identity),
			slog.String("error", err.Error()),
		)
		return res, err
	}
	err = e.retry(ctx, identity, func() error {
		return e.queue.ClearCancel(recordCtx, cancelIDs...)
	})
	if err != nil {
		e.logger.Warn("failed to clear cancel request",
			slog.String("job", identity),
			slog.String("error", err.Error()),
		)
	}

	switch {
	case res.Success:
		e.extensions.EmitJobCompleted(recordCtx, inst, res, elapsed)
	case res.Cancelled():
		e.logger.Info("job cancelled", slog.String("job", identity))
		e.extensions.EmitJobCancelled(recordCtx, inst)
	default:
		e.extensions.EmitJobFailed(recordCtx, inst, res)
	}
	return res, nil
}

// retry calls write until it succeeds, fails with an error other than
// nuts.ErrStoreUnavailable, or stop ends.
func (e *Executor) retry(stop context.Context, identity string, write func() error) error {
	tracker := backoff.NewTracker(e.recordBackoff)
	for {
		err := write()
		if err == nil {
			if tracker.Success() {
				e.logger.Info("store reachable again, result recorded", slog.String("job", identity))
			}
			return nil
		}
		if !errors.Is(err, nuts.ErrStoreUnavailable) {
			return err
		}
		delay := tracker.Failure()
		e.logger.Warn("store unavailable, retrying record",
			slog.String("job", identity),
			slog.Int("failures", tracker.Failures()),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if backoff.Sleep(stop, delay) != nil {
			return err
		}
	}
}

// run calls the handler through middleware while a watcher polls for a
// cancellation request. requested reports whether one was observed.
func (e *Executor) run(ctx context.Context, def *job.Definition, inst *job.Instance, cancelIDs []string) (any, bool, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var requested atomic.Bool
	runCtx = job.WithCancelCheck(runCtx, requested.Load)

	done := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		e.watchCancel(runCtx, done, cancelIDs, func() {
			requested.Store(true)
			cancel()
		})
	}()

	value, err := e.mw(runCtx, inst, func(ctx context.Context) (any, error) {
		return def.Handler(ctx, inst.Params)
	})
	close(done)
	<-watcherDone
	return value, requested.Load(), err
}

func (e *Executor) watchCancel(ctx context.Context, done <-chan struct{}, ids []string, onCancel func()) {
	ticker := time.NewTicker(e.cancelPoll)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := e.queue.CheckCancelled(ctx, ids...)
			if err != nil {
				e.logger.Debug("cancel check failed", slog.String("error", err.Error()))
				continue
			}
			if ok {
				onCancel()
				return
			}
		}
	}
}

// interrupt returns an instance whose worker is shutting down to pending
// so another worker runs it.
func (e *Executor) interrupt(c *queue.Claim) error {
	entry := queue.RunningEntry{
		Key:       c.RunningKey(),
		WorkerID:  c.WorkerID,
		Name:      c.Instance.Name,
		Workflow:  c.Instance.Workflow,
		Params:    c.Instance.Params,
		StartedAt: c.StartedAt,
		RunID:     c.Instance.RunID,
	}
	if err := e.queue.Requeue(context.Background(), entry); err != nil {
		e.logger.Error("failed to requeue interrupted job",
			slog.String("job", c.Identity()),
			slog.String("error", err.Error()),
		)
		return errors.Join(ErrInterrupted, err)
	}
	e.logger.Warn("job interrupted and requeued", slog.String("job", c.Identity()))
	return ErrInterrupted
}
