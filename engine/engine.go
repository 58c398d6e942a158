package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/backoff"
	"github.com/huffmsa/nuts/cluster"
	"github.com/huffmsa/nuts/codec"
	"github.com/huffmsa/nuts/cron"
	"github.com/huffmsa/nuts/ext"
	"github.com/huffmsa/nuts/id"
	"github.com/huffmsa/nuts/job"
	mw "github.com/huffmsa/nuts/middleware"
	"github.com/huffmsa/nuts/observability"
	"github.com/huffmsa/nuts/queue"
	"github.com/huffmsa/nuts/store"
	"github.com/huffmsa/nuts/worker"
	"github.com/huffmsa/nuts/workflow"
)

const instrumentationName = "github.com/huffmsa/nuts"

// Engine is one worker process: execution slots plus, while it holds the
// lease, the leader duties.
type Engine struct {
	cfg        nuts.Config
	store      store.Store
	jobs       *job.Registry
	workflows  *workflow.Registry
	extensions *ext.Registry
	logger     *slog.Logger
	now        func() time.Time

	queue        *queue.Manager
	heartbeats   *cluster.Heartbeats
	elector      *cluster.Elector
	scheduler    *cron.Scheduler
	orchestrator *workflow.Orchestrator
	pool         *worker.Pool
	reaper       *worker.Reaper

	userExts []ext.Extension
	mws      []mw.Middleware

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// seeded is set once the recurring schedules were armed under the
	// current lease.
	seeded atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the process configuration. Defaults to
// nuts.DefaultConfig().
func WithConfig(cfg nuts.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the structured logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithExtension registers a lifecycle extension.
func WithExtension(x ext.Extension) Option {
	return func(e *Engine) { e.userExts = append(e.userExts, x) }
}

// WithMiddleware appends middleware after the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithTracerProvider sets the OTel TracerProvider used by the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets the OTel MeterProvider used by the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// WithClock overrides the time source of the queues and the scheduler.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine on s. A nil workflows registry means no workflows.
func New(s store.Store, jobs *job.Registry, workflows *workflow.Registry, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("engine: nil store: %w", nuts.ErrInvalidConfig)
	}
	if jobs == nil {
		jobs = job.NewRegistry()
	}
	if workflows == nil {
		workflows = workflow.NewRegistry(jobs)
	}

	e := &Engine{
		cfg:       nuts.DefaultConfig(),
		store:     s,
		jobs:      jobs,
		workflows: workflows,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	cfg := e.cfg
	logger := e.logger

	e.extensions = ext.NewRegistry(logger)
	if e.meterProvider != nil {
		meter := e.meterProvider.Meter(instrumentationName + "/observability")
		e.extensions.Register(observability.NewMetricsExtensionWithMeter(meter))
	} else {
		e.extensions.Register(observability.NewMetricsExtension())
	}
	for _, x := range e.userExts {
		e.extensions.Register(x)
	}

	e.queue = queue.NewManager(s,
		queue.WithKeyPrefix(cfg.KeyPrefix),
		queue.WithCodec(codec.Get(cfg.Codec)),
		queue.WithClock(e.now),
		queue.WithLogger(logger),
	)
	keys := e.queue.Keys()

	e.heartbeats = cluster.NewHeartbeats(s, keys.Worker, cfg.HeartbeatTTL)
	e.elector = cluster.NewElector(s, keys.Leader, id.NewWorkerID(), cfg.LeaseTTL,
		cluster.WithLogger(logger),
		cluster.WithEmitter(e.extensions),
	)

	e.orchestrator = workflow.NewOrchestrator(e.queue, workflows,
		workflow.WithExtensions(e.extensions),
		workflow.WithLogger(logger),
	)

	start := func(ctx context.Context, name string) error {
		_, err := e.orchestrator.Start(ctx, name)
		return err
	}
	sched, err := cron.NewScheduler(e.queue, start,
		cron.WithJobSchedules(jobs.Schedules()),
		cron.WithWorkflowSchedules(workflows.Schedules()),
		cron.WithEmitter(e.extensions),
		cron.WithLogger(logger),
		cron.WithClock(e.now),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.scheduler = sched

	executor := worker.NewExecutor(e.queue, jobs,
		worker.WithExtensions(e.extensions),
		worker.WithMiddleware(e.middleware()...),
		worker.WithCancelPollInterval(cfg.CancelPollInterval),
		worker.WithExecutorLogger(logger),
	)
	e.pool = worker.NewPool(e.queue, executor,
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithPollInterval(cfg.PollInterval),
		worker.WithHeartbeats(e.heartbeats, cfg.HeartbeatInterval),
		worker.WithClaimLimiter(queue.NewClaimLimiter(cfg.ClaimRate, cfg.ClaimBurst)),
		worker.WithLogger(logger),
	)
	if cfg.StaleJobThreshold > 0 {
		e.reaper = worker.NewReaper(e.queue, e.heartbeats, cfg.StaleJobThreshold, e.extensions, logger)
	}
	return e, nil
}

// middleware builds the default stack: recover → tracing → metrics →
// logging → timeout, followed by user middleware.
func (e *Engine) middleware() []mw.Middleware {
	var tracing mw.Middleware
	if e.tracerProvider != nil {
		tracing = mw.TracingWithTracer(e.tracerProvider.Tracer(instrumentationName))
	} else {
		tracing = mw.Tracing()
	}

	var metrics mw.Middleware
	if e.meterProvider != nil {
		metrics = mw.MetricsWithMeter(e.meterProvider.Meter(instrumentationName))
	} else {
		metrics = mw.Metrics()
	}

	out := []mw.Middleware{
		mw.Recover(e.logger),
		tracing,
		metrics,
		mw.Logging(e.logger),
		mw.Timeout(e.jobs, e.logger),
	}
	return append(out, e.mws...)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Run starts the execution slots and the leader loop and blocks until ctx
// is cancelled. On return no job of this process is left running: jobs
// that did not finish within ShutdownTimeout are returned to pending.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("nuts worker starting",
		slog.String("leader_candidate", e.elector.WorkerID().String()),
		slog.Any("jobs", e.jobs.Names()),
		slog.Any("workflows", e.workflows.Names()),
		slog.Int("concurrency", e.cfg.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	if err := e.pool.Start(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		return e.leaderLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ShutdownTimeout)
		defer cancel()
		return e.pool.Stop(stopCtx)
	})

	err := g.Wait()
	e.extensions.EmitShutdown(context.WithoutCancel(ctx))
	e.logger.Info("nuts worker stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// leaderLoop runs LeaderCycle every ElectionInterval and resigns on exit.
// While the store is unreachable it backs off instead.
func (e *Engine) leaderLoop(ctx context.Context) error {
	tracker := backoff.NewTracker(backoff.Default(e.cfg.ElectionInterval))
	defer func() {
		if err := e.elector.Resign(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("failed to resign leadership", slog.String("error", err.Error()))
		}
	}()

	for {
		wait := e.cfg.ElectionInterval
		_, err := e.LeaderCycle(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, nuts.ErrStoreUnavailable):
			wait = tracker.Failure()
			e.logger.Warn("leader cycle failed, backing off",
				slog.Int("failures", tracker.Failures()),
				slog.Duration("delay", wait),
				slog.String("error", err.Error()),
			)
		case err != nil:
			e.logger.Error("leader cycle error", slog.String("error", err.Error()))
		default:
			if tracker.Success() {
				e.logger.Info("leader loop recovered")
			}
		}
		if backoff.Sleep(ctx, wait) != nil {
			return nil
		}
	}
}

// LeaderCycle campaigns for the lease and, if this process holds it, runs
// one round of leader duties: arm recurring schedules (once per lease),
// promote due jobs and start due workflows, advance running workflows and
// recover orphaned jobs. It reports whether this process is leader.
func (e *Engine) LeaderCycle(ctx context.Context) (bool, error) {
	leading, err := e.elector.Campaign(ctx)
	if err != nil || !leading {
		e.seeded.Store(false)
		return false, err
	}

	var errs []error
	if !e.seeded.Load() {
		if err := e.scheduler.Seed(ctx); err != nil {
			errs = append(errs, err)
		} else {
			e.seeded.Store(true)
		}
	}
	errs = append(errs,
		e.scheduler.Tick(ctx),
		e.orchestrator.Advance(ctx),
	)
	if e.reaper != nil {
		if _, err := e.reaper.Sweep(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return true, errors.Join(errs...)
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Config returns the configuration in effect.
func (e *Engine) Config() nuts.Config { return e.cfg }

// Jobs returns the job registry.
func (e *Engine) Jobs() *job.Registry { return e.jobs }

// Workflows returns the workflow registry.
func (e *Engine) Workflows() *workflow.Registry { return e.workflows }

// Queue returns the queue manager.
func (e *Engine) Queue() *queue.Manager { return e.queue }

// Orchestrator returns the workflow orchestrator.
func (e *Engine) Orchestrator() *workflow.Orchestrator { return e.orchestrator }

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Pool returns the execution pool.
func (e *Engine) Pool() *worker.Pool { return e.pool }

// Elector returns the leader elector.
func (e *Engine) Elector() *cluster.Elector { return e.elector }
