package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/huffmsa/nuts/backoff"
	"github.com/huffmsa/nuts/cluster"
	"github.com/huffmsa/nuts/id"
	"github.com/huffmsa/nuts/queue"
)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithConcurrency sets the number of execution slots. Each slot claims
// under its own worker ID.
func WithConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how long an idle slot waits before claiming again.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeats sets the liveness writer and how often slots beat.
func WithHeartbeats(h *cluster.Heartbeats, interval time.Duration) PoolOption {
	return func(p *Pool) {
		p.heartbeats = h
		p.heartbeatInterval = interval
	}
}

// WithClaimLimiter bounds the claim rate shared by all slots.
func WithClaimLimiter(l *queue.ClaimLimiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// WithBackoff sets the delay strategy used while the store is unavailable.
func WithBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.backoff = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// Pool runs execution slots that claim pending instances and hand them to
// the Executor.
type Pool struct {
	queue             *queue.Manager
	executor          *Executor
	heartbeats        *cluster.Heartbeats
	limiter           *queue.ClaimLimiter
	backoff           backoff.Strategy
	concurrency       int
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	logger            *slog.Logger

	workerIDs []id.WorkerID

	mu         sync.Mutex
	running    bool
	loopCtx    context.Context
	stopLoops  context.CancelFunc
	wg         sync.WaitGroup
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// NewPool creates a Pool.
func NewPool(q *queue.Manager, executor *Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:        q,
		executor:     executor,
		concurrency:  1,
		pollInterval: time.Second,
		logger:       slog.Default(),
		activeJobs:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.backoff == nil {
		p.backoff = backoff.Default(p.pollInterval)
	}
	p.workerIDs = make([]id.WorkerID, p.concurrency)
	for i := range p.workerIDs {
		p.workerIDs[i] = id.NewWorkerID()
	}
	return p
}

// WorkerIDs returns the IDs of the pool's execution slots.
func (p *Pool) WorkerIDs() []string {
	out := make([]string, len(p.workerIDs))
	for i, w := range p.workerIDs {
		out[i] = w.String()
	}
	return out
}

// Start launches the slots and the heartbeat loop. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true
	p.loopCtx, p.stopLoops = context.WithCancel(context.Background())

	p.logger.Info("worker pool starting",
		slog.Int("concurrency", p.concurrency),
		slog.Duration("poll_interval", p.pollInterval),
	)

	if p.heartbeats != nil && p.heartbeatInterval > 0 {
		p.beat(p.loopCtx)
		p.wg.Add(1)
		go p.heartbeatLoop(p.loopCtx)
	}
	for _, w := range p.workerIDs {
		p.wg.Add(1)
		go p.claimLoop(p.loopCtx, w.String())
	}
	return nil
}

// Stop stops claiming and waits for in-flight executions. If ctx ends
// first, in-flight executions are cancelled and their instances returned
// to pending.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping")
	p.stopLoops()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		<-done
	}

	if p.heartbeats != nil {
		for _, w := range p.WorkerIDs() {
			if err := p.heartbeats.Forget(context.WithoutCancel(ctx), w); err != nil {
				p.logger.Warn("failed to clear heartbeat", slog.String("worker_id", w), slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

// claimLoop is run by each slot.
func (p *Pool) claimLoop(ctx context.Context, workerID string) {
	defer p.wg.Done()
	tracker := backoff.NewTracker(p.backoff)

	for ctx.Err() == nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		c, err := p.queue.Claim(ctx, workerID)
		if err != nil {
			delay := tracker.Failure()
			p.logger.Warn("claim failed, backing off",
				slog.String("worker_id", workerID),
				slog.Int("failures", tracker.Failures()),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
			_ = backoff.Sleep(ctx, delay)
			continue
		}
		if tracker.Success() {
			p.logger.Info("store reachable again", slog.String("worker_id", workerID))
		}
		if c == nil {
			_ = backoff.Sleep(ctx, p.pollInterval)
			continue
		}

		p.execute(c)
	}
}

// execute runs one claim on a context detached from the loop so a
// graceful stop lets it finish.
func (p *Pool) execute(c *queue.Claim) {
	jobCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := c.RunningKey()
	p.trackJob(key, cancel)
	defer p.untrackJob(key)

	if _, err := p.executor.Execute(jobCtx, c); err != nil {
		p.logger.Debug("execution not recorded",
			slog.String("job", c.Identity()),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) heartbeatLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.beat(ctx)
		}
	}
}

func (p *Pool) beat(ctx context.Context) {
	for _, w := range p.WorkerIDs() {
		if err := p.heartbeats.Beat(ctx, w); err != nil {
			p.logger.Warn("heartbeat failed", slog.String("worker_id", w), slog.String("error", err.Error()))
		}
	}
}

func (p *Pool) trackJob(key string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[key] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(key string) {
	p.activeMu.Lock()
	delete(p.activeJobs, key)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for key, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job", key))
		cancel()
	}
}
