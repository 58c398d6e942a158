package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/huffmsa/nuts/id"
	"github.com/huffmsa/nuts/store"
)

// Emitter receives leadership transitions. ext.Registry satisfies it.
type Emitter interface {
	EmitLeadershipAcquired(ctx context.Context, workerID string)
	EmitLeadershipLost(ctx context.Context, workerID string)
}

// ElectorOption configures an Elector.
type ElectorOption func(*Elector)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ElectorOption {
	return func(e *Elector) { e.logger = l }
}

// WithEmitter sets the receiver of leadership transitions.
func WithEmitter(em Emitter) ElectorOption {
	return func(e *Elector) { e.emitter = em }
}

// Elector campaigns for the leader lease on behalf of one worker.
type Elector struct {
	store    store.KV
	key      string
	workerID id.WorkerID
	ttl      time.Duration
	logger   *slog.Logger
	emitter  Emitter

	mu      sync.Mutex
	leading bool
}

// NewElector creates an Elector for workerID on the lease key.
func NewElector(s store.KV, key string, workerID id.WorkerID, ttl time.Duration, opts ...ElectorOption) *Elector {
	e := &Elector{
		store:    s,
		key:      key,
		workerID: workerID,
		ttl:      ttl,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WorkerID returns the ID this elector campaigns with.
func (e *Elector) WorkerID() id.WorkerID { return e.workerID }

// Campaign runs one election cycle and reports whether this worker holds
// the lease afterwards. A store error ends leadership for the cycle: a
// worker that cannot confirm its lease must not act as leader.
func (e *Elector) Campaign(ctx context.Context) (bool, error) {
	self := e.workerID.String()

	leader, err := e.store.SetNX(ctx, e.key, self, e.ttl)
	if err == nil && !leader {
		// Renewal is a single compare-and-expire so a lease that lapsed
		// and was taken by another worker is never extended by us.
		leader, err = e.store.ExtendIfEqual(ctx, e.key, self, e.ttl)
	}
	if err != nil {
		e.transition(ctx, false)
		return false, fmt.Errorf("cluster: campaign: %w", err)
	}
	e.transition(ctx, leader)
	return leader, nil
}

// IsLeader reads the lease and reports whether this worker holds it. It
// never relies on the outcome of an earlier campaign.
func (e *Elector) IsLeader(ctx context.Context) (bool, error) {
	holder, ok, err := e.Leader(ctx)
	if err != nil {
		return false, err
	}
	return ok && holder == e.workerID.String(), nil
}

// Leader returns the current lease holder.
func (e *Elector) Leader(ctx context.Context) (string, bool, error) {
	holder, ok, err := e.store.Get(ctx, e.key)
	if err != nil {
		return "", false, fmt.Errorf("cluster: read lease: %w", err)
	}
	return holder, ok, nil
}

// Resign releases the lease if this worker still holds it, so a follower
// can take over without waiting for the TTL.
func (e *Elector) Resign(ctx context.Context) error {
	released, err := e.store.DeleteIfEqual(ctx, e.key, e.workerID.String())
	if err != nil {
		return fmt.Errorf("cluster: resign: %w", err)
	}
	if released {
		e.logger.Info("resigned leadership", slog.String("worker_id", e.workerID.String()))
	}
	e.transition(ctx, false)
	return nil
}

// transition logs and emits a change in leadership.
func (e *Elector) transition(ctx context.Context, leading bool) {
	e.mu.Lock()
	was := e.leading
	e.leading = leading
	e.mu.Unlock()

	switch {
	case leading && !was:
		e.logger.Info("acquired leadership",
			slog.String("worker_id", e.workerID.String()),
			slog.Duration("lease_ttl", e.ttl),
		)
		if e.emitter != nil {
			e.emitter.EmitLeadershipAcquired(ctx, e.workerID.String())
		}
	case !leading && was:
		e.logger.Warn("lost leadership", slog.String("worker_id", e.workerID.String()))
		if e.emitter != nil {
			e.emitter.EmitLeadershipLost(ctx, e.workerID.String())
		}
	}
}
