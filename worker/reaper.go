package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/huffmsa/nuts/cluster"
	"github.com/huffmsa/nuts/ext"
	"github.com/huffmsa/nuts/queue"
)

// Reaper recovers running entries left behind by crashed workers.
type Reaper struct {
	queue      *queue.Manager
	heartbeats *cluster.Heartbeats
	threshold  time.Duration
	extensions *ext.Registry
	logger     *slog.Logger
}

// NewReaper creates a Reaper. Entries younger than threshold are never
// touched. With nil heartbeats every entry past the threshold is treated
// as orphaned.
func NewReaper(q *queue.Manager, hb *cluster.Heartbeats, threshold time.Duration, extensions *ext.Registry, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{queue: q, heartbeats: hb, threshold: threshold, extensions: extensions, logger: logger}
}

// Sweep scans the running queue once and returns how many entries it
// re-enqueued. An entry is orphaned when it is older than the threshold
// and its worker has no live heartbeat. If the orphan's completion record
// was already written (the worker died between recording the result and
// clearing the entry) the entry is dropped instead of re-run.
//
// Re-execution is at-least-once: a worker that stalled past its heartbeat
// but is still running will race the re-enqueued copy.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	entries, err := r.queue.ListRunning(ctx)
	if err != nil {
		return 0, err
	}

	now := r.queue.Now()
	var (
		requeued int
		errs     []error
	)
	for _, e := range entries {
		if now.Sub(e.StartedAt) < r.threshold {
			continue
		}
		if r.heartbeats != nil {
			alive, err := r.heartbeats.Alive(ctx, e.WorkerID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if alive {
				continue
			}
		}

		identity := e.Identity()
		res, done, err := r.queue.Completed(ctx, identity)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done && res.Worker == e.WorkerID && !res.FinishedAt.Before(e.StartedAt) {
			if err := r.queue.DropRunning(ctx, e); err != nil {
				errs = append(errs, err)
				continue
			}
			r.logger.Info("cleared finished running entry", slog.String("key", e.Key))
			continue
		}

		if err := r.queue.Requeue(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		requeued++
		r.logger.Warn("requeued orphaned job",
			slog.String("job", identity),
			slog.String("worker_id", e.WorkerID),
			slog.Time("started_at", e.StartedAt),
		)
		r.extensions.EmitJobRecovered(ctx, identity, e.WorkerID)
	}
	return requeued, errors.Join(errs...)
}
