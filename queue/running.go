package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huffmsa/nuts/job"
)

// Claim is a pending instance taken by a worker.
type Claim struct {
	Instance  job.Instance
	WorkerID  string
	StartedAt time.Time
}

// Identity returns the claimed instance's identity.
func (c *Claim) Identity() string { return c.Instance.Identity() }

// RunningKey returns the claim's running-queue field.
func (c *Claim) RunningKey() string { return job.RunningKey(c.WorkerID, c.Identity()) }

// Claim pops one arbitrary pending member and records it as running under
// workerID. It returns nil when the pending set is empty. The pop is the
// exactly-once point: no two callers can receive the same member.
//
// A member that cannot be decoded is recorded as a failed completion under
// its raw value so it stays observable, and Claim returns nil.
func (m *Manager) Claim(ctx context.Context, workerID string) (*Claim, error) {
	member, ok, err := m.store.SPop(ctx, m.keys.Pending)
	if err != nil {
		return nil, fmt.Errorf("queue: claim: %w", err)
	}
	if !ok {
		return nil, nil
	}

	inst, err := m.decodeInstance(member)
	if err != nil {
		m.logger.Error("dropping malformed pending member",
			slog.String("member", member),
			slog.String("error", err.Error()),
		)
		now := m.now().UTC()
		res := job.Result{Error: err.Error(), Worker: workerID, StartedAt: now, FinishedAt: now}
		if recErr := m.putCompleted(ctx, member, res); recErr != nil {
			return nil, recErr
		}
		return nil, nil
	}

	c := &Claim{Instance: inst, WorkerID: workerID, StartedAt: m.now().UTC()}
	rec, err := m.encode(job.Running{Name: inst.Name, Params: inst.Params, StartedAt: c.StartedAt, RunID: inst.RunID})
	if err != nil {
		return nil, err
	}
	if err := m.store.HSet(ctx, m.keys.Running, c.RunningKey(), rec); err != nil {
		// The member is already popped; put it back so the job is not lost.
		if _, addErr := m.store.SAdd(context.WithoutCancel(ctx), m.keys.Pending, member); addErr != nil {
			m.logger.Error("could not restore claimed member",
				slog.String("member", member),
				slog.String("error", addErr.Error()),
			)
			err = errors.Join(err, addErr)
		}
		return nil, fmt.Errorf("queue: claim %q: record running: %w", inst.Identity(), err)
	}
	return c, nil
}

// Complete records res as the completion record of identity and removes
// the running entry. It must be called for failures too. The completion
// record is written first so a crash in between leaves a stale running
// entry, which the recovery sweep resolves, rather than a lost result.
func (m *Manager) Complete(ctx context.Context, workerID, identity string, res job.Result) error {
	if err := m.putCompleted(ctx, identity, res); err != nil {
		return err
	}
	if _, err := m.store.HDel(ctx, m.keys.Running, job.RunningKey(workerID, identity)); err != nil {
		return fmt.Errorf("queue: complete %q: remove running: %w", identity, err)
	}
	return nil
}

func (m *Manager) putCompleted(ctx context.Context, identity string, res job.Result) error {
	rec, err := m.encode(res)
	if err != nil {
		return err
	}
	if err := m.store.HSet(ctx, m.keys.Completed, identity, rec); err != nil {
		return fmt.Errorf("queue: complete %q: %w", identity, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Running
// ──────────────────────────────────────────────────

// RunningEntry is one decoded running-queue field.
type RunningEntry struct {
	Key       string     `json:"-"`
	WorkerID  string     `json:"worker_id"`
	Name      string     `json:"name"`
	Workflow  string     `json:"workflow,omitempty"`
	Params    job.Params `json:"params"`
	StartedAt time.Time  `json:"started_at"`
	RunID     string     `json:"run_id,omitempty"`
}

// Identity returns the running instance's identity.
func (e RunningEntry) Identity() string { return job.Identity(e.Workflow, e.Name) }

// ListRunning returns every running entry. Entries that fail to decode
// are skipped and logged.
func (m *Manager) ListRunning(ctx context.Context) ([]RunningEntry, error) {
	all, err := m.store.HGetAll(ctx, m.keys.Running)
	if err != nil {
		return nil, fmt.Errorf("queue: list running: %w", err)
	}
	out := make([]RunningEntry, 0, len(all))
	for key, raw := range all {
		workerID, identity, ok := job.ParseRunningKey(key)
		if !ok {
			m.logger.Warn("skipping malformed running key", slog.String("key", key))
			continue
		}
		var rec job.Running
		if err := m.decode(raw, &rec); err != nil {
			m.logger.Warn("skipping malformed running entry",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		e := RunningEntry{Key: key, WorkerID: workerID, Params: rec.Params, StartedAt: rec.StartedAt, RunID: rec.RunID}
		e.Workflow, e.Name = job.ParseIdentity(identity)
		out = append(out, e)
	}
	return out, nil
}

// Requeue returns a running entry to the pending set and removes it from
// running. It is used by the recovery sweep; the job will run again.
func (m *Manager) Requeue(ctx context.Context, e RunningEntry) error {
	inst := job.Instance{Name: e.Name, Workflow: e.Workflow, Params: e.Params, RunID: e.RunID}
	if err := m.EnqueuePending(ctx, inst); err != nil {
		return err
	}
	if _, err := m.store.HDel(ctx, m.keys.Running, e.Key); err != nil {
		return fmt.Errorf("queue: requeue %q: %w", e.Key, err)
	}
	return nil
}

// DropRunning removes a running entry without re-enqueuing it.
func (m *Manager) DropRunning(ctx context.Context, e RunningEntry) error {
	if _, err := m.store.HDel(ctx, m.keys.Running, e.Key); err != nil {
		return fmt.Errorf("queue: drop running %q: %w", e.Key, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Completed
// ──────────────────────────────────────────────────

// CompletedEntry is one decoded completion record.
type CompletedEntry struct {
	Identity string `json:"-"`
	Name     string `json:"name"`
	Workflow string `json:"workflow_name,omitempty"`
	job.Result
}

// Completed returns the completion record of identity.
func (m *Manager) Completed(ctx context.Context, identity string) (job.Result, bool, error) {
	raw, ok, err := m.store.HGet(ctx, m.keys.Completed, identity)
	if err != nil {
		return job.Result{}, false, fmt.Errorf("queue: completed %q: %w", identity, err)
	}
	if !ok {
		return job.Result{}, false, nil
	}
	var res job.Result
	if err := m.decode(raw, &res); err != nil {
		return job.Result{}, false, err
	}
	return res, true, nil
}

// ListCompleted returns every completion record.
func (m *Manager) ListCompleted(ctx context.Context) ([]CompletedEntry, error) {
	all, err := m.store.HGetAll(ctx, m.keys.Completed)
	if err != nil {
		return nil, fmt.Errorf("queue: list completed: %w", err)
	}
	out := make([]CompletedEntry, 0, len(all))
	for identity, raw := range all {
		var res job.Result
		if err := m.decode(raw, &res); err != nil {
			m.logger.Warn("skipping malformed completion record",
				slog.String("job", identity),
				slog.String("error", err.Error()),
			)
			continue
		}
		e := CompletedEntry{Identity: identity, Result: res}
		e.Workflow, e.Name = job.ParseIdentity(identity)
		out = append(out, e)
	}
	return out, nil
}

// DeleteCompleted removes completion records.
func (m *Manager) DeleteCompleted(ctx context.Context, identities ...string) error {
	if len(identities) == 0 {
		return nil
	}
	if _, err := m.store.HDel(ctx, m.keys.Completed, identities...); err != nil {
		return fmt.Errorf("queue: delete completed: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Cancellation
// ──────────────────────────────────────────────────

// RequestCancel records a cancellation request. It returns as soon as the
// request is stored; the target observes it on its next check.
func (m *Manager) RequestCancel(ctx context.Context, identifier string) error {
	if _, err := m.store.SAdd(ctx, m.keys.Cancel, identifier); err != nil {
		return fmt.Errorf("queue: request cancel %q: %w", identifier, err)
	}
	return nil
}

// CheckCancelled reports whether a cancellation request is recorded for
// any of the given identifiers.
func (m *Manager) CheckCancelled(ctx context.Context, identifiers ...string) (bool, error) {
	var errs []error
	for _, id := range identifiers {
		ok, err := m.store.SIsMember(ctx, m.keys.Cancel, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	if len(errs) > 0 {
		return false, fmt.Errorf("queue: check cancelled: %w", errors.Join(errs...))
	}
	return false, nil
}

// ClearCancel removes cancellation requests.
func (m *Manager) ClearCancel(ctx context.Context, identifiers ...string) error {
	if len(identifiers) == 0 {
		return nil
	}
	if _, err := m.store.SRem(ctx, m.keys.Cancel, identifiers...); err != nil {
		return fmt.Errorf("queue: clear cancel: %w", err)
	}
	return nil
}

// ListCancelRequests returns every recorded cancellation request.
func (m *Manager) ListCancelRequests(ctx context.Context) ([]string, error) {
	ids, err := m.store.SMembers(ctx, m.keys.Cancel)
	if err != nil {
		return nil, fmt.Errorf("queue: list cancel requests: %w", err)
	}
	return ids, nil
}
