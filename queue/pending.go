package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/huffmsa/nuts/job"
)

// encodeInstance builds the pending-set member of an instance. The member
// is the encoded [identity, params] tuple, followed by the dependency list
// and the workflow run ID when present, so standalone jobs keep the
// two-element form.
func (m *Manager) encodeInstance(inst job.Instance) (string, error) {
	params := inst.Params
	if params == nil {
		params = job.Params{}
	}
	tuple := []any{inst.Identity(), params}
	if len(inst.DependsOn) > 0 || inst.RunID != "" {
		deps := inst.DependsOn
		if deps == nil {
			deps = []string{}
		}
		tuple = append(tuple, deps)
	}
	if inst.RunID != "" {
		tuple = append(tuple, inst.RunID)
	}
	return m.encode(tuple)
}

func (m *Manager) decodeInstance(member string) (job.Instance, error) {
	var tuple []any
	if err := m.decode(member, &tuple); err != nil {
		return job.Instance{}, err
	}
	if len(tuple) < 1 {
		return job.Instance{}, fmt.Errorf("queue: %w: empty pending tuple", errMalformed)
	}
	identity, ok := tuple[0].(string)
	if !ok {
		return job.Instance{}, fmt.Errorf("queue: %w: pending name is %T", errMalformed, tuple[0])
	}
	inst := job.Instance{Params: job.Params{}}
	inst.Workflow, inst.Name = job.ParseIdentity(identity)
	if len(tuple) > 1 && tuple[1] != nil {
		params, ok := tuple[1].([]any)
		if !ok {
			return job.Instance{}, fmt.Errorf("queue: %w: pending params are %T", errMalformed, tuple[1])
		}
		inst.Params = params
	}
	if len(tuple) > 2 {
		if deps, ok := tuple[2].([]any); ok {
			for _, d := range deps {
				if s, ok := d.(string); ok {
					inst.DependsOn = append(inst.DependsOn, s)
				}
			}
		}
	}
	if len(tuple) > 3 {
		if runID, ok := tuple[3].(string); ok {
			inst.RunID = runID
		}
	}
	return inst, nil
}

// ──────────────────────────────────────────────────
// Pending
// ──────────────────────────────────────────────────

// EnqueuePending adds inst to the pending set. Enqueuing an identical
// (identity, params) tuple twice leaves a single member.
func (m *Manager) EnqueuePending(ctx context.Context, inst job.Instance) error {
	member, err := m.encodeInstance(inst)
	if err != nil {
		return err
	}
	if _, err := m.store.SAdd(ctx, m.keys.Pending, member); err != nil {
		return fmt.Errorf("queue: enqueue %q: %w", inst.Identity(), err)
	}
	m.logger.Debug("job enqueued", slog.String("job", inst.Identity()))
	return nil
}

// RemovePending removes inst from the pending set. It reports whether it
// was present.
func (m *Manager) RemovePending(ctx context.Context, inst job.Instance) (bool, error) {
	member, err := m.encodeInstance(inst)
	if err != nil {
		return false, err
	}
	n, err := m.store.SRem(ctx, m.keys.Pending, member)
	if err != nil {
		return false, fmt.Errorf("queue: remove pending %q: %w", inst.Identity(), err)
	}
	return n > 0, nil
}

// RemovePendingWhere removes every pending member whose decoded instance
// matches. It returns the instances this call actually removed; a member
// claimed by a worker in between is not among them.
func (m *Manager) RemovePendingWhere(ctx context.Context, match func(job.Instance) bool) ([]job.Instance, error) {
	members, err := m.store.SMembers(ctx, m.keys.Pending)
	if err != nil {
		return nil, fmt.Errorf("queue: list pending: %w", err)
	}
	var removed []job.Instance
	for _, member := range members {
		inst, decErr := m.decodeInstance(member)
		if decErr != nil || !match(inst) {
			continue
		}
		n, err := m.store.SRem(ctx, m.keys.Pending, member)
		if err != nil {
			return removed, fmt.Errorf("queue: remove pending: %w", err)
		}
		if n > 0 {
			removed = append(removed, inst)
		}
	}
	return removed, nil
}

// ListPending returns every pending instance. Members that fail to decode
// are skipped and logged.
func (m *Manager) ListPending(ctx context.Context) ([]job.Instance, error) {
	members, err := m.store.SMembers(ctx, m.keys.Pending)
	if err != nil {
		return nil, fmt.Errorf("queue: list pending: %w", err)
	}
	out := make([]job.Instance, 0, len(members))
	for _, member := range members {
		inst, decErr := m.decodeInstance(member)
		if decErr != nil {
			m.logger.Warn("skipping malformed pending member", slog.String("error", decErr.Error()))
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Scheduled
// ──────────────────────────────────────────────────

// ScheduledEntry is a member of a scheduled sorted set.
type ScheduledEntry struct {
	Name  string    `json:"name"`
	RunAt time.Time `json:"next_run"`
}

// Schedule sets the run time of a job, overwriting any earlier time.
func (m *Manager) Schedule(ctx context.Context, name string, runAt time.Time) error {
	if err := m.store.ZAdd(ctx, m.keys.Scheduled, name, score(runAt)); err != nil {
		return fmt.Errorf("queue: schedule %q: %w", name, err)
	}
	return nil
}

// ScheduleIfAbsent sets the run time of a job only if it is not already
// scheduled.
func (m *Manager) ScheduleIfAbsent(ctx context.Context, name string, runAt time.Time) (bool, error) {
	added, err := m.store.ZAddNX(ctx, m.keys.Scheduled, name, score(runAt))
	if err != nil {
		return false, fmt.Errorf("queue: schedule %q: %w", name, err)
	}
	return added, nil
}

// Unschedule removes a job from the scheduled set.
func (m *Manager) Unschedule(ctx context.Context, name string) (bool, error) {
	n, err := m.store.ZRem(ctx, m.keys.Scheduled, name)
	if err != nil {
		return false, fmt.Errorf("queue: unschedule %q: %w", name, err)
	}
	return n > 0, nil
}

// ListScheduled returns every scheduled job, earliest first.
func (m *Manager) ListScheduled(ctx context.Context) ([]ScheduledEntry, error) {
	return m.listScheduled(ctx, m.keys.Scheduled)
}

// PromoteDue moves every scheduled job whose time is at or before now into
// the pending set, earliest first. Each entry is added to pending before
// it is removed from scheduled, so a crash part-way leaves promoted jobs
// in pending and the rest still scheduled. It returns the promoted names.
func (m *Manager) PromoteDue(ctx context.Context, now time.Time) ([]string, error) {
	due, err := m.store.ZRangeByScore(ctx, m.keys.Scheduled, negInf, score(now))
	if err != nil {
		return nil, fmt.Errorf("queue: promote due: %w", err)
	}
	promoted := make([]string, 0, len(due))
	for _, d := range due {
		if err := m.EnqueuePending(ctx, job.Instance{Name: d.Value}); err != nil {
			return promoted, err
		}
		if _, err := m.store.ZRem(ctx, m.keys.Scheduled, d.Value); err != nil {
			return promoted, fmt.Errorf("queue: promote %q: %w", d.Value, err)
		}
		promoted = append(promoted, d.Value)
		m.logger.Info("promoted scheduled job",
			slog.String("job", d.Value),
			slog.Time("run_at", fromScore(d.Score)),
		)
	}
	return promoted, nil
}

func (m *Manager) listScheduled(ctx context.Context, key string) ([]ScheduledEntry, error) {
	members, err := m.store.ZRange(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("queue: list scheduled: %w", err)
	}
	out := make([]ScheduledEntry, 0, len(members))
	for _, mem := range members {
		out = append(out, ScheduledEntry{Name: mem.Value, RunAt: fromScore(mem.Score)})
	}
	return out, nil
}
