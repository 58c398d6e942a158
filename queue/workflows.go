package queue

import (
	"context"
	"fmt"
	"time"
)

// ScheduleWorkflow sets the run time of a workflow, overwriting any
// earlier time.
func (m *Manager) ScheduleWorkflow(ctx context.Context, name string, runAt time.Time) error {
	if err := m.store.ZAdd(ctx, m.keys.ScheduledWorkflows, name, score(runAt)); err != nil {
		return fmt.Errorf("queue: schedule workflow %q: %w", name, err)
	}
	return nil
}

// ScheduleWorkflowIfAbsent sets the run time of a workflow only if it is
// not already scheduled.
func (m *Manager) ScheduleWorkflowIfAbsent(ctx context.Context, name string, runAt time.Time) (bool, error) {
	added, err := m.store.ZAddNX(ctx, m.keys.ScheduledWorkflows, name, score(runAt))
	if err != nil {
		return false, fmt.Errorf("queue: schedule workflow %q: %w", name, err)
	}
	return added, nil
}

// UnscheduleWorkflow removes a workflow from the scheduled set.
func (m *Manager) UnscheduleWorkflow(ctx context.Context, name string) (bool, error) {
	n, err := m.store.ZRem(ctx, m.keys.ScheduledWorkflows, name)
	if err != nil {
		return false, fmt.Errorf("queue: unschedule workflow %q: %w", name, err)
	}
	return n > 0, nil
}

// DueWorkflows returns the names of scheduled workflows whose time is at
// or before now, earliest first. It does not remove them; the caller
// starts each one and then unschedules it.
func (m *Manager) DueWorkflows(ctx context.Context, now time.Time) ([]string, error) {
	due, err := m.store.ZRangeByScore(ctx, m.keys.ScheduledWorkflows, negInf, score(now))
	if err != nil {
		return nil, fmt.Errorf("queue: due workflows: %w", err)
	}
	out := make([]string, 0, len(due))
	for _, d := range due {
		out = append(out, d.Value)
	}
	return out, nil
}

// ListScheduledWorkflows returns every scheduled workflow, earliest first.
func (m *Manager) ListScheduledWorkflows(ctx context.Context) ([]ScheduledEntry, error) {
	return m.listScheduled(ctx, m.keys.ScheduledWorkflows)
}

// WorkflowNextRun returns the scheduled time of a workflow.
func (m *Manager) WorkflowNextRun(ctx context.Context, name string) (time.Time, bool, error) {
	s, ok, err := m.store.ZScore(ctx, m.keys.ScheduledWorkflows, name)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("queue: workflow next run %q: %w", name, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return fromScore(s), true, nil
}

// PutWorkflowState stores the encoded state of a workflow.
func (m *Manager) PutWorkflowState(ctx context.Context, name string, state any) error {
	rec, err := m.encode(state)
	if err != nil {
		return err
	}
	if err := m.store.HSet(ctx, m.keys.RunningWorkflows, name, rec); err != nil {
		return fmt.Errorf("queue: save workflow %q: %w", name, err)
	}
	return nil
}

// GetWorkflowState decodes the stored state of a workflow into state. It
// reports whether a state was stored.
func (m *Manager) GetWorkflowState(ctx context.Context, name string, state any) (bool, error) {
	raw, ok, err := m.store.HGet(ctx, m.keys.RunningWorkflows, name)
	if err != nil {
		return false, fmt.Errorf("queue: load workflow %q: %w", name, err)
	}
	if !ok {
		return false, nil
	}
	if err := m.decode(raw, state); err != nil {
		return false, err
	}
	return true, nil
}

// WorkflowStates returns the raw stored state of every workflow, keyed by
// name. Use Codec to decode the values.
func (m *Manager) WorkflowStates(ctx context.Context) (map[string][]byte, error) {
	all, err := m.store.HGetAll(ctx, m.keys.RunningWorkflows)
	if err != nil {
		return nil, fmt.Errorf("queue: list workflows: %w", err)
	}
	out := make(map[string][]byte, len(all))
	for name, raw := range all {
		out[name] = []byte(raw)
	}
	return out, nil
}
