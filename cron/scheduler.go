package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/huffmsa/nuts"
)

// Queue is the subset of the queue manager the scheduler drives. It is an
// interface so this package stays a leaf that job definitions can import
// for schedule validation.
type Queue interface {
	Schedule(ctx context.Context, name string, runAt time.Time) error
	ScheduleIfAbsent(ctx context.Context, name string, runAt time.Time) (bool, error)
	PromoteDue(ctx context.Context, now time.Time) ([]string, error)

	ScheduleWorkflow(ctx context.Context, name string, runAt time.Time) error
	ScheduleWorkflowIfAbsent(ctx context.Context, name string, runAt time.Time) (bool, error)
	UnscheduleWorkflow(ctx context.Context, name string) (bool, error)
	DueWorkflows(ctx context.Context, now time.Time) ([]string, error)
}

// StartFunc starts a workflow run. The engine provides the orchestrator's
// Start here.
type StartFunc func(ctx context.Context, workflow string) error

// Emitter emits schedule events. ext.Registry satisfies it.
type Emitter interface {
	EmitScheduleFired(ctx context.Context, name string, workflow bool)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithJobSchedules sets the recurring job schedules, keyed by job name.
func WithJobSchedules(schedules map[string]string) SchedulerOption {
	return func(s *Scheduler) { s.jobExprs = schedules }
}

// WithWorkflowSchedules sets the recurring workflow schedules, keyed by
// workflow name.
func WithWorkflowSchedules(schedules map[string]string) SchedulerOption {
	return func(s *Scheduler) { s.workflowExprs = schedules }
}

// WithEmitter sets the receiver of schedule events.
func WithEmitter(e Emitter) SchedulerOption {
	return func(s *Scheduler) { s.emitter = e }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler promotes due scheduled jobs, starts due scheduled workflows,
// and keeps recurring entries armed. It holds no timers of its own: the
// leader loop calls Seed on acquiring leadership and Tick every cycle.
type Scheduler struct {
	queue   Queue
	start   StartFunc
	emitter Emitter
	logger  *slog.Logger
	now     func() time.Time

	jobExprs      map[string]string
	workflowExprs map[string]string
	jobs          map[string]Schedule
	workflows     map[string]Schedule
}

// NewScheduler creates a Scheduler. Every recurring expression is parsed
// up front; an invalid one is reported as ErrInvalidSchedule.
func NewScheduler(q Queue, start StartFunc, opts ...SchedulerOption) (*Scheduler, error) {
	s := &Scheduler{
		queue:  q,
		start:  start,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.jobs, err = parseAll(s.jobExprs); err != nil {
		return nil, err
	}
	if s.workflows, err = parseAll(s.workflowExprs); err != nil {
		return nil, err
	}
	return s, nil
}

func parseAll(exprs map[string]string) (map[string]Schedule, error) {
	out := make(map[string]Schedule, len(exprs))
	for name, expr := range exprs {
		if expr == "" {
			continue
		}
		sched, err := ParseSchedule(expr)
		if err != nil {
			return nil, fmt.Errorf("cron: %s: %w", name, err)
		}
		out[name] = sched
	}
	return out, nil
}

// Seed arms every recurring job and workflow that is not already
// scheduled. Entries already present keep their time, so a new leader
// never delays or duplicates a pending fire.
func (s *Scheduler) Seed(ctx context.Context) error {
	now := s.now()
	var errs []error

	for _, name := range sortedKeys(s.jobs) {
		added, err := s.queue.ScheduleIfAbsent(ctx, name, s.jobs[name].Next(now))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if added {
			s.logger.Info("armed recurring job", slog.String("job", name))
		}
	}
	for _, name := range sortedKeys(s.workflows) {
		added, err := s.queue.ScheduleWorkflowIfAbsent(ctx, name, s.workflows[name].Next(now))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if added {
			s.logger.Info("armed recurring workflow", slog.String("workflow", name))
		}
	}
	return errors.Join(errs...)
}

// Tick runs one scheduling pass at the current time.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()
	return errors.Join(s.tickJobs(ctx, now), s.tickWorkflows(ctx, now))
}

// tickJobs promotes due jobs and re-arms the recurring ones.
func (s *Scheduler) tickJobs(ctx context.Context, now time.Time) error {
	promoted, err := s.queue.PromoteDue(ctx, now)
	errs := []error{err}

	for _, name := range promoted {
		if s.emitter != nil {
			s.emitter.EmitScheduleFired(ctx, name, false)
		}
		sched, ok := s.jobs[name]
		if !ok {
			continue
		}
		if err := s.queue.Schedule(ctx, name, sched.Next(now)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// tickWorkflows starts due workflows. A recurring workflow is re-armed by
// overwriting its entry with the next fire time; a one-shot workflow is
// removed. A workflow that fails to start stays scheduled and is retried
// on the next tick, unless it is not registered at all.
func (s *Scheduler) tickWorkflows(ctx context.Context, now time.Time) error {
	due, err := s.queue.DueWorkflows(ctx, now)
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range due {
		if err := s.start(ctx, name); err != nil {
			if errors.Is(err, nuts.ErrUnknownWorkflow) {
				if _, unErr := s.queue.UnscheduleWorkflow(ctx, name); unErr != nil {
					errs = append(errs, unErr)
				}
			}
			s.logger.Error("failed to start scheduled workflow",
				slog.String("workflow", name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		if s.emitter != nil {
			s.emitter.EmitScheduleFired(ctx, name, true)
		}

		if sched, ok := s.workflows[name]; ok {
			err = s.queue.ScheduleWorkflow(ctx, name, sched.Next(now))
		} else {
			_, err = s.queue.UnscheduleWorkflow(ctx, name)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys(m map[string]Schedule) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
