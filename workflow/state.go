package workflow

import (
	"time"
)

// Status is the lifecycle status of a workflow run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions happen from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobStatus is the status of one job inside a run. A job moves only
// not-started → running → completed | failed.
type JobStatus string

const (
	JobNotStarted JobStatus = "not-started"
	JobRunning    JobStatus = "running"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobState is the progress of one job inside a run.
type JobState struct {
	Name     string    `json:"name"`
	Status   JobStatus `json:"status"`
	Requires []string  `json:"requires"`
	Error    string    `json:"error,omitempty"`
}

// State is the persisted progress of one workflow run. The state of the
// latest run stays stored after it finishes until the next run replaces
// it.
type State struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule,omitempty"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Jobs       []JobState `json:"jobs"`
}

// newState builds the initial state of a run with every job not started,
// listed in dependency order.
func newState(def *Definition, order []string, runID string, now time.Time) *State {
	st := &State{
		Name:      def.Name,
		Schedule:  def.Schedule,
		Status:    StatusPending,
		RunID:     runID,
		StartedAt: now,
		Jobs:      make([]JobState, 0, len(order)),
	}
	for _, name := range order {
		spec, _ := def.Job(name)
		requires := spec.Requires
		if requires == nil {
			requires = []string{}
		}
		st.Jobs = append(st.Jobs, JobState{Name: name, Status: JobNotStarted, Requires: requires})
	}
	return st
}

// Job returns the state of the named job, or nil.
func (s *State) Job(name string) *JobState {
	for i := range s.Jobs {
		if s.Jobs[i].Name == name {
			return &s.Jobs[i]
		}
	}
	return nil
}

// Ready returns the jobs that have not started and whose requirements
// have all completed.
func (s *State) Ready() []string {
	var ready []string
	for _, j := range s.Jobs {
		if j.Status != JobNotStarted {
			continue
		}
		ok := true
		for _, dep := range j.Requires {
			if d := s.Job(dep); d == nil || d.Status != JobCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, j.Name)
		}
	}
	return ready
}

// Running returns the jobs currently marked running.
func (s *State) Running() []string {
	var out []string
	for _, j := range s.Jobs {
		if j.Status == JobRunning {
			out = append(out, j.Name)
		}
	}
	return out
}

// AllCompleted reports whether every job completed.
func (s *State) AllCompleted() bool {
	for _, j := range s.Jobs {
		if j.Status != JobCompleted {
			return false
		}
	}
	return true
}

func (s *State) finish(status Status, msg string, now time.Time) {
	s.Status = status
	s.Error = msg
	s.FinishedAt = &now
}
