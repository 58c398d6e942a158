package queue

import "github.com/huffmsa/nuts/job"

// Keys holds the store key names for one key prefix.
type Keys struct {
	Scheduled          string
	Pending            string
	Running            string
	Completed          string
	Cancel             string
	ScheduledWorkflows string
	RunningWorkflows   string
	Leader             string

	workerPrefix string
}

// NewKeys returns the key layout under prefix.
func NewKeys(prefix string) Keys {
	p := prefix + job.Separator
	return Keys{
		Scheduled:          p + "jobs|scheduled",
		Pending:            p + "jobs|pending",
		Running:            p + "jobs|running",
		Completed:          p + "jobs|completed",
		Cancel:             p + "jobs|cancel",
		ScheduledWorkflows: p + "workflows|scheduled",
		RunningWorkflows:   p + "workflows|running",
		Leader:             p + "leader",
		workerPrefix:       p + "workers|",
	}
}

// Worker returns the liveness key of a worker.
func (k Keys) Worker(workerID string) string { return k.workerPrefix + workerID }
