package job

import (
	"encoding/json"
	"time"
)

// CancelledError is the error message recorded for a cancelled job.
const CancelledError = "cancelled"

// Result is the completion record of one execution. Failures are recorded
// the same way as successes so they stay observable.
type Result struct {
	Success    bool      `json:"success"`
	Result     any       `json:"result"`
	Error      string    `json:"error,omitempty"`
	Workflow   string    `json:"workflow,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Worker     string    `json:"worker,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Cancelled reports whether the result records a cancellation.
func (r Result) Cancelled() bool { return !r.Success && r.Error == CancelledError }

// Decode decodes the opaque result value into v.
func (r Result) Decode(v any) error {
	data, err := json.Marshal(r.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
