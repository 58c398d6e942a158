package job

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Separator joins the parts of identities and running-queue keys.
const Separator = "|"

const workflowPrefix = "workflow-"

// Instance is one job travelling through the queues.
type Instance struct {
	Name     string
	Params   Params
	Workflow string

	// DependsOn lists the workflow jobs this instance waited on. It is
	// informational; readiness is decided by the orchestrator.
	DependsOn []string

	// RunID is the workflow run that enqueued the instance. It is copied
	// into the running entry and the result so a record left by an
	// earlier run is never taken for the current one.
	RunID string
}

// Identity returns the key under which the instance's completion record,
// cancel request and running entry are stored.
func (i Instance) Identity() string {
	return Identity(i.Workflow, i.Name)
}

// Identity builds the identity of a job, optionally inside a workflow.
func Identity(workflow, name string) string {
	if workflow == "" {
		return name
	}
	return workflowPrefix + workflow + Separator + name
}

// WorkflowCancelKey is the cancel-set member that requests cancellation of
// a whole workflow.
func WorkflowCancelKey(workflow string) string { return workflowPrefix + workflow }

// ParseWorkflowCancelKey returns the workflow named by a cancel-set member
// built with WorkflowCancelKey. Job identities do not match.
func ParseWorkflowCancelKey(member string) (string, bool) {
	rest, ok := strings.CutPrefix(member, workflowPrefix)
	if !ok || rest == "" || strings.Contains(rest, Separator) {
		return "", false
	}
	return rest, true
}

// ParseIdentity splits an identity into its workflow and job name.
func ParseIdentity(identity string) (workflow, name string) {
	if !strings.HasPrefix(identity, workflowPrefix) {
		return "", identity
	}
	rest := strings.TrimPrefix(identity, workflowPrefix)
	w, n, ok := strings.Cut(rest, Separator)
	if !ok {
		return "", identity
	}
	return w, n
}

// RunningKey builds the running-queue field for a claimed identity.
func RunningKey(workerID, identity string) string {
	return workerID + Separator + identity
}

// ParseRunningKey splits a running-queue field into worker ID and
// identity. Worker IDs never contain the separator, so the first one ends
// the worker ID even when the identity itself contains separators.
func ParseRunningKey(key string) (workerID, identity string, ok bool) {
	return strings.Cut(key, Separator)
}

// Params are the positional arguments of an instance.
type Params []any

// Decode decodes the i-th param into v.
func (p Params) Decode(i int, v any) error {
	if i < 0 || i >= len(p) {
		return fmt.Errorf("param %d out of range (have %d)", i, len(p))
	}
	data, err := json.Marshal(p[i])
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Bind merges every object-valued param into one object, later params
// overriding earlier keys, and decodes it into v. It lets a handler read
// named arguments regardless of how they were split across params.
func (p Params) Bind(v any) error {
	merged := make(map[string]any)
	for _, param := range p {
		m, ok := param.(map[string]any)
		if !ok {
			continue
		}
		for k, val := range m {
			merged[k] = val
		}
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Running is the record stored for a claimed instance.
type Running struct {
	Name      string    `json:"name"`
	Params    Params    `json:"args"`
	StartedAt time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
}
