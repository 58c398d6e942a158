package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/workflow"
)

// RescheduleRequest is the body of POST /api/workflows/{name}/reschedule.
type RescheduleRequest struct {
	RunAt time.Time `json:"run_at"`
}

// WorkflowStatus is the latest run of a workflow together with its next
// scheduled start.
type WorkflowStatus struct {
	Name     string              `json:"name"`
	Schedule string              `json:"schedule"`
	Status   workflow.Status     `json:"status,omitempty"`
	Error    string              `json:"error,omitempty"`
	RunID    string              `json:"run_id,omitempty"`
	Jobs     []workflow.JobState `json:"jobs"`
	NextRun  *time.Time          `json:"next_run,omitempty"`
}

func newWorkflowStatus(name string, def *workflow.Definition, st *workflow.State, next *time.Time) WorkflowStatus {
	out := WorkflowStatus{Name: name, Jobs: []workflow.JobState{}, NextRun: next}
	if def != nil {
		out.Schedule = def.Schedule
	}
	if st != nil {
		out.Schedule = st.Schedule
		out.Status = st.Status
		out.Error = st.Error
		out.RunID = st.RunID
		out.Jobs = st.Jobs
	}
	return out
}

// nextRuns returns the scheduled start of every scheduled workflow.
func (a *API) nextRuns(ctx context.Context) (map[string]*time.Time, error) {
	entries, err := a.eng.ListScheduledWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*time.Time, len(entries))
	for _, e := range entries {
		t := e.RunAt
		out[e.Name] = &t
	}
	return out, nil
}

// handleListWorkflows lists every registered workflow, plus any with a
// stored run that is no longer registered.
func (a *API) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	states, err := a.eng.ListWorkflowStates(ctx)
	if err != nil {
		respondErr(w, err)
		return
	}
	next, err := a.nextRuns(ctx)
	if err != nil {
		respondErr(w, err)
		return
	}

	byName := make(map[string]*workflow.State, len(states))
	for i := range states {
		byName[states[i].Name] = &states[i]
	}

	out := make([]WorkflowStatus, 0, len(states))
	for _, name := range a.eng.Workflows().Names() {
		def, _ := a.eng.Workflows().Resolve(name)
		out = append(out, newWorkflowStatus(name, def, byName[name], next[name]))
		delete(byName, name)
	}
	for i := range states {
		if st, ok := byName[states[i].Name]; ok {
			out = append(out, newWorkflowStatus(st.Name, nil, st, next[st.Name]))
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *API) handleListScheduledWorkflows(w http.ResponseWriter, r *http.Request) {
	entries, err := a.eng.ListScheduledWorkflows(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *API) handleListRunningWorkflows(w http.ResponseWriter, r *http.Request) {
	states, err := a.eng.ListWorkflowStates(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	out := make([]workflow.State, 0, len(states))
	for _, st := range states {
		if st.Status == workflow.StatusRunning {
			out = append(out, st)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *API) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := pathName(r)

	st, err := a.eng.WorkflowStatus(ctx, name)
	if err != nil && !errors.Is(err, nuts.ErrNotFound) {
		respondErr(w, err)
		return
	}
	def, defErr := a.eng.Workflows().Resolve(name)
	if st == nil && defErr != nil {
		respondErr(w, defErr)
		return
	}
	next, err := a.nextRuns(ctx)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newWorkflowStatus(name, def, st, next[name]))
}

func (a *API) handleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	name := pathName(r)
	if err := a.eng.TriggerWorkflow(r.Context(), name); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Workflow '%s' triggered for immediate execution", name)
}

func (a *API) handleCancelScheduledWorkflow(w http.ResponseWriter, r *http.Request) {
	name := pathName(r)
	if err := a.eng.CancelScheduledWorkflow(r.Context(), name); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Workflow '%s' removed from scheduled queue", name)
}

func (a *API) handleRescheduleWorkflow(w http.ResponseWriter, r *http.Request) {
	name := pathName(r)
	var req RescheduleRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RunAt.IsZero() {
		respondError(w, http.StatusBadRequest, "run_at is required")
		return
	}
	if err := a.eng.RescheduleWorkflow(r.Context(), name, req.RunAt); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Workflow '%s' rescheduled for %s", name, req.RunAt.UTC().Format(time.RFC3339))
}

func (a *API) handleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	name := pathName(r)
	if err := a.eng.CancelWorkflow(r.Context(), name); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Cancellation requested for workflow '%s'", name)
}
