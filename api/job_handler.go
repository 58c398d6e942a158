package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huffmsa/nuts/job"
)

// EnqueueRequest is the body of POST /api/jobs.
type EnqueueRequest struct {
	Name   string `json:"name"`
	Params []any  `json:"params"`
}

// ScheduleRequest is the body of POST /api/jobs/schedule.
type ScheduleRequest struct {
	Name  string    `json:"name"`
	RunAt time.Time `json:"run_at"`
}

// PendingJob is one pending instance.
type PendingJob struct {
	Name     string     `json:"name"`
	Workflow string     `json:"workflow,omitempty"`
	Params   job.Params `json:"params"`
}

// pathName returns the unescaped {name} path parameter.
func pathName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (a *API) handleListPending(w http.ResponseWriter, r *http.Request) {
	insts, err := a.eng.ListPending(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	out := make([]PendingJob, 0, len(insts))
	for _, inst := range insts {
		params := inst.Params
		if params == nil {
			params = job.Params{}
		}
		out = append(out, PendingJob{Name: inst.Name, Workflow: inst.Workflow, Params: params})
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *API) handleListRunning(w http.ResponseWriter, r *http.Request) {
	entries, err := a.eng.ListRunning(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *API) handleListCompleted(w http.ResponseWriter, r *http.Request) {
	entries, err := a.eng.ListCompleted(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *API) handleListScheduled(w http.ResponseWriter, r *http.Request) {
	entries, err := a.eng.ListScheduled(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *API) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := a.eng.Enqueue(r.Context(), req.Name, req.Params...); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Job '%s' enqueued successfully", req.Name)
}

func (a *API) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.RunAt.IsZero() {
		respondError(w, http.StatusBadRequest, "name and run_at are required")
		return
	}
	if err := a.eng.ScheduleJob(r.Context(), req.Name, req.RunAt); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Job '%s' scheduled for %s", req.Name, req.RunAt.UTC().Format(time.RFC3339))
}

func (a *API) handleCancelPending(w http.ResponseWriter, r *http.Request) {
	name := pathName(r)
	if _, err := a.eng.CancelPending(r.Context(), name); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Job '%s' removed from pending queue", name)
}

func (a *API) handleCancelScheduled(w http.ResponseWriter, r *http.Request) {
	name := pathName(r)
	if err := a.eng.CancelScheduled(r.Context(), name); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Job '%s' removed from scheduled queue", name)
}

// handleRequestCancel accepts a job identity or a running key.
func (a *API) handleRequestCancel(w http.ResponseWriter, r *http.Request) {
	name := pathName(r)
	if err := a.eng.RequestCancel(r.Context(), name); err != nil {
		respondErr(w, err)
		return
	}
	respondMessage(w, "Cancellation requested for job '%s'", name)
}
