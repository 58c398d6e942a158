package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huffmsa/nuts/api"
	"github.com/huffmsa/nuts/engine"
	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/store/memory"
	"github.com/huffmsa/nuts/workflow"
)

type testEnv struct {
	t     *testing.T
	store *memory.Store
	eng   *engine.Engine
	srv   *api.API
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	noop := func(context.Context, job.Params) (any, error) { return nil, nil }
	jobs := job.NewRegistry()
	jobs.MustRegister(
		job.NewDefinition("AddOne", noop),
		job.NewDefinition("ExtractData", noop),
		job.NewDefinition("LoadData", noop),
	)
	workflows := workflow.NewRegistry(jobs)
	workflows.MustRegister(workflow.NewDefinition("etl",
		workflow.WithSchedule("0 2 * * *"),
		workflow.WithJob("ExtractData"),
		workflow.WithJob("LoadData", "ExtractData"),
	))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := memory.New()
	eng, err := engine.New(s, jobs, workflows, engine.WithLogger(logger))
	require.NoError(t, err)
	return &testEnv{t: t, store: s, eng: eng, srv: api.New(eng, logger)}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func TestHealth(t *testing.T) {
	env := newEnv(t)

	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "healthy", decode[map[string]string](t, w)["status"])

	env.store.SetFailure(errors.New("connection refused"))
	w = env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestJobs_EnqueueListCancel(t *testing.T) {
	env := newEnv(t)

	w := env.do(http.MethodPost, "/api/jobs", api.EnqueueRequest{Name: "AddOne", Params: []any{map[string]any{"base": 5}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[message](t, w).Success)

	w = env.do(http.MethodGet, "/api/jobs/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[[]api.PendingJob](t, w)
	require.Len(t, pending, 1)
	assert.Equal(t, "AddOne", pending[0].Name)
	require.Len(t, pending[0].Params, 1)

	w = env.do(http.MethodDelete, "/api/jobs/pending/AddOne", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodDelete, "/api/jobs/pending/AddOne", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode[message](t, w).Success)
}

func TestJobs_Errors(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown job", http.MethodPost, "/api/jobs", api.EnqueueRequest{Name: "Ghost"}, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/jobs", map[string]any{}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/jobs", map[string]any{"name": "AddOne", "queue": "x"}, http.StatusBadRequest},
		{"schedule without time", http.MethodPost, "/api/jobs/schedule", map[string]any{"name": "AddOne"}, http.StatusBadRequest},
		{"unscheduled job", http.MethodDelete, "/api/jobs/scheduled/AddOne", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[message](t, w).Error)
		})
	}

	env.store.SetFailure(errors.New("connection refused"))
	w := env.do(http.MethodGet, "/api/jobs/running", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestJobs_ScheduleAndCancelRunning(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	runAt := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	w := env.do(http.MethodPost, "/api/jobs/schedule", api.ScheduleRequest{Name: "AddOne", RunAt: runAt})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/jobs/scheduled", nil)
	scheduled := decode[[]struct {
		Name    string    `json:"name"`
		NextRun time.Time `json:"next_run"`
	}](t, w)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "AddOne", scheduled[0].Name)
	assert.True(t, runAt.Equal(scheduled[0].NextRun))

	w = env.do(http.MethodDelete, "/api/jobs/scheduled/AddOne", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Identities containing the separator travel escaped.
	w = env.do(http.MethodPost, "/api/jobs/running/workflow-etl%7CLoadData/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	requested, err := env.eng.Queue().CheckCancelled(ctx, "workflow-etl|LoadData")
	require.NoError(t, err)
	assert.True(t, requested)
}

func TestWorkflows(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	w := env.do(http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]api.WorkflowStatus](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "etl", list[0].Name)
	assert.Equal(t, "0 2 * * *", list[0].Schedule)
	assert.Empty(t, list[0].Status)

	w = env.do(http.MethodPost, "/api/workflows/etl/trigger", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(http.MethodGet, "/api/workflows/scheduled", nil)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = env.do(http.MethodPost, "/api/workflows/ghost/trigger", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The leader starts it.
	_, err := env.eng.LeaderCycle(ctx)
	require.NoError(t, err)

	w = env.do(http.MethodGet, "/api/workflows/etl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[api.WorkflowStatus](t, w)
	assert.Equal(t, workflow.StatusRunning, st.Status)
	require.Len(t, st.Jobs, 2)
	assert.Equal(t, workflow.JobRunning, st.Jobs[0].Status)
	require.NotNil(t, st.NextRun, "the recurring workflow is re-armed")

	w = env.do(http.MethodGet, "/api/workflows/running", nil)
	assert.Len(t, decode[[]workflow.State](t, w), 1)

	w = env.do(http.MethodPost, "/api/workflows/etl/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, err = env.eng.LeaderCycle(ctx)
	require.NoError(t, err)
	st = decode[api.WorkflowStatus](t, env.do(http.MethodGet, "/api/workflows/etl", nil))
	assert.Equal(t, workflow.StatusCancelled, st.Status)

	w = env.do(http.MethodPost, "/api/workflows/etl/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	runAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	w = env.do(http.MethodPost, "/api/workflows/etl/reschedule", api.RescheduleRequest{RunAt: runAt})
	require.Equal(t, http.StatusOK, w.Code)
	next, ok, err := env.eng.Queue().WorkflowNextRun(ctx, "etl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, runAt.Equal(next))

	w = env.do(http.MethodDelete, "/api/workflows/etl/scheduled", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodDelete, "/api/workflows/etl/scheduled", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/workflows/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
