// Package api exposes the engine's control operations over HTTP.
//
// Every handler is a thin translation of one engine call; the API holds no
// state of its own and can run in any process that can reach the store,
// worker or not.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/huffmsa/nuts/engine"
)

// API serves the control endpoints of an Engine.
type API struct {
	eng    *engine.Engine
	router chi.Router
	logger *slog.Logger
}

// New creates an API with all routes registered.
func New(eng *engine.Engine, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{
		eng:    eng,
		router: chi.NewRouter(),
		logger: logger.With("component", "api"),
	}
	a.routes()
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this API.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) routes() {
	r := a.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(a.logger))

	r.Get("/health", a.handleHealth)

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/pending", a.handleListPending)
		r.Get("/running", a.handleListRunning)
		r.Get("/completed", a.handleListCompleted)
		r.Get("/scheduled", a.handleListScheduled)

		r.Post("/", a.handleEnqueue)
		r.Post("/schedule", a.handleSchedule)

		r.Delete("/pending/{name}", a.handleCancelPending)
		r.Delete("/scheduled/{name}", a.handleCancelScheduled)
		r.Post("/running/{name}/cancel", a.handleRequestCancel)
	})

	r.Route("/api/workflows", func(r chi.Router) {
		r.Get("/", a.handleListWorkflows)
		r.Get("/scheduled", a.handleListScheduledWorkflows)
		r.Get("/running", a.handleListRunningWorkflows)

		r.Get("/{name}", a.handleGetWorkflow)
		r.Post("/{name}/trigger", a.handleTriggerWorkflow)
		r.Delete("/{name}/scheduled", a.handleCancelScheduledWorkflow)
		r.Post("/{name}/reschedule", a.handleRescheduleWorkflow)
		r.Post("/{name}/cancel", a.handleCancelWorkflow)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.Health(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"store":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"store":  "connected",
	})
}
