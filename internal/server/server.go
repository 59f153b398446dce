// Package server exposes the HTTP surface: run jobs, read run history, and
// pause/resume schedules. Request validation lives here; all semantics live
// in the runner and stores.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lakeferry/lakeferry/internal/server/middleware"
	"github.com/lakeferry/lakeferry/pkg/schedule"
)

// Server wires the chi router over the orchestrator and schedule store.
type Server struct {
	orch      Orchestrator
	schedules Schedules
	log       *zap.Logger
	mux       *chi.Mux
}

// Schedules is the schedule-store surface the server needs.
type Schedules interface {
	LoadRules() ([]schedule.Rule, error)
	SetPaused(ruleID string, paused bool) error
}

func New(orch Orchestrator, schedules Schedules, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{orch: orch, schedules: schedules, log: log}

	mux := chi.NewRouter()
	mux.Use(middleware.Recovery)
	mux.Use(middleware.RequestLogger(log))
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})

	mux.Get("/healthz", s.handleHealth)
	mux.Route("/jobs/{jobID}", func(r chi.Router) {
		r.Post("/run", s.handleRunJob)
		r.Get("/run-history", s.handleRunHistory)
		r.Get("/run-history-archives", s.handleRunHistoryArchives)
	})
	mux.Get("/schedules", s.handleListSchedules)
	mux.Post("/schedules/{scheduleID}/pause", s.handlePauseSchedule(true))
	mux.Post("/schedules/{scheduleID}/resume", s.handlePauseSchedule(false))

	s.mux = mux
	return s
}

// Handler returns the root handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
