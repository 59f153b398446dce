package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lakeferry/lakeferry/internal/server/middleware"
	"github.com/lakeferry/lakeferry/pkg/jobstore"
	"github.com/lakeferry/lakeferry/pkg/runhistory"
	"github.com/lakeferry/lakeferry/pkg/schedule"
)

// Orchestrator is the runner surface the handlers call.
type Orchestrator interface {
	RunJob(ctx context.Context, jobID string, trigger runhistory.TriggerType, schedulerID string) (*runhistory.RunRecord, error)
	GetHistory(jobID string, archiveIndex int) ([]runhistory.RunRecord, error)
	ListArchives(jobID string) ([]int, error)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	TriggerType string `json:"trigger_type"`
	SchedulerID string `json:"scheduler_id"`
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req runRequest
	if r.Body != nil {
		// An empty or absent body means a plain manual run.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	trigger := runhistory.TriggerManual
	if req.TriggerType == string(runhistory.TriggerScheduled) {
		trigger = runhistory.TriggerScheduled
	}

	record, err := s.orch.RunJob(r.Context(), jobID, trigger, req.SchedulerID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": record.Status == runhistory.StatusSuccess,
		"run_id":  record.RunID,
		"record":  record,
	})
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	archiveIndex := 0
	if raw := r.URL.Query().Get("archive"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "archive must be a positive integer")
			return
		}
		archiveIndex = n
	}

	records, err := s.orch.GetHistory(jobID, archiveIndex)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if records == nil {
		records = []runhistory.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRunHistoryArchives(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	indices, err := s.orch.ListArchives(jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if indices == nil {
		indices = []int{}
	}
	writeJSON(w, http.StatusOK, map[string][]int{"archives": indices})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	rules, err := s.schedules.LoadRules()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if rules == nil {
		rules = []schedule.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handlePauseSchedule(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduleID := chi.URLParam(r, "scheduleID")
		if err := s.schedules.SetPaused(scheduleID, paused); err != nil {
			if errors.Is(err, schedule.ErrRuleNotFound) {
				middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return
		}
		detail := "Paused"
		if !paused {
			detail = "Resumed"
		}
		writeJSON(w, http.StatusOK, map[string]string{"detail": detail})
	}
}
