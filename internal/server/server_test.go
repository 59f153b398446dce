package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeferry/lakeferry/pkg/jobstore"
	"github.com/lakeferry/lakeferry/pkg/runhistory"
	"github.com/lakeferry/lakeferry/pkg/schedule"
)

type stubOrchestrator struct {
	lastTrigger   runhistory.TriggerType
	lastScheduler string
	runErr        error
	history       []runhistory.RunRecord
	archives      []int
	panics        bool
}

func (s *stubOrchestrator) RunJob(_ context.Context, jobID string, trigger runhistory.TriggerType, schedulerID string) (*runhistory.RunRecord, error) {
	if s.panics {
		panic("boom")
	}
	s.lastTrigger = trigger
	s.lastScheduler = schedulerID
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &runhistory.RunRecord{RunID: "run-1", Status: runhistory.StatusSuccess, Message: "ok"}, nil
}

func (s *stubOrchestrator) GetHistory(jobID string, archiveIndex int) ([]runhistory.RunRecord, error) {
	if archiveIndex > 0 {
		return nil, nil
	}
	return s.history, nil
}

func (s *stubOrchestrator) ListArchives(jobID string) ([]int, error) {
	return s.archives, nil
}

type stubSchedules struct {
	rules     []schedule.Rule
	setID     string
	setPaused bool
	setErr    error
}

func (s *stubSchedules) LoadRules() ([]schedule.Rule, error) { return s.rules, nil }

func (s *stubSchedules) SetPaused(ruleID string, paused bool) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.setID = ruleID
	s.setPaused = paused
	return nil
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := New(&stubOrchestrator{}, &stubSchedules{}, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunJob(t *testing.T) {
	orch := &stubOrchestrator{}
	srv := New(orch, &stubSchedules{}, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/jobs/42/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runhistory.TriggerManual, orch.lastTrigger)

	var resp struct {
		Success bool                 `json:"success"`
		RunID   string               `json:"run_id"`
		Record  runhistory.RunRecord `json:"record"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, runhistory.StatusSuccess, resp.Record.Status)
}

func TestRunJob_ScheduledTrigger(t *testing.T) {
	orch := &stubOrchestrator{}
	srv := New(orch, &stubSchedules{}, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/jobs/42/run",
		`{"trigger_type":"scheduled","scheduler_id":"r1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runhistory.TriggerScheduled, orch.lastTrigger)
	assert.Equal(t, "r1", orch.lastScheduler)
}

func TestRunJob_NotFound(t *testing.T) {
	orch := &stubOrchestrator{runErr: fmt.Errorf("job 42: %w", jobstore.ErrNotFound)}
	srv := New(orch, &stubSchedules{}, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/jobs/42/run", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}

func TestRunHistory(t *testing.T) {
	orch := &stubOrchestrator{history: []runhistory.RunRecord{{RunID: "a"}, {RunID: "b"}}}
	srv := New(orch, &stubSchedules{}, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/jobs/42/run-history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []runhistory.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 2)
}

func TestRunHistory_EmptyIsArray(t *testing.T) {
	srv := New(&stubOrchestrator{}, &stubSchedules{}, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/jobs/42/run-history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestRunHistory_InvalidArchiveParam(t *testing.T) {
	srv := New(&stubOrchestrator{}, &stubSchedules{}, nil)
	for _, q := range []string{"abc", "0", "-1"} {
		rec := doRequest(t, srv.Handler(), http.MethodGet, "/jobs/42/run-history?archive="+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "archive=%s", q)
		assert.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")
	}
}

func TestRunHistoryArchives(t *testing.T) {
	orch := &stubOrchestrator{archives: []int{1, 2, 3}}
	srv := New(orch, &stubSchedules{}, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/jobs/42/run-history-archives", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"archives":[1,2,3]}`, rec.Body.String())
}

func TestListSchedules(t *testing.T) {
	scheds := &stubSchedules{rules: []schedule.Rule{{ID: "r1", JobID: "42"}}}
	srv := New(&stubOrchestrator{}, scheds, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rules []schedule.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "r1", rules[0].ID)
}

func TestPauseResumeSchedule(t *testing.T) {
	scheds := &stubSchedules{}
	srv := New(&stubOrchestrator{}, scheds, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/schedules/r1/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", scheds.setID)
	assert.True(t, scheds.setPaused)
	assert.Contains(t, rec.Body.String(), "Paused")

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/schedules/r1/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, scheds.setPaused)
	assert.Contains(t, rec.Body.String(), "Resumed")
}

func TestPauseSchedule_NotFound(t *testing.T) {
	scheds := &stubSchedules{setErr: fmt.Errorf("rule r9: %w", schedule.ErrRuleNotFound)}
	srv := New(&stubOrchestrator{}, scheds, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/schedules/r9/pause", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := New(&stubOrchestrator{}, &stubSchedules{}, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	srv := New(&stubOrchestrator{panics: true}, &stubSchedules{}, nil)
	rec := doRequest(t, srv.Handler(), http.MethodPost, "/jobs/42/run", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
