package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeferry/lakeferry/pkg/copydispatch"
	"github.com/lakeferry/lakeferry/pkg/expreval"
	"github.com/lakeferry/lakeferry/pkg/jobstore"
	"github.com/lakeferry/lakeferry/pkg/runhistory"
	"github.com/lakeferry/lakeferry/pkg/schedule"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

// spyDispatcher records dispatch calls and fails or succeeds on demand.
type spyDispatcher struct {
	calls []*jobstore.Job
	err   error
}

func (d *spyDispatcher) Dispatch(_ context.Context, job *jobstore.Job) (*copydispatch.Result, error) {
	d.calls = append(d.calls, job.Clone())
	if d.err != nil {
		return nil, d.err
	}
	return &copydispatch.Result{SourceFiles: []string{"src"}, CopiedFiles: []string{"dst"}}, nil
}

type stubRules struct {
	rules []schedule.Rule
}

func (s *stubRules) LoadRules() ([]schedule.Rule, error) { return s.rules, nil }

type fixture struct {
	store   *jobstore.Store
	history *runhistory.Store
	orch    *Orchestrator
}

func newFixture(t *testing.T, dispatcher Dispatcher, at time.Time) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := jobstore.NewStore(dir)
	history := runhistory.NewStore(dir, 10)
	clock := fixedClock{at: at}
	orch := New(Config{
		Store:      store,
		History:    history,
		Dispatcher: dispatcher,
		Rules:      &stubRules{},
		Resolver:   schedule.NewResolver(nil),
		Evaluator:  &expreval.Evaluator{Clock: clock},
		Clock:      clock,
	})
	return &fixture{store: store, history: history, orch: orch}
}

var testNow = time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)

func TestRunJob_LocalCopy(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	for _, n := range []string{"a.csv", "b.csv", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, n), []byte(n), 0644))
	}

	f := newFixture(t, nil, testNow)
	f.orch.dispatcher = copydispatch.New(f.store, 0)
	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "42", Name: "csv export", SourceType: "local", TargetType: "local",
		Source: src, Target: dst, SourceFileMask: "*.csv",
	}}))

	rec, err := f.orch.RunJob(context.Background(), "42", runhistory.TriggerManual, "")
	require.NoError(t, err)

	assert.Equal(t, runhistory.StatusSuccess, rec.Status)
	assert.Equal(t, "Copied 2 files for date 2026-08-29.", rec.Message)
	assert.Equal(t, "*.csv", rec.FileMaskUsed)
	require.Len(t, rec.DateRuns, 1)
	assert.Equal(t, "2026-08-29", rec.DateRuns[0].Date)
	assert.True(t, rec.DateRuns[0].Success)

	for _, n := range []string{"a.csv", "b.csv"} {
		_, err := os.Stat(filepath.Join(dst, n))
		assert.NoError(t, err)
	}
	_, err = os.Stat(filepath.Join(dst, "skip.txt"))
	assert.True(t, os.IsNotExist(err))

	// The terminal record replaced the executing placeholder in place.
	live, err := f.history.Load("42")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, rec.RunID, live[0].RunID)
	assert.Equal(t, runhistory.StatusSuccess, live[0].Status)
}

func TestRunJob_PlaceholderResolution(t *testing.T) {
	spy := &spyDispatcher{}
	f := newFixture(t, spy, testNow)

	require.NoError(t, f.store.SaveGlobals([]jobstore.GlobalVariable{
		{ID: "g1", Name: "Region", Type: jobstore.VariableStatic, Value: "emea"},
	}))
	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "7", SourceType: "local", TargetType: "local",
		Source: "/data/[$Region]/in", Target: "/data/[$Region]/[#Client]/out",
		LocalVariables: []jobstore.LocalVariable{
			{ID: "v1", Name: "Client", Type: jobstore.VariableStatic, Value: "acme"},
		},
	}}))

	rec, err := f.orch.RunJob(context.Background(), "7", runhistory.TriggerManual, "")
	require.NoError(t, err)
	assert.Equal(t, runhistory.StatusSuccess, rec.Status)

	require.Len(t, spy.calls, 1)
	assert.Equal(t, "/data/emea/in", spy.calls[0].Source)
	assert.Equal(t, "/data/emea/acme/out", spy.calls[0].Target)

	// The persisted definition keeps its raw templates.
	job, err := f.store.JobByID("7")
	require.NoError(t, err)
	assert.Equal(t, "/data/[$Region]/in", job.Source)
}

func TestRunJob_MissingGlobalFailsBeforeDispatch(t *testing.T) {
	spy := &spyDispatcher{}
	f := newFixture(t, spy, testNow)

	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "7", SourceType: "local", TargetType: "local",
		Source: "/data/[$Region]/in", Target: "/out/[#Client]",
	}}))

	rec, err := f.orch.RunJob(context.Background(), "7", runhistory.TriggerManual, "")
	require.NoError(t, err)

	assert.Equal(t, runhistory.StatusFailed, rec.Status)
	assert.Empty(t, spy.calls, "validation failure must short-circuit the copy")

	require.Len(t, rec.DateRuns, 1)
	fe := rec.DateRuns[0].FieldErrors
	require.Contains(t, fe, "source")
	require.Contains(t, fe, "target")
	assert.Contains(t, fe["source"][0], `global variable "Region" not found`)
	assert.Contains(t, fe["target"][0], `local variable "Client" not found`)
}

func TestRunJob_DynamicVariableRefresh(t *testing.T) {
	spy := &spyDispatcher{}
	f := newFixture(t, spy, testNow)

	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "9", SourceType: "local", TargetType: "local",
		Source: "/in", Target: "/out", SourceFileMask: "report_[#FileDate].csv",
		LocalVariables: []jobstore.LocalVariable{
			{ID: "v1", Name: "FileDate", Type: jobstore.VariableDynamic, Expression: `result = format(today(), "20060102")`, Value: "stale"},
		},
	}}))

	rec, err := f.orch.RunJob(context.Background(), "9", runhistory.TriggerManual, "")
	require.NoError(t, err)
	assert.Equal(t, runhistory.StatusSuccess, rec.Status)

	require.Len(t, spy.calls, 1)
	assert.Equal(t, "report_20260829.csv", spy.calls[0].SourceFileMask)

	// The refreshed value is persisted back to the definition.
	job, err := f.store.JobByID("9")
	require.NoError(t, err)
	assert.Equal(t, "20260829", job.LocalVariables[0].Value)
}

func TestRunJob_DynamicVariableErrorSurfacesInMessage(t *testing.T) {
	spy := &spyDispatcher{}
	f := newFixture(t, spy, testNow)

	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "9", SourceType: "local", TargetType: "local",
		Source: "/in/[#FileDate]", Target: "/out",
		LocalVariables: []jobstore.LocalVariable{
			{ID: "v1", Name: "FileDate", Type: jobstore.VariableDynamic, Expression: `result = boom()`},
		},
	}}))

	rec, err := f.orch.RunJob(context.Background(), "9", runhistory.TriggerManual, "")
	require.NoError(t, err)

	// The variable still resolves (to the error value), so the run proceeds
	// but carries the evaluation failure in its message on a later failure.
	assert.Equal(t, runhistory.StatusSuccess, rec.Status)
	require.Len(t, spy.calls, 1)
	assert.Contains(t, spy.calls[0].Source, "Error:")
}

func TestRunJob_JobNotFound(t *testing.T) {
	f := newFixture(t, &spyDispatcher{}, testNow)

	rec, err := f.orch.RunJob(context.Background(), "missing", runhistory.TriggerManual, "")
	require.NoError(t, err)
	assert.Equal(t, runhistory.StatusFailed, rec.Status)
	assert.Contains(t, rec.Message, "Job not found")

	// Even a run that never located its job ends with a terminal record.
	live, err := f.history.Load("missing")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, runhistory.StatusFailed, live[0].Status)
}

func TestRunJob_UnsupportedRouteMessage(t *testing.T) {
	spy := &spyDispatcher{err: &copydispatch.UnsupportedRouteError{Source: "ftp", Target: "local"}}
	f := newFixture(t, spy, testNow)
	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "1", SourceType: "ftp", TargetType: "local", Source: "/in", Target: "/out",
	}}))

	rec, err := f.orch.RunJob(context.Background(), "1", runhistory.TriggerManual, "")
	require.NoError(t, err)
	assert.Equal(t, runhistory.StatusFailed, rec.Status)
	assert.Contains(t, rec.Message, "Copy logic not implemented")
}

func TestRunJob_CopyFailureMessage(t *testing.T) {
	spy := &spyDispatcher{err: fmt.Errorf("disk full")}
	f := newFixture(t, spy, testNow)
	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "1", SourceType: "local", TargetType: "local", Source: "/in", Target: "/out",
	}}))

	rec, err := f.orch.RunJob(context.Background(), "1", runhistory.TriggerManual, "")
	require.NoError(t, err)
	assert.Equal(t, runhistory.StatusFailed, rec.Status)
	assert.Contains(t, rec.Message, "Copy failed: disk full")
}

func TestRunJob_TimeTravel(t *testing.T) {
	spy := &spyDispatcher{}
	f := newFixture(t, spy, testNow)

	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "tt", SourceType: "local", TargetType: "local",
		Source: "/in", Target: "/out/[#FileDate]",
		LocalVariables: []jobstore.LocalVariable{
			{ID: "v1", Name: "FileDate", Type: jobstore.VariableDynamic, Expression: `result = format(today(), "20060102")`},
		},
		TimeTravel: jobstore.TimeTravel{Enabled: true, FromDate: "2026-01-30", ToDate: "2026-02-01"},
	}}))

	rec, err := f.orch.RunJob(context.Background(), "tt", runhistory.TriggerManual, "")
	require.NoError(t, err)

	assert.Equal(t, runhistory.StatusSuccess, rec.Status)
	assert.Equal(t, "Time travel run completed for date range.", rec.Message)
	assert.Equal(t, "2026-01-30", rec.FromDate)
	assert.Equal(t, "2026-02-01", rec.ToDate)

	require.Len(t, rec.DateRuns, 3)
	wantDates := []string{"2026-01-30", "2026-01-31", "2026-02-01"}
	require.Len(t, spy.calls, 3)
	for i, dr := range rec.DateRuns {
		assert.Equal(t, wantDates[i], dr.Date)
		assert.True(t, dr.Success)
		assert.Equal(t, fmt.Sprintf("%s-%s", rec.RunID, wantDates[i][:4]+wantDates[i][5:7]+wantDates[i][8:]), dr.RunID)
		// Each simulated date resolves today() to itself.
		assert.Equal(t, "/out/"+wantDates[i][:4]+wantDates[i][5:7]+wantDates[i][8:], spy.calls[i].Target)
	}
}

func TestRunJob_TimeTravelSingleDay(t *testing.T) {
	spy := &spyDispatcher{}
	f := newFixture(t, spy, testNow)
	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "tt", SourceType: "local", TargetType: "local", Source: "/in", Target: "/out",
		TimeTravel: jobstore.TimeTravel{Enabled: true, FromDate: "2026-03-15", ToDate: "2026-03-15"},
	}}))

	rec, err := f.orch.RunJob(context.Background(), "tt", runhistory.TriggerManual, "")
	require.NoError(t, err)
	require.Len(t, rec.DateRuns, 1)
	assert.Equal(t, "2026-03-15", rec.DateRuns[0].Date)
}

func TestRunJob_TimeTravelInvertedRange(t *testing.T) {
	f := newFixture(t, &spyDispatcher{}, testNow)
	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "tt", SourceType: "local", TargetType: "local", Source: "/in", Target: "/out",
		TimeTravel: jobstore.TimeTravel{Enabled: true, FromDate: "2026-03-15", ToDate: "2026-03-01"},
	}}))

	rec, err := f.orch.RunJob(context.Background(), "tt", runhistory.TriggerManual, "")
	require.NoError(t, err)
	assert.Equal(t, runhistory.StatusFailed, rec.Status)
	assert.Contains(t, rec.Message, "Invalid time travel range")
	assert.Empty(t, rec.DateRuns)
}

func TestRunJob_TimeTravelPartialFailure(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.csv"), []byte("x"), 0644))

	f := newFixture(t, nil, testNow)
	f.orch.dispatcher = copydispatch.New(f.store, 0)

	// The mask matches only on one of the two simulated dates.
	require.NoError(t, os.Rename(filepath.Join(src, "a.csv"), filepath.Join(src, "report_20260110.csv")))
	require.NoError(t, f.store.SaveJobs([]jobstore.Job{{
		ID: "tt", SourceType: "local", TargetType: "local",
		Source: src, Target: filepath.Join(t.TempDir(), "out"),
		SourceFileMask: "report_[#FileDate].csv",
		LocalVariables: []jobstore.LocalVariable{
			{ID: "v1", Name: "FileDate", Type: jobstore.VariableDynamic, Expression: `result = format(today(), "20060102")`},
		},
		TimeTravel: jobstore.TimeTravel{Enabled: true, FromDate: "2026-01-10", ToDate: "2026-01-11"},
	}}))

	rec, err := f.orch.RunJob(context.Background(), "tt", runhistory.TriggerManual, "")
	require.NoError(t, err)

	assert.Equal(t, runhistory.StatusFailed, rec.Status, "one failed date fails the parent")
	require.Len(t, rec.DateRuns, 2)
	assert.True(t, rec.DateRuns[0].Success)
	assert.False(t, rec.DateRuns[1].Success)
}

func TestEvaluateSchedules(t *testing.T) {
	f := newFixture(t, &spyDispatcher{}, testNow)
	f.orch.rules = &stubRules{rules: []schedule.Rule{
		{ID: "r1", JobID: "1", Timezone: "UTC", Time: "10:00", Weekdays: []string{"Saturday"}},
		{ID: "r2", JobID: "2", Timezone: "UTC", Time: "10:00", Weekdays: []string{"Saturday"}, Paused: true},
		{ID: "r3", JobID: "3", Timezone: "UTC", Time: "11:00", Weekdays: []string{"Saturday"}},
		{ID: "r4", JobID: "4", Timezone: "UTC", Time: "10:00"}, // malformed: no mode
	}}

	// 2026-08-29 is a Saturday.
	due, err := f.orch.EvaluateSchedules(testNow)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, Trigger{JobID: "1", ScheduleID: "r1"}, due[0])
}

func TestRefreshGlobalVariables(t *testing.T) {
	f := newFixture(t, &spyDispatcher{}, testNow)
	require.NoError(t, f.store.SaveGlobals([]jobstore.GlobalVariable{
		{ID: "g1", Name: "Today", Type: jobstore.VariableDynamic, Expression: `result = format(today())`, Value: "stale"},
		{ID: "g2", Name: "Broken", Type: jobstore.VariableDynamic, Expression: `result = nope()`, Value: "last-good"},
		{ID: "g3", Name: "Fixed", Type: jobstore.VariableStatic, Value: "constant"},
	}))

	require.NoError(t, f.orch.RefreshGlobalVariables())

	globals, err := f.store.LoadGlobals()
	require.NoError(t, err)
	byName := make(map[string]string, len(globals))
	for _, g := range globals {
		byName[g.Name] = g.Value
	}
	assert.Equal(t, "2026-08-29", byName["Today"])
	assert.Equal(t, "last-good", byName["Broken"], "a broken expression keeps the last good value")
	assert.Equal(t, "constant", byName["Fixed"])
}

func TestGetHistory_ArchiveSelection(t *testing.T) {
	f := newFixture(t, &spyDispatcher{}, testNow)
	history := runhistory.NewStore(t.TempDir(), 2)
	f.orch.history = history

	for i := 0; i < 5; i++ {
		require.NoError(t, history.Upsert("j", runhistory.RunRecord{
			RunID: fmt.Sprintf("r%d", i), Status: runhistory.StatusSuccess,
		}))
	}

	live, err := f.orch.GetHistory("j", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(live), 2)

	indices, err := f.orch.ListArchives("j")
	require.NoError(t, err)
	require.NotEmpty(t, indices)

	arch, err := f.orch.GetHistory("j", indices[0])
	require.NoError(t, err)
	assert.NotEmpty(t, arch)
}
