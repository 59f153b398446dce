// Package runner drives job runs: variable refresh, placeholder validation,
// copy dispatch, and durable run-history recording, with optional
// time-travel batches that replay a job once per simulated date.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lakeferry/lakeferry/pkg/copydispatch"
	"github.com/lakeferry/lakeferry/pkg/expreval"
	"github.com/lakeferry/lakeferry/pkg/jobstore"
	"github.com/lakeferry/lakeferry/pkg/runhistory"
	"github.com/lakeferry/lakeferry/pkg/schedule"
)

// Clock is the orchestrator's wall-clock source. Time-travel never touches
// this clock; simulated dates are threaded through evaluator calls as
// explicit overrides.
type Clock interface {
	Now() time.Time
}

// Store is the slice of jobstore.Store the orchestrator depends on.
type Store interface {
	JobByID(id string) (*jobstore.Job, error)
	MutateJobs(fn func(jobs []jobstore.Job) ([]jobstore.Job, bool, error)) error
	LoadGlobals() ([]jobstore.GlobalVariable, error)
	MutateGlobals(fn func(vars []jobstore.GlobalVariable) ([]jobstore.GlobalVariable, bool, error)) error
}

// History is the run-history surface the orchestrator writes through.
type History interface {
	Upsert(jobID string, record runhistory.RunRecord) error
	Load(jobID string) ([]runhistory.RunRecord, error)
	LoadArchive(jobID string, index int) ([]runhistory.RunRecord, error)
	ListArchives(jobID string) ([]int, error)
}

// Dispatcher executes the copy for a resolved job snapshot.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *jobstore.Job) (*copydispatch.Result, error)
}

// RuleSource lists the schedule rules considered by EvaluateSchedules.
type RuleSource interface {
	LoadRules() ([]schedule.Rule, error)
}

// Config wires an Orchestrator's collaborators.
type Config struct {
	Store      Store
	History    History
	Dispatcher Dispatcher
	Rules      RuleSource
	Resolver   *schedule.Resolver
	Evaluator  *expreval.Evaluator
	Clock      Clock
	Logger     *zap.Logger
}

// Orchestrator runs jobs. Runs of the same job serialize on a per-job
// mutex; runs of different jobs proceed independently.
type Orchestrator struct {
	store      Store
	history    History
	dispatcher Dispatcher
	rules      RuleSource
	resolver   *schedule.Resolver
	evaluator  *expreval.Evaluator
	clock      Clock
	log        *zap.Logger

	mu       sync.Mutex
	jobLocks map[string]*sync.Mutex
}

func New(cfg Config) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = expreval.SystemClock{}
	}
	ev := cfg.Evaluator
	if ev == nil {
		ev = &expreval.Evaluator{Clock: clock}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:      cfg.Store,
		history:    cfg.History,
		dispatcher: cfg.Dispatcher,
		rules:      cfg.Rules,
		resolver:   cfg.Resolver,
		evaluator:  ev,
		clock:      clock,
		log:        log,
		jobLocks:   make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) jobLock(jobID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.jobLocks[jobID]
	if !ok {
		l = &sync.Mutex{}
		o.jobLocks[jobID] = l
	}
	return l
}

// RunJob executes one run of the job and returns its terminal record.
//
// An "executing" placeholder is written before any work so concurrent
// history readers see the in-progress state; the terminal record replaces
// it under the same run id. Every run, including one that fails to locate
// the job, ends with a terminal record - an orphaned "executing" entry is
// a bug, not an acceptable degradation.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string, trigger runhistory.TriggerType, schedulerID string) (*runhistory.RunRecord, error) {
	l := o.jobLock(jobID)
	l.Lock()
	defer l.Unlock()

	parentID := uuid.New().String()
	placeholder := runhistory.RunRecord{
		RunID:       parentID,
		Timestamp:   o.clock.Now().UTC(),
		Status:      runhistory.StatusExecuting,
		Message:     "Run started",
		TriggerType: trigger,
		SchedulerID: schedulerID,
	}
	if err := o.history.Upsert(jobID, placeholder); err != nil {
		o.log.Error("Failed to write executing record",
			zap.String("job_id", jobID), zap.String("run_id", parentID), zap.Error(err))
	}

	final := o.execute(ctx, jobID, parentID)
	final.TriggerType = trigger
	final.SchedulerID = schedulerID
	final.Timestamp = o.clock.Now().UTC()

	if err := o.history.Upsert(jobID, final); err != nil {
		o.log.Error("Failed to write terminal record",
			zap.String("job_id", jobID), zap.String("run_id", parentID), zap.Error(err))
		return &final, fmt.Errorf("record run result: %w", err)
	}
	return &final, nil
}

// execute performs the run body and always returns a terminal record.
func (o *Orchestrator) execute(ctx context.Context, jobID, parentID string) (rec runhistory.RunRecord) {
	rec = runhistory.RunRecord{RunID: parentID, Status: runhistory.StatusFailed}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Run panicked", zap.String("job_id", jobID), zap.Any("panic", r))
			rec.Status = runhistory.StatusFailed
			rec.Message = fmt.Sprintf("Unexpected error: %v", r)
		}
	}()

	job, err := o.store.JobByID(jobID)
	if err != nil {
		rec.Message = fmt.Sprintf("Job not found: %v", err)
		return rec
	}
	if err := job.Validate(); err != nil {
		rec.Message = fmt.Sprintf("Invalid job: %v", err)
		return rec
	}

	tt := job.TimeTravel
	if tt.Enabled && tt.FromDate != "" && tt.ToDate != "" {
		return o.executeTimeTravel(ctx, jobID, parentID, tt)
	}

	today := o.clock.Now().Format("2006-01-02")
	result := o.runForDate(ctx, jobID, parentID, today, nil)
	rec.Status = result.Status
	rec.Message = result.Message
	rec.FileMaskUsed = result.FileMaskUsed
	rec.SourceFiles = result.SourceFiles
	rec.CopiedFiles = result.CopiedFiles
	rec.DateRuns = []runhistory.DateRun{result}
	return rec
}

// executeTimeTravel runs the job once per date in [from, to] inclusive,
// ascending. Dates run sequentially: later dates may depend on variable
// values persisted by earlier iterations.
func (o *Orchestrator) executeTimeTravel(ctx context.Context, jobID, parentID string, tt jobstore.TimeTravel) runhistory.RunRecord {
	rec := runhistory.RunRecord{
		RunID:    parentID,
		Status:   runhistory.StatusFailed,
		FromDate: tt.FromDate,
		ToDate:   tt.ToDate,
	}

	from, err := time.ParseInLocation("2006-01-02", tt.FromDate, time.Local)
	if err != nil {
		rec.Message = fmt.Sprintf("Invalid time travel from_date %q: %v", tt.FromDate, err)
		return rec
	}
	to, err := time.ParseInLocation("2006-01-02", tt.ToDate, time.Local)
	if err != nil {
		rec.Message = fmt.Sprintf("Invalid time travel to_date %q: %v", tt.ToDate, err)
		return rec
	}
	if to.Before(from) {
		rec.Message = fmt.Sprintf("Invalid time travel range: %s is after %s", tt.FromDate, tt.ToDate)
		return rec
	}

	allOK := true
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		dateStr := day.Format("2006-01-02")
		childID := fmt.Sprintf("%s-%s", parentID, day.Format("20060102"))
		override := day
		result := o.runForDate(ctx, jobID, childID, dateStr, &override)
		rec.DateRuns = append(rec.DateRuns, result)
		if !result.Success {
			allOK = false
		}
	}

	if allOK {
		rec.Status = runhistory.StatusSuccess
	}
	rec.Message = "Time travel run completed for date range."
	return rec
}
