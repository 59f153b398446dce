package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lakeferry/lakeferry/pkg/copydispatch"
	"github.com/lakeferry/lakeferry/pkg/expreval"
	"github.com/lakeferry/lakeferry/pkg/jobstore"
	"github.com/lakeferry/lakeferry/pkg/placeholder"
	"github.com/lakeferry/lakeferry/pkg/runhistory"
)

// runForDate executes the inner state machine for a single (possibly
// simulated) date: refresh dynamic variables, validate and resolve
// placeholders, dispatch the copy, and shape the result.
//
// override is the simulated "current date" during time travel; nil means
// the real clock.
func (o *Orchestrator) runForDate(ctx context.Context, jobID, runID, dateStr string, override *time.Time) runhistory.DateRun {
	result := runhistory.DateRun{
		RunID:       runID,
		Date:        dateStr,
		Status:      runhistory.StatusFailed,
		SourceFiles: []string{},
		CopiedFiles: []string{},
	}

	// Re-read persisted state at the start of every iteration; earlier
	// dates of the same run may have refreshed variable values.
	job, err := o.store.JobByID(jobID)
	if err != nil {
		result.Message = fmt.Sprintf("Job not found: %v", err)
		return result
	}
	// Placeholder substitution happens on a snapshot so the persisted
	// definition keeps its raw templates.
	snapshot := job.Clone()
	result.FileMaskUsed = maskOf(snapshot)

	var varErrors []string
	o.refreshLocalVariables(jobID, snapshot, override, &varErrors)

	globals, err := o.store.LoadGlobals()
	if err != nil {
		result.Message = fmt.Sprintf("Failed to load global variables: %v", err)
		return result
	}
	globalMap := make(map[string]string, len(globals))
	for _, g := range globals {
		globalMap[g.Name] = g.Value
	}
	localMap := make(map[string]string, len(snapshot.LocalVariables))
	for _, v := range snapshot.LocalVariables {
		localMap[v.Name] = v.Value
	}

	// Fail-soft validation across every monitored field before any
	// substitution, so a failure never leaves the snapshot half resolved.
	fieldErrors := make(map[string][]string)
	var errLines []string
	for _, f := range snapshot.TemplateFields() {
		errs := placeholder.FindMissing(*f.Ref, globalMap, localMap)
		if len(errs) == 0 {
			continue
		}
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		fieldErrors[f.Name] = msgs
		errLines = append(errLines, f.Name+": "+strings.Join(msgs, "; "))
	}
	if len(fieldErrors) > 0 {
		result.FieldErrors = fieldErrors
		result.Message = strings.Join(append(varErrors, errLines...), "\n")
		return result
	}

	for _, f := range snapshot.TemplateFields() {
		resolved, err := placeholder.Resolve(*f.Ref, globalMap, localMap)
		if err != nil {
			// FindMissing passed, so this indicates the stores changed
			// underneath us mid-run.
			result.Message = fmt.Sprintf("%s: %v", f.Name, err)
			return result
		}
		*f.Ref = resolved
	}
	result.FileMaskUsed = maskOf(snapshot)

	copied, err := o.dispatcher.Dispatch(ctx, snapshot)
	if err != nil {
		if copydispatch.IsUnsupportedRoute(err) {
			result.Message = fmt.Sprintf("Copy logic not implemented: %v", err)
		} else {
			result.Message = strings.Join(append(varErrors, fmt.Sprintf("Copy failed: %v", err)), "\n")
		}
		return result
	}

	result.Success = true
	result.Status = runhistory.StatusSuccess
	result.Message = fmt.Sprintf("Copied %d files for date %s.", len(copied.CopiedFiles), dateStr)
	result.SourceFiles = copied.SourceFiles
	result.CopiedFiles = copied.CopiedFiles
	return result
}

// refreshLocalVariables re-evaluates the job's dynamic variables under the
// given clock override and persists refreshed values so subsequent runs and
// concurrent readers observe them. Per-variable failures are recorded and
// evaluation continues; they only surface in the run message if placeholder
// resolution later fails because of them.
func (o *Orchestrator) refreshLocalVariables(jobID string, snapshot *jobstore.Job, override *time.Time, varErrors *[]string) {
	changed := false
	for i := range snapshot.LocalVariables {
		v := &snapshot.LocalVariables[i]
		if v.Type != jobstore.VariableDynamic || v.Expression == "" {
			continue
		}
		value := o.evaluator.Evaluate(v.Expression, override)
		if expreval.IsErrorValue(value) {
			*varErrors = append(*varErrors, fmt.Sprintf("Dynamic variable error (%s): %s", v.Name, strings.TrimPrefix(value, "Error: ")))
		}
		v.Value = value
		changed = true
	}
	if !changed {
		return
	}

	err := o.store.MutateJobs(func(jobs []jobstore.Job) ([]jobstore.Job, bool, error) {
		for i := range jobs {
			if jobs[i].ID == jobID {
				jobs[i].LocalVariables = append([]jobstore.LocalVariable(nil), snapshot.LocalVariables...)
				return jobs, true, nil
			}
		}
		return jobs, false, nil
	})
	if err != nil {
		o.log.Error("Failed to persist refreshed variables", zap.String("job_id", jobID), zap.Error(err))
	}
}

func maskOf(job *jobstore.Job) string {
	if job.SourceFileMask == "" {
		return "*"
	}
	return job.SourceFileMask
}
