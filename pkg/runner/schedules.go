package runner

import (
	"time"

	"go.uber.org/zap"

	"github.com/lakeferry/lakeferry/pkg/expreval"
	"github.com/lakeferry/lakeferry/pkg/jobstore"
	"github.com/lakeferry/lakeferry/pkg/runhistory"
)

// Trigger names a job due to fire together with the rule that matched.
type Trigger struct {
	JobID      string
	ScheduleID string
}

// EvaluateSchedules returns the jobs whose rules match the given instant.
// Paused rules are skipped; malformed rules are logged and skipped rather
// than failing the whole sweep. Callers poll at minute granularity and must
// fire each trigger at most once per matching minute.
func (o *Orchestrator) EvaluateSchedules(now time.Time) ([]Trigger, error) {
	rules, err := o.rules.LoadRules()
	if err != nil {
		return nil, err
	}
	var due []Trigger
	for _, rule := range rules {
		if rule.Paused {
			continue
		}
		ok, err := o.resolver.Matches(rule, now)
		if err != nil {
			o.log.Warn("Skipping malformed schedule rule",
				zap.String("rule_id", rule.ID), zap.String("job_id", rule.JobID), zap.Error(err))
			continue
		}
		if ok {
			due = append(due, Trigger{JobID: rule.JobID, ScheduleID: rule.ID})
		}
	}
	return due, nil
}

// GetHistory returns a job's live history, or one archive segment when
// archiveIndex is positive.
func (o *Orchestrator) GetHistory(jobID string, archiveIndex int) ([]runhistory.RunRecord, error) {
	if archiveIndex > 0 {
		return o.history.LoadArchive(jobID, archiveIndex)
	}
	return o.history.Load(jobID)
}

// ListArchives returns a job's archive segment indices, ascending.
func (o *Orchestrator) ListArchives(jobID string) ([]int, error) {
	return o.history.ListArchives(jobID)
}

// RefreshGlobalVariables re-evaluates every dynamic global variable against
// the real clock. A value is only replaced when evaluation succeeds, so a
// broken expression cannot clobber the last good value.
func (o *Orchestrator) RefreshGlobalVariables() error {
	return o.store.MutateGlobals(func(vars []jobstore.GlobalVariable) ([]jobstore.GlobalVariable, bool, error) {
		changed := false
		for i := range vars {
			v := &vars[i]
			if v.Type != jobstore.VariableDynamic || v.Expression == "" {
				continue
			}
			value := o.evaluator.Evaluate(v.Expression, nil)
			if expreval.IsErrorValue(value) {
				o.log.Warn("Global variable refresh failed",
					zap.String("name", v.Name), zap.String("error", value))
				continue
			}
			if v.Value != value {
				v.Value = value
				changed = true
			}
		}
		return vars, changed, nil
	})
}
