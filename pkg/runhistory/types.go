// Package runhistory persists per-job run records in a size-bounded live
// segment with overflow rotated into sequentially numbered archive segments.
//
// Reading archive segments 1..N in order followed by the live segment
// reproduces the complete history in append order with no gaps or
// duplicates. Records are keyed by run id: writing an id that already
// exists in the live segment replaces that record in place, which gives the
// orchestrator its idempotent "start, then finalize" update.
package runhistory

import "time"

// Status is the lifecycle state of a run record.
//
// NOTE: These values are persisted and are part of the stable on-disk
// contract. "executing" marks an in-progress placeholder that is replaced
// by a terminal record under the same run id.
type Status string

const (
	StatusExecuting Status = "executing"
	StatusSuccess   Status = "Success"
	StatusFailed    Status = "Failed"
)

// TriggerType records how a run was initiated.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
)

// DateRun is the result of executing a job for one (possibly simulated)
// date. A time-travel run produces one DateRun per date in its range; a
// plain run produces exactly one for the real current date.
type DateRun struct {
	Success      bool                `json:"success"`
	Status       Status              `json:"status"`
	Message      string              `json:"message"`
	RunID        string              `json:"run_id"`
	Date         string              `json:"date"`
	FileMaskUsed string              `json:"file_mask_used"`
	SourceFiles  []string            `json:"source_files"`
	CopiedFiles  []string            `json:"copied_files"`
	FieldErrors  map[string][]string `json:"field_errors,omitempty"`
}

// RunRecord is one entry in a job's run history.
type RunRecord struct {
	RunID        string      `json:"run_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Status       Status      `json:"status"`
	Message      string      `json:"message"`
	FileMaskUsed string      `json:"file_mask_used"`
	SourceFiles  []string    `json:"source_files"`
	CopiedFiles  []string    `json:"copied_files"`
	TriggerType  TriggerType `json:"trigger_type"`
	SchedulerID  string      `json:"scheduler_id,omitempty"`
	FromDate     string      `json:"from_date,omitempty"`
	ToDate       string      `json:"to_date,omitempty"`
	DateRuns     []DateRun   `json:"date_runs,omitempty"`
}
