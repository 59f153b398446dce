// Package jobstore persists copy-job definitions, global variables, and
// data-source registrations as whole-collection JSON files.
//
// The interface is deliberately load-all / replace-all: every operation
// re-reads persisted state and writes back immediately, trading throughput
// for crash-safety. Mutating operations hold a per-collection lock across
// the whole read-modify-write cycle.
package jobstore

import "fmt"

// VariableType distinguishes fixed values from evaluated expressions.
type VariableType string

const (
	VariableStatic  VariableType = "static"
	VariableDynamic VariableType = "dynamic"
)

// LocalVariable is a job-scoped variable referenced as [#Name] in templates.
type LocalVariable struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       VariableType `json:"type"`
	Value      string       `json:"value"`
	Expression string       `json:"expression,omitempty"`
}

// GlobalVariable is shared across jobs and referenced as [$Name].
type GlobalVariable struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       VariableType `json:"type"`
	Value      string       `json:"value"`
	Expression string       `json:"expression,omitempty"`
}

// TimeTravel configures a backdated batch replay over an inclusive date
// range. Dates are "2006-01-02".
type TimeTravel struct {
	Enabled  bool   `json:"enabled"`
	FromDate string `json:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty"`
}

// Job is a persisted copy-job definition.
//
// NOTE: JSON field names are part of the stable on-disk contract.
type Job struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	SourceType         string          `json:"source_type"` // local | smb | cloud
	TargetType         string          `json:"target_type"`
	Source             string          `json:"source"`
	Target             string          `json:"target"`
	SourceFileMask     string          `json:"source_file_mask,omitempty"`
	TargetFileMask     string          `json:"target_file_mask,omitempty"`
	SourceContainer    string          `json:"source_container,omitempty"`
	TargetContainer    string          `json:"target_container,omitempty"`
	SourceDataSourceID string          `json:"source_data_source_id,omitempty"`
	TargetDataSourceID string          `json:"target_data_source_id,omitempty"`
	LocalVariables     []LocalVariable `json:"local_variables,omitempty"`
	TimeTravel         TimeTravel      `json:"time_travel"`
}

// Clone returns a deep copy. Run orchestration substitutes placeholders on
// a clone so the persisted definition is never mutated in place.
func (j *Job) Clone() *Job {
	c := *j
	c.LocalVariables = make([]LocalVariable, len(j.LocalVariables))
	copy(c.LocalVariables, j.LocalVariables)
	return &c
}

// TemplateField names one placeholder-bearing job field together with a
// pointer into the owning struct so it can be resolved in place.
type TemplateField struct {
	Name string
	Ref  *string
}

// TemplateFields returns the fixed set of fields that are validated and
// resolved before a copy, in a stable order.
func (j *Job) TemplateFields() []TemplateField {
	return []TemplateField{
		{Name: "source", Ref: &j.Source},
		{Name: "target", Ref: &j.Target},
		{Name: "source_file_mask", Ref: &j.SourceFileMask},
		{Name: "target_file_mask", Ref: &j.TargetFileMask},
		{Name: "source_container", Ref: &j.SourceContainer},
		{Name: "target_container", Ref: &j.TargetContainer},
	}
}

// Validate enforces unique variable names within the job.
func (j *Job) Validate() error {
	seen := make(map[string]struct{}, len(j.LocalVariables))
	for _, v := range j.LocalVariables {
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("job %s: duplicate local variable %q", j.ID, v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}

// DataSourceConfig holds connection parameters for a cloud data source.
// Secrets are stored by the external credential layer; this package treats
// them as opaque strings.
type DataSourceConfig struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `json:"force_path_style,omitempty"`
}

// DataSource is a registered cloud storage account.
type DataSource struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Kind   string           `json:"kind"` // currently "s3"
	Config DataSourceConfig `json:"config"`
}

// ValidateGlobals enforces unique names across the global scope.
func ValidateGlobals(vars []GlobalVariable) error {
	seen := make(map[string]struct{}, len(vars))
	for _, v := range vars {
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("duplicate global variable %q", v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}
