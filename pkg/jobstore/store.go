package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when a lookup by id finds no record.
var ErrNotFound = errors.New("record not found")

// Store reads and writes the job, global-variable, and data-source
// collections under a data directory.
//
// Directory layout:
//
//	<root>/jobs.json
//	<root>/global_variables.json
//	<root>/data_sources.json
type Store struct {
	root string

	jobsMu    sync.Mutex
	globalsMu sync.Mutex
	sourcesMu sync.Mutex
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) ensureRoot() error {
	if s.root == "" {
		return fmt.Errorf("job store root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// readList loads a JSON array file; a missing file is an empty collection.
func readList(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeList persists a JSON array file atomically via temp-file rename.
func writeList(path string, in any) error {
	b, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) jobsPath() string    { return filepath.Join(s.root, "jobs.json") }
func (s *Store) globalsPath() string { return filepath.Join(s.root, "global_variables.json") }
func (s *Store) sourcesPath() string { return filepath.Join(s.root, "data_sources.json") }

// LoadJobs returns the full job collection.
func (s *Store) LoadJobs() ([]Job, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	var jobs []Job
	if err := readList(s.jobsPath(), &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// SaveJobs replaces the full job collection.
func (s *Store) SaveJobs(jobs []Job) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if err := s.ensureRoot(); err != nil {
		return err
	}
	return writeList(s.jobsPath(), jobs)
}

// MutateJobs applies fn to the current collection under the collection lock,
// persisting the result when changed is true. The lock spans the whole
// read-modify-write cycle so concurrent mutations cannot interleave.
func (s *Store) MutateJobs(fn func(jobs []Job) (out []Job, changed bool, err error)) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	var jobs []Job
	if err := readList(s.jobsPath(), &jobs); err != nil {
		return err
	}
	out, changed, err := fn(jobs)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}
	return writeList(s.jobsPath(), out)
}

// JobByID returns the job with the given id, or ErrNotFound.
func (s *Store) JobByID(id string) (*Job, error) {
	jobs, err := s.LoadJobs()
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i], nil
		}
	}
	return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
}

// LoadGlobals returns the full global-variable collection.
func (s *Store) LoadGlobals() ([]GlobalVariable, error) {
	s.globalsMu.Lock()
	defer s.globalsMu.Unlock()
	var vars []GlobalVariable
	if err := readList(s.globalsPath(), &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// SaveGlobals replaces the full global-variable collection.
func (s *Store) SaveGlobals(vars []GlobalVariable) error {
	if err := ValidateGlobals(vars); err != nil {
		return err
	}
	s.globalsMu.Lock()
	defer s.globalsMu.Unlock()
	if err := s.ensureRoot(); err != nil {
		return err
	}
	return writeList(s.globalsPath(), vars)
}

// MutateGlobals is the global-variable counterpart of MutateJobs.
func (s *Store) MutateGlobals(fn func(vars []GlobalVariable) (out []GlobalVariable, changed bool, err error)) error {
	s.globalsMu.Lock()
	defer s.globalsMu.Unlock()
	var vars []GlobalVariable
	if err := readList(s.globalsPath(), &vars); err != nil {
		return err
	}
	out, changed, err := fn(vars)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}
	return writeList(s.globalsPath(), out)
}

// LoadDataSources returns the full data-source collection.
func (s *Store) LoadDataSources() ([]DataSource, error) {
	s.sourcesMu.Lock()
	defer s.sourcesMu.Unlock()
	var srcs []DataSource
	if err := readList(s.sourcesPath(), &srcs); err != nil {
		return nil, err
	}
	return srcs, nil
}

// SaveDataSources replaces the full data-source collection.
func (s *Store) SaveDataSources(srcs []DataSource) error {
	s.sourcesMu.Lock()
	defer s.sourcesMu.Unlock()
	if err := s.ensureRoot(); err != nil {
		return err
	}
	return writeList(s.sourcesPath(), srcs)
}

// DataSourceByID returns the data source with the given id, or ErrNotFound.
func (s *Store) DataSourceByID(id string) (*DataSource, error) {
	srcs, err := s.LoadDataSources()
	if err != nil {
		return nil, err
	}
	for i := range srcs {
		if srcs[i].ID == id {
			return &srcs[i], nil
		}
	}
	return nil, fmt.Errorf("data source %s: %w", id, ErrNotFound)
}
