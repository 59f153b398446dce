package runhistory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultCapacity is the live-segment size used when none is configured.
const DefaultCapacity = 50

// Store persists run history under a directory, one log identity per job.
//
// Directory layout:
//
//	<root>/run_history_<job_id>.json
//	<root>/run_history_<job_id>_archive_<n>.json
//
// All operations on one job's log serialize on a per-job lock so append,
// replace, and rotation stay atomically consistent.
type Store struct {
	root     string
	capacity int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(root string, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		root:     strings.TrimSpace(root),
		capacity: capacity,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Capacity returns the live-segment capacity.
func (s *Store) Capacity() int { return s.capacity }

func (s *Store) jobLock(jobID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[jobID] = l
	}
	return l
}

func (s *Store) livePath(jobID string) string {
	return filepath.Join(s.root, fmt.Sprintf("run_history_%s.json", jobID))
}

func (s *Store) archivePath(jobID string, index int) string {
	return filepath.Join(s.root, fmt.Sprintf("run_history_%s_archive_%d.json", jobID, index))
}

func readSegment(path string) ([]RunRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, nil
	}
	var records []RunRecord
	if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// writeSegment persists a segment atomically. A failed write is retried
// once: dropping a terminal record silently would break the "every run
// produces a terminal record" invariant.
func writeSegment(path string, records []RunRecord) error {
	err := writeSegmentOnce(path, records)
	if err != nil {
		err = writeSegmentOnce(path, records)
	}
	return err
}

func writeSegmentOnce(path string, records []RunRecord) error {
	if records == nil {
		records = []RunRecord{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run history: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
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
		return fmt.Errorf("rename run history: %w", err)
	}
	return nil
}

// Upsert appends record to the job's live segment, or replaces the existing
// record with the same run id in place. Rotation runs after every write so
// the live segment never holds more than the configured capacity.
func (s *Store) Upsert(jobID string, record RunRecord) error {
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if record.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	l := s.jobLock(jobID)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	live, err := readSegment(s.livePath(jobID))
	if err != nil {
		return err
	}

	replaced := false
	for i := range live {
		if live[i].RunID == record.RunID {
			live[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		live = append(live, record)
	}

	if err := writeSegment(s.livePath(jobID), live); err != nil {
		return err
	}
	return s.rotateLocked(jobID, live)
}

// rotateLocked moves overflow out of the live segment, oldest first. The
// most recent archive segment is filled to capacity before a new one is
// created at the next unused index.
func (s *Store) rotateLocked(jobID string, live []RunRecord) error {
	if len(live) <= s.capacity {
		return nil
	}
	overflow := live[:len(live)-s.capacity]
	remaining := append([]RunRecord(nil), live[len(live)-s.capacity:]...)

	indices, err := s.archiveIndicesLocked(jobID)
	if err != nil {
		return err
	}
	next := 1
	if n := len(indices); n > 0 {
		last := indices[n-1]
		seg, err := readSegment(s.archivePath(jobID, last))
		if err != nil {
			return err
		}
		if len(seg) < s.capacity {
			take := s.capacity - len(seg)
			if take > len(overflow) {
				take = len(overflow)
			}
			seg = append(seg, overflow[:take]...)
			overflow = overflow[take:]
			if err := writeSegment(s.archivePath(jobID, last), seg); err != nil {
				return err
			}
		}
		next = last + 1
	}

	for len(overflow) > 0 {
		take := s.capacity
		if take > len(overflow) {
			take = len(overflow)
		}
		if err := writeSegment(s.archivePath(jobID, next), overflow[:take]); err != nil {
			return err
		}
		overflow = overflow[take:]
		next++
	}

	return writeSegment(s.livePath(jobID), remaining)
}

// Load returns the job's live segment, oldest first.
func (s *Store) Load(jobID string) ([]RunRecord, error) {
	l := s.jobLock(jobID)
	l.Lock()
	defer l.Unlock()
	return readSegment(s.livePath(jobID))
}

// LoadArchive returns one archive segment by index.
func (s *Store) LoadArchive(jobID string, index int) ([]RunRecord, error) {
	if index < 1 {
		return nil, fmt.Errorf("archive index must be >= 1, got %d", index)
	}
	l := s.jobLock(jobID)
	l.Lock()
	defer l.Unlock()
	return readSegment(s.archivePath(jobID, index))
}

// ListArchives returns the job's archive indices in ascending order.
func (s *Store) ListArchives(jobID string) ([]int, error) {
	l := s.jobLock(jobID)
	l.Lock()
	defer l.Unlock()
	return s.archiveIndicesLocked(jobID)
}

func (s *Store) archiveIndicesLocked(jobID string) ([]int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history dir: %w", err)
	}
	re := regexp.MustCompile("^" + regexp.QuoteMeta(fmt.Sprintf("run_history_%s_archive_", jobID)) + `(\d+)\.json$`)
	var indices []int
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices, nil
}
