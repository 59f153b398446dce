package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrRuleNotFound is returned when a rule id has no record.
var ErrRuleNotFound = errors.New("schedule rule not found")

// Store persists schedule rules as one JSON collection file.
// Mutations hold the store lock across the whole read-modify-write cycle.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore persists rules at <root>/schedules.json.
func NewStore(root string) *Store {
	return &Store{path: filepath.Join(strings.TrimSpace(root), "schedules.json")}
}

func (s *Store) readLocked() ([]Rule, error) {
	b, err := os.ReadFile(s.path)
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
	var rules []Rule
	if err := json.Unmarshal([]byte(trimmed), &rules); err != nil {
		return nil, fmt.Errorf("parse schedules.json: %w", err)
	}
	return rules, nil
}

func (s *Store) writeLocked(rules []Rule) error {
	if rules == nil {
		rules = []Rule{}
	}
	b, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schedules: %w", err)
	}
	b = append(b, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create schedules dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "schedules.json.tmp.*")
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
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename schedules.json: %w", err)
	}
	return nil
}

// LoadRules returns all persisted rules.
func (s *Store) LoadRules() ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// SaveRules replaces the whole collection. Rules are validated first.
func (s *Store) SaveRules(rules []Rule) error {
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(rules)
}

// SetPaused toggles one rule's paused flag.
func (s *Store) SetPaused(ruleID string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules, err := s.readLocked()
	if err != nil {
		return err
	}
	for i := range rules {
		if rules[i].ID == ruleID {
			rules[i].Paused = paused
			return s.writeLocked(rules)
		}
	}
	return fmt.Errorf("rule %s: %w", ruleID, ErrRuleNotFound)
}
