// Package journal records provisioning runs so operators can answer
// "who got a key, when, and from which request".
package journal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("provisioning run not found")

// TargetKind says what a run was asked to provision.
type TargetKind string

const (
	TargetUser  TargetKind = "user"
	TargetGroup TargetKind = "group"
)

type Target struct {
	Kind TargetKind `json:"kind"`
	Name string     `json:"name"`
}

// Entry is the journaled form of one account's outcome within a run.
type Entry struct {
	Login          string `json:"login"`
	Generated      bool   `json:"generated"`
	KeyAdded       bool   `json:"key_added"`
	AuthorizedKeys string `json:"authorized_keys,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Actor     string    `json:"actor,omitempty"`
	Target    Target    `json:"target"`
	Entries   []Entry   `json:"entries"`
}

func (r Run) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Error != "" {
			n++
		}
	}
	return n
}

type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return s.saveLocked(state{})
	}
	return nil
}

// Append records a run, newest first, and returns it with its assigned ID.
func (s *Store) Append(run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	} else {
		run.StartedAt = run.StartedAt.UTC()
	}

	st, err := s.loadLocked()
	if err != nil {
		return Run{}, err
	}
	st.Runs = append([]Run{run}, st.Runs...)
	if err := s.saveLocked(st); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) List() ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return st.Runs, nil
}

func (s *Store) Get(id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.loadLocked()
	if err != nil {
		return Run{}, err
	}
	for _, r := range st.Runs {
		if r.ID == id {
			return r, nil
		}
	}
	return Run{}, ErrRunNotFound
}

// Prune drops runs older than retentionDays; 0 keeps everything.
func (s *Store) Prune(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.loadLocked()
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	keep := st.Runs[:0]
	for _, r := range st.Runs {
		if r.StartedAt.After(cutoff) {
			keep = append(keep, r)
		}
	}
	if len(keep) == len(st.Runs) {
		return nil
	}
	st.Runs = keep
	return s.saveLocked(st)
}

type state struct {
	Runs []Run `json:"runs"`
}

func (s *Store) loadLocked() (state, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state{}, nil
		}
		return state{}, err
	}
	if len(b) == 0 {
		return state{}, nil
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return state{}, err
	}
	return st, nil
}

func (s *Store) saveLocked(st state) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	return nil
}
