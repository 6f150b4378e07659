package sysreport

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const dailyLayout = "2006-01-02"

// Store keeps samples as one YAML document stream per day under dir.
// Appends go straight to today's file; full rewrites only happen when
// retention pruning removes something.
type Store struct {
	mu      sync.RWMutex
	dir     string
	samples []Sample
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.MkdirAll(s.dir, 0755)
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	files, err := s.dailyFilesLocked()
	if err != nil {
		return err
	}
	merged := make([]Sample, 0)
	for _, name := range files {
		f, err := os.Open(filepath.Join(s.dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		d := yaml.NewDecoder(f)
		for {
			var sm Sample
			if err := d.Decode(&sm); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				_ = f.Close()
				return err
			}
			merged = append(merged, sm)
		}
		_ = f.Close()
	}
	sort.Slice(merged, func(i, j int) bool {
		ti, tj := merged[i].Timestamp, merged[j].Timestamp
		if ti.Equal(tj) {
			return i < j
		}
		return ti.Before(tj)
	})
	s.samples = merged
	return nil
}

func (s *Store) Append(sample Sample, retentionDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	} else {
		sample.Timestamp = sample.Timestamp.UTC()
	}
	s.samples = append(s.samples, sample)

	if err := s.appendDailyLocked(sample); err != nil {
		return err
	}
	if s.pruneLocked(retentionDays) {
		return s.saveLocked()
	}
	return nil
}

func (s *Store) Prune(retentionDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pruneLocked(retentionDays) {
		return nil
	}
	return s.saveLocked()
}

func (s *Store) List(since time.Time) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if since.IsZero() {
		out := make([]Sample, len(s.samples))
		copy(out, s.samples)
		return out
	}
	out := make([]Sample, 0, len(s.samples))
	for _, sm := range s.samples {
		if !sm.Timestamp.Before(since) {
			out = append(out, sm)
		}
	}
	return out
}

func (s *Store) Latest() *Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return nil
	}
	v := s.samples[len(s.samples)-1]
	return &v
}

// pruneLocked drops samples past the retention window; 0 keeps everything.
func (s *Store) pruneLocked(retentionDays int) bool {
	if retentionDays <= 0 {
		return false
	}
	before := len(s.samples)
	cutoff := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	keep := s.samples[:0]
	for _, sm := range s.samples {
		if sm.Timestamp.After(cutoff) {
			keep = append(keep, sm)
		}
	}
	s.samples = keep
	return len(s.samples) != before
}

func (s *Store) appendDailyLocked(sample Sample) error {
	path := filepath.Join(s.dir, sample.Timestamp.Format(dailyLayout)+".yaml")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(sample); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	byDate := map[string][]Sample{}
	for _, sm := range s.samples {
		byDate[sm.Timestamp.UTC().Format(dailyLayout)] = append(byDate[sm.Timestamp.UTC().Format(dailyLayout)], sm)
	}
	for date, arr := range byDate {
		if err := writeStreamAtomic(filepath.Join(s.dir, date+".yaml"), arr); err != nil {
			return err
		}
	}
	existing, err := s.dailyFilesLocked()
	if err != nil {
		return err
	}
	for _, name := range existing {
		base := name[:len(name)-len(filepath.Ext(name))]
		if _, ok := byDate[base]; ok {
			continue
		}
		_ = os.Remove(filepath.Join(s.dir, name))
	}
	return nil
}

func (s *Store) dailyFilesLocked() ([]string, error) {
	ents, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	files := make([]string, 0, len(ents))
	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		if isDailyFileName(ent.Name()) {
			files = append(files, ent.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func isDailyFileName(name string) bool {
	ext := filepath.Ext(name)
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	base := name[:len(name)-len(ext)]
	_, err := time.Parse(dailyLayout, base)
	return err == nil
}

func writeStreamAtomic(path string, samples []Sample) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sysprov-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	enc := yaml.NewEncoder(tmp)
	for _, sm := range samples {
		if err := enc.Encode(sm); err != nil {
			_ = enc.Close()
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return err
		}
	}
	if err := enc.Close(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
