// Package config persists operator-tunable settings as a single JSON
// document.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tunonalves/sysprov/internal/sysreport"
)

// Provisioning holds the key-provisioning knobs exposed to operators.
type Provisioning struct {
	// KeyBits is the RSA modulus size for generated keys; 0 means the
	// built-in default.
	KeyBits int `json:"key_bits,omitempty"`
	// KeyTimeoutSeconds bounds a single key generation; 0 means the
	// built-in default.
	KeyTimeoutSeconds int `json:"key_timeout_seconds,omitempty"`
}

type Settings struct {
	UpdatedAt time.Time `json:"updated_at"`
	// MOTD is markdown shown to operators on login.
	MOTD          string           `json:"motd,omitempty"`
	DefaultGroups []string         `json:"default_groups,omitempty"`
	Provisioning  Provisioning     `json:"provisioning"`
	Report        sysreport.Config `json:"report_config"`
}

type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func DefaultPath() string {
	return filepath.Join("/var/lib/sysprov", "settings.json")
}

func (s *Store) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return s.saveLocked(Settings{
			UpdatedAt: time.Now().UTC(),
			Report:    sysreport.DefaultConfig(),
		})
	}
	return nil
}

func (s *Store) Get() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked()
}

func (s *Store) SetMOTD(md string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, _ := s.getLocked()
	cfg.MOTD = md
	cfg.UpdatedAt = time.Now().UTC()
	return s.saveLocked(cfg)
}

func (s *Store) SetDefaultGroups(groups []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, _ := s.getLocked()
	cfg.DefaultGroups = groups
	cfg.UpdatedAt = time.Now().UTC()
	return s.saveLocked(cfg)
}

func (s *Store) SetProvisioning(p Provisioning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, _ := s.getLocked()
	cfg.Provisioning = p
	cfg.UpdatedAt = time.Now().UTC()
	return s.saveLocked(cfg)
}

func (s *Store) SetReportConfig(rc sysreport.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, _ := s.getLocked()
	cfg.Report = rc.WithDefaults()
	cfg.UpdatedAt = time.Now().UTC()
	return s.saveLocked(cfg)
}

func (s *Store) getLocked() (Settings, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{Report: sysreport.DefaultConfig()}, nil
		}
		return Settings{}, err
	}
	if len(b) == 0 {
		return Settings{Report: sysreport.DefaultConfig()}, nil
	}
	var cfg Settings
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Settings{}, err
	}
	if cfg.Report.IsZero() {
		cfg.Report = sysreport.DefaultConfig()
	} else {
		cfg.Report = cfg.Report.WithDefaults()
	}
	return cfg, nil
}

func (s *Store) saveLocked(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
