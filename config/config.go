// Package config loads YAML-backed Manager configuration, mirroring the
// teacher's accounts.yml load/save pattern.
package config

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LockerDefaults configures which locker strategy a folder backend uses
// when opened without an explicit override.
type LockerDefaults struct {
	Strategy     string `yaml:"strategy"`      // "dotlock", "nfs", "fcntl", "flock", "mutt", "multi"
	TimeoutSecs  int    `yaml:"timeout_seconds"`
	StaleSecs    int    `yaml:"stale_seconds"`
}

// FolderTypeDefault pins the default open options for one registered
// backend type name.
type FolderTypeDefault struct {
	Type       string `yaml:"type"`
	AccessMode string `yaml:"access_mode"`
}

// Config is the Manager's on-disk configuration.
type Config struct {
	MailDir      string               `yaml:"mail_dir"`
	Locker       LockerDefaults       `yaml:"locker"`
	FolderTypes  []FolderTypeDefault  `yaml:"folder_types"`
	BlobStoreDir string               `yaml:"blob_store_dir"`
}

// Default returns a Config with the $MAIL / $HOME/Mail environment
// fallback spec.md leaves unstated, matching Mail::Box's own convention.
func Default() Config {
	return Config{
		MailDir: DefaultMailDir(),
		Locker:  LockerDefaults{Strategy: "dotlock", TimeoutSecs: 10, StaleSecs: 600},
	}
}

// DefaultMailDir resolves $MAIL, then $HOME/Mail, then "./Mail".
func DefaultMailDir() string {
	if m := os.Getenv("MAIL"); m != "" {
		return m
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "Mail")
	}
	return "Mail"
}

// Load reads and parses a YAML config file at path, falling back to
// Default() if the file doesn't exist.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, eris.Wrapf(err, "config: read %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, eris.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "config: create directory for %s", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "config: marshal")
	}
	return os.WriteFile(path, data, 0o644)
}
