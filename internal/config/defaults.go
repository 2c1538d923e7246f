package config

import (
	"crypto/sha1" // #nosec G505 -- used for stable file names, not security
	"encoding/hex"
	"path/filepath"
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// StoreDefaultApplier handles store defaults.
type StoreDefaultApplier struct{}

func (StoreDefaultApplier) Domain() string { return "store" }

func (StoreDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreTypeFS
	} else if t := storeTypes.Normalize(string(cfg.Store.Type)); t != "" {
		cfg.Store.Type = t
	}
	if m := NormalizeRetryBackoff(string(cfg.Store.Retry.Mode)); m != "" {
		cfg.Store.Retry.Mode = m
	} else {
		cfg.Store.Retry.Mode = RetryBackoffLinear
	}
	if cfg.Store.Retry.Initial <= 0 {
		cfg.Store.Retry.Initial = time.Second
	}
	if cfg.Store.Retry.Max <= 0 {
		cfg.Store.Retry.Max = 10 * time.Second
	}
	if cfg.Store.Retry.MaxRetries < 0 {
		cfg.Store.Retry.MaxRetries = 0
	}
	return nil
}

// VCSDefaultApplier handles backend binary defaults.
type VCSDefaultApplier struct{}

func (VCSDefaultApplier) Domain() string { return "vcs" }

func (VCSDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.VCS.SVNBinary == "" {
		cfg.VCS.SVNBinary = "svn"
	}
	if cfg.VCS.GitBinary == "" {
		cfg.VCS.GitBinary = "git"
	}
	return nil
}

// RuntimeDefaultApplier handles refresh, workspace, versions and history defaults.
type RuntimeDefaultApplier struct{}

func (RuntimeDefaultApplier) Domain() string { return "runtime" }

func (RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.DataDir == "" {
		cfg.DataDir = "./mergekeeper-data"
	}
	if cfg.Refresh.Interval <= 0 {
		cfg.Refresh.Interval = 5 * time.Minute
	}
	if cfg.Versions.DescriptorName == "" {
		cfg.Versions.DescriptorName = "pom.xml"
	}
	if len(cfg.Versions.CandidatePaths) == 0 {
		cfg.Versions.CandidatePaths = []string{"pom.xml", "trunk/pom.xml"}
	}
	if cfg.Versions.CacheSize <= 0 {
		cfg.Versions.CacheSize = 20
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.DataDir, "history.db")
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "mergekeeper.units"
	}
	for i := range cfg.LinkedArtifacts {
		if cfg.LinkedArtifacts[i].StateFile == "" {
			cfg.LinkedArtifacts[i].StateFile = filepath.Join(cfg.DataDir, "linked", stateFileName(cfg.LinkedArtifacts[i]))
		}
	}
	return nil
}

func stateFileName(a LinkedArtifact) string {
	sum := sha1.Sum([]byte(a.URL + "|" + a.User)) // #nosec G401
	return hex.EncodeToString(sum[:8]) + ".json"
}

// defaultAppliers returns the ordered appliers.
func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{StoreDefaultApplier{}, VCSDefaultApplier{}, RuntimeDefaultApplier{}}
}

// ApplyDefaults runs every domain applier against cfg.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
