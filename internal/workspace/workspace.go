package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
)

// Manager handles working-copy directories (both ephemeral and persistent).
type Manager struct {
	baseDir    string
	label      string
	path       string
	persistent bool
	keep       bool
}

// NewManager creates a manager for an ephemeral working copy labelled after the merge unit.
func NewManager(baseDir, label string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, label: sanitizeLabel(label)}
}

// NewPersistentManager wraps an existing developer working copy. Cleanup never removes it.
func NewPersistentManager(path string) *Manager {
	return &Manager{path: path, persistent: true}
}

// WithKeep retains ephemeral directories after Cleanup (debugging aid).
func (m *Manager) WithKeep(keep bool) *Manager { m.keep = keep; return m }

// Create creates the workspace directory.
// For ephemeral mode: a unique timestamped directory below baseDir.
// For persistent mode: verifies the directory exists.
func (m *Manager) Create() error {
	if m.persistent {
		info, err := os.Stat(m.path)
		if err != nil {
			return fmt.Errorf("persistent workspace %s: %w", m.path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("persistent workspace %s is not a directory", m.path)
		}
		slog.Debug("Using persistent workspace", logfields.Path(m.path))
		return nil
	}

	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base directory: %w", err)
	}
	pattern := fmt.Sprintf("wc-%s-%s-*", m.label, time.Now().Format("20060102-150405"))
	dir, err := os.MkdirTemp(m.baseDir, pattern)
	if err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.path = dir
	slog.Debug("Created workspace", logfields.Path(dir))
	return nil
}

// GetPath returns the path to the workspace directory.
func (m *Manager) GetPath() string {
	return m.path
}

// IsPersistent reports whether the workspace belongs to the developer.
func (m *Manager) IsPersistent() bool {
	return m.persistent
}

// Cleanup removes an ephemeral workspace directory. Persistent ones are left alone.
func (m *Manager) Cleanup() error {
	if m.path == "" {
		return nil
	}
	if m.persistent || m.keep {
		slog.Debug("Skipping workspace cleanup", logfields.Path(m.path), slog.Bool("persistent", m.persistent))
		return nil
	}
	if err := os.RemoveAll(m.path); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(m.path))
	m.path = ""
	return nil
}

func sanitizeLabel(label string) string {
	label = strings.TrimSuffix(filepath.Base(label), filepath.Ext(label))
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 || label == "." {
		return "unit"
	}
	return b.String()
}
