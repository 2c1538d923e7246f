package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
)

// FSStore keeps descriptors in a directory tree:
//
//	<root>/
//	  todo/
//	  done/
//	  ignored/
//	  canceled/
//	  manual/
//
// Moves are os.Rename calls and therefore atomic within one filesystem.
type FSStore struct {
	root string
	mu   sync.RWMutex
}

// NewFSStore opens root, creating the five folders when missing.
func NewFSStore(root string) (*FSStore, error) {
	for _, folder := range mergeunit.Folders() {
		dir := filepath.Join(root, string(folder))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &FSStore{root: root}, nil
}

// Root returns the directory holding the folders.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) abs(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

func (s *FSStore) List(ctx context.Context, folder mergeunit.Folder) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirEntries, err := os.ReadDir(filepath.Join(s.root, string(folder)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storeError("list", string(folder), err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    Join(folder, de.Name()),
			Folder:  folder,
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *FSStore) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := Split(p); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// #nosec G304 -- path validated by Split and rooted at the store root
	data, err := os.ReadFile(s.abs(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(p)
		}
		return nil, storeError("read", p, err)
	}
	return data, nil
}

func (s *FSStore) Write(ctx context.Context, folder mergeunit.Folder, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Join(folder, name)
	target := s.abs(p)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", storeError("write", p, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+name+".tmp-*")
	if err != nil {
		return "", storeError("write", p, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", storeError("write", p, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", storeError("write", p, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", storeError("write", p, err)
	}
	return p, nil
}

func (s *FSStore) Move(ctx context.Context, p string, to mergeunit.Folder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	from, name, err := Split(p)
	if err != nil {
		return "", err
	}
	if from == to {
		return p, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dest := Join(to, name)
	if err := os.MkdirAll(filepath.Dir(s.abs(dest)), 0o750); err != nil {
		return "", storeError("move", p, err)
	}
	if err := os.Rename(s.abs(p), s.abs(dest)); err != nil {
		if os.IsNotExist(err) {
			return "", notFound(p)
		}
		return "", storeError("move", p, err)
	}
	return dest, nil
}

func (s *FSStore) Close() error { return nil }
