// Package store persists merge-unit descriptors in a folder-structured file store.
// The folder a descriptor resides in is its status; Move is the only operation
// that changes it.
package store

import (
	"context"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
)

// Entry is one descriptor file in a folder.
type Entry struct {
	Name    string
	Path    string // store-relative, "<folder>/<name>"
	Folder  mergeunit.Folder
	ModTime time.Time
}

// Store is the remote unit store.
type Store interface {
	// List returns the descriptors in folder. A missing folder lists as empty.
	List(ctx context.Context, folder mergeunit.Folder) ([]Entry, error)
	// Read returns the content of the descriptor at p.
	Read(ctx context.Context, p string) ([]byte, error)
	// Write creates or replaces a descriptor and returns its path.
	Write(ctx context.Context, folder mergeunit.Folder, name string, data []byte) (string, error)
	// Move relocates the descriptor at p into folder and returns the new path.
	Move(ctx context.Context, p string, to mergeunit.Folder) (string, error)
	// Close releases resources.
	Close() error
}

// Join builds the store-relative path of name in folder.
func Join(folder mergeunit.Folder, name string) string {
	return path.Join(string(folder), name)
}

// Split returns the folder and file name of a store-relative path.
func Split(p string) (mergeunit.Folder, string, error) {
	dir, name := path.Split(strings.TrimPrefix(path.Clean("/"+p), "/"))
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || name == "" || strings.Contains(dir, "/") {
		return "", "", errors.ValidationError("invalid store path").WithContext("path", p).Build()
	}
	return mergeunit.Folder(dir), name, nil
}

// validName rejects names that would escape their folder.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.ValidationError("invalid descriptor name").WithContext("name", name).Build()
	}
	return nil
}

func notFound(p string) error {
	return errors.NotFoundError("descriptor not found").WithContext("path", p).Build()
}

// IsNotFound reports whether err signals a missing descriptor.
func IsNotFound(err error) bool {
	return errors.HasCategory(err, errors.CategoryNotFound)
}

func storeError(op, p string, err error) error {
	return errors.StoreError(op+" failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("path", p).
		Build()
}
