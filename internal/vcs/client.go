package vcs

import (
	"context"
	"time"
)

// Kind tags the version-control system a merge unit originates from.
type Kind string

const (
	KindSVN Kind = "svn"
	KindGit Kind = "git"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSVN || k == KindGit
}

// LogEntry is one commit returned by Client.Log.
type LogEntry struct {
	Revision int64     `json:"revision"`
	ID       string    `json:"id,omitempty"` // commit hash for git backends
	Author   string    `json:"author"`
	Date     time.Time `json:"date"`
	Message  string    `json:"message"`
	Paths    []string  `json:"paths,omitempty"`
}

// Client is the set of operations the orchestration core needs from a backend.
//
// Revisions are numeric. For Subversion they are repository revisions; for Git
// they are positions in the first-parent history of the addressed branch. The
// revision passed to Merge is backend-specific (a number for svn, a commit id for git).
type Client interface {
	// Cat returns the content of the file at url.
	Cat(ctx context.Context, url string) ([]byte, error)
	// Diff returns a unified diff of url between two revisions.
	Diff(ctx context.Context, url string, from, to int64) (string, error)
	// Log returns entries in [from, to], restricted to author when non-empty.
	Log(ctx context.Context, url string, from, to int64, author string) ([]LogEntry, error)
	// ListDirectories lists the sub-branches (child directories) below url.
	ListDirectories(ctx context.Context, url string) ([]string, error)
	// ShowRevision returns the current head revision of url.
	ShowRevision(ctx context.Context, url string) (int64, error)
	// CheckoutEmpty creates a working copy of url at path without any files.
	CheckoutEmpty(ctx context.Context, path, url string) error
	// UpdateEmpty brings the given files of a sparse working copy in, returning their revisions.
	UpdateEmpty(ctx context.Context, paths []string) ([]int64, error)
	// Merge applies revision from url into the working copy at path.
	Merge(ctx context.Context, path, url, revision string, recursive, recordOnly bool) error
	// Commit commits the working copy at path and returns the new revision.
	Commit(ctx context.Context, path, message string) (int64, error)
	// HasModifications reports local changes in the working copy at path.
	HasModifications(ctx context.Context, path string) (bool, error)
	// HasConflicts reports unresolved conflicts in the working copy at path.
	HasConflicts(ctx context.Context, path string) (bool, error)
	// URLOf resolves a working copy path to the repository URL it was checked out from.
	URLOf(ctx context.Context, path string) (string, error)
	// Close releases backend resources.
	Close() error
}
