package vcs

import (
	stderrors "errors"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

// ErrorKind classifies backend failures.
type ErrorKind string

const (
	ErrTransport ErrorKind = "transport"
	ErrNotFound  ErrorKind = "not_found"
	ErrAuth      ErrorKind = "auth"
	ErrConflict  ErrorKind = "conflict"
)

// Error is the client-specific error returned by every backend.
type Error struct {
	Op   string
	URL  string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies a backend failure. A nil err yields nil.
func Wrap(op, url string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	builder := errors.VCSError(op + " failed").
		WithCause(&Error{Op: op, URL: url, Kind: kind, Err: err}).
		WithContext("op", op).
		WithContext("url", url)
	switch kind {
	case ErrNotFound:
		builder.WithCategory(errors.CategoryNotFound)
	case ErrAuth:
		builder.WithCategory(errors.CategoryAuth)
	case ErrConflict:
		builder.WithCategory(errors.CategoryConflict)
	}
	return builder.Build()
}

// KindOf extracts the ErrorKind of a backend error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var vErr *Error
	if stderrors.As(err, &vErr) {
		return vErr.Kind
	}
	return ""
}

// IsNotFound reports whether err signals a missing path or revision.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrNotFound
}

// ClassifyMessage maps backend output to an ErrorKind using common svn/git phrasing.
func ClassifyMessage(msg string) ErrorKind {
	l := strings.ToLower(msg)
	switch {
	case strings.Contains(l, "e160013"), strings.Contains(l, "e170000"), strings.Contains(l, "e200009"),
		strings.Contains(l, "path not found"), strings.Contains(l, "does not exist"),
		strings.Contains(l, "not found"), strings.Contains(l, "unknown revision"):
		return ErrNotFound
	case strings.Contains(l, "e170001"), strings.Contains(l, "e215004"),
		strings.Contains(l, "authentication failed"), strings.Contains(l, "authorization failed"),
		strings.Contains(l, "could not read username"):
		return ErrAuth
	case strings.Contains(l, "conflict"):
		return ErrConflict
	default:
		return ErrTransport
	}
}

// RequireLocation rejects empty path or URL arguments as a programming error.
func RequireLocation(op, path, url string) error {
	if strings.TrimSpace(path) == "" {
		return errors.ContractError(op + ": path must not be empty").Build()
	}
	if strings.TrimSpace(url) == "" {
		return errors.ContractError(op + ": url must not be empty").Build()
	}
	return nil
}

// RequirePaths rejects an empty path list or empty entries as a programming error.
func RequirePaths(op string, paths []string) error {
	if len(paths) == 0 {
		return errors.ContractError(op + ": paths must not be empty").Build()
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			return errors.ContractError(op + ": path must not be empty").Build()
		}
	}
	return nil
}
