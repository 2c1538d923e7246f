package gitvcs

import (
	"strings"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

// Location addresses a branch (and optionally a file on it) in a git remote.
//
// The textual form is "<remote>#<branch>" or "<remote>#<branch>:<path>".
// The branch defaults to "main" when omitted.
type Location struct {
	Remote string
	Branch string
	Path   string
}

const defaultBranch = "main"

// ParseLocation parses the textual location form.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.ValidationError("git location is empty").Build()
	}
	remote, ref, hasRef := strings.Cut(raw, "#")
	loc := Location{Remote: remote, Branch: defaultBranch}
	if hasRef {
		branch, path, _ := strings.Cut(ref, ":")
		if branch != "" {
			loc.Branch = branch
		}
		loc.Path = strings.Trim(path, "/")
	}
	if loc.Remote == "" {
		return Location{}, errors.ValidationError("git location has no remote").
			WithContext("location", raw).
			Build()
	}
	return loc, nil
}

// String renders the location in its textual form.
func (l Location) String() string {
	s := l.Remote + "#" + l.Branch
	if l.Path != "" {
		s += ":" + l.Path
	}
	return s
}

