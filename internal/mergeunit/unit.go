package mergeunit

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// Capability is a bitset of optional unit behaviors.
type Capability uint8

const (
	// CapRenameMapping marks units whose affected files may live under a different
	// path on the target branch.
	CapRenameMapping Capability = 1 << iota
)

// Has reports whether all bits of o are set in c.
func (c Capability) Has(o Capability) bool { return c&o == o }

func (c Capability) String() string {
	if c.Has(CapRenameMapping) {
		return "rename_mapping"
	}
	return "none"
}

// SVNInfo carries the Subversion-specific parts of a unit.
type SVNInfo struct {
	SourceURL string
	TargetURL string
	Revisions []int64
	Message   string
}

// GitInfo carries the Git-specific parts of a unit.
type GitInfo struct {
	CommitID  string
	SourceURL string
	TargetURL string
}

// ScriptKind is the display treatment of a merge-script line.
type ScriptKind int

const (
	ScriptComment ScriptKind = iota
	ScriptCommentComplete
	ScriptInfo
	ScriptWarning
)

var scriptPrefixes = map[ScriptKind]string{
	ScriptWarning:         "!",
	ScriptInfo:            ">",
	ScriptCommentComplete: "##",
	ScriptComment:         "#",
}

func (k ScriptKind) String() string {
	switch k {
	case ScriptWarning:
		return "warning"
	case ScriptInfo:
		return "info"
	case ScriptCommentComplete:
		return "comment-complete"
	default:
		return "comment"
	}
}

// ScriptLine is one rendering hint of the merge script.
type ScriptLine struct {
	Kind ScriptKind
	Text string
}

// Header is a descriptor key=value pair this package does not interpret.
type Header struct {
	Key   string
	Value string
}

// MergeUnit is the parsed form of one descriptor file.
//
// Status and RemotePath change with every store move; everything else is fixed
// when the descriptor is parsed, except BranchTarget which may be re-targeted.
// A fresh MergeUnit is built on every store refresh, which bounds the lifetime
// of the memoized rename mapping.
type MergeUnit struct {
	Status     Status
	FileName   string
	RemotePath string

	Host         string
	Repository   string
	Date         time.Time
	BranchSource string
	BranchTarget string
	// RevisionInfo is a human-readable revision range.
	RevisionInfo string

	SourceFiles []string
	TargetFiles []string

	Kind         vcs.Kind
	Capabilities Capability
	SVN          *SVNInfo
	Git          *GitInfo

	Script []ScriptLine
	Extra  []Header

	renameOnce sync.Once
	renames    RenameMapping
	renameErr  error
}

// Key identifies a unit instance across refreshes for memoization purposes.
func (u *MergeUnit) Key() string {
	return u.FileName + "@" + u.Date.UTC().Format(time.RFC3339Nano)
}

// SourceURL returns the source branch URL of either variant.
func (u *MergeUnit) SourceURL() string {
	switch {
	case u.SVN != nil:
		return u.SVN.SourceURL
	case u.Git != nil:
		return u.Git.SourceURL
	}
	return ""
}

// TargetURL returns the target branch URL of either variant.
func (u *MergeUnit) TargetURL() string {
	switch {
	case u.SVN != nil:
		return u.SVN.TargetURL
	case u.Git != nil:
		return u.Git.TargetURL
	}
	return ""
}

// TargetFileURL addresses a file below the target branch.
func (u *MergeUnit) TargetFileURL(path string) string {
	path = strings.TrimPrefix(path, "/")
	if u.Kind == vcs.KindGit {
		return u.TargetURL() + ":" + path
	}
	return strings.TrimSuffix(u.TargetURL(), "/") + "/" + path
}

// MergeRevisions returns the backend revisions to apply, in order.
func (u *MergeUnit) MergeRevisions() []string {
	switch {
	case u.SVN != nil:
		out := make([]string, len(u.SVN.Revisions))
		for i, r := range u.SVN.Revisions {
			out[i] = strconv.FormatInt(r, 10)
		}
		return out
	case u.Git != nil:
		return []string{u.Git.CommitID}
	}
	return nil
}

// CommitMessage returns the message for committing the merged change.
func (u *MergeUnit) CommitMessage() string {
	if u.SVN != nil && u.SVN.Message != "" {
		return u.SVN.Message
	}
	if u.Git != nil {
		return fmt.Sprintf("Merge %s from %s into %s", shortID(u.Git.CommitID), u.BranchSource, u.BranchTarget)
	}
	return fmt.Sprintf("Merge %s from %s into %s", u.RevisionInfo, u.BranchSource, u.BranchTarget)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func (u *MergeUnit) String() string {
	return fmt.Sprintf("%s [%s] %s/%s %s -> %s", u.FileName, u.Status, u.Host, u.Repository, u.BranchSource, u.BranchTarget)
}

// Compare orders units by (host, repository, date). File name and status do
// not take part, so two units can compare equal while Equal reports false.
func Compare(a, b *MergeUnit) int {
	if c := cmp.Compare(a.Host, b.Host); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Repository, b.Repository); c != 0 {
		return c
	}
	return a.Date.Compare(b.Date)
}

// Equal reports whether two units describe the same descriptor in the same state.
func Equal(a, b *MergeUnit) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.FileName == b.FileName &&
		a.Status == b.Status &&
		a.Host == b.Host &&
		a.Repository == b.Repository &&
		a.Date.Equal(b.Date) &&
		a.BranchSource == b.BranchSource &&
		a.BranchTarget == b.BranchTarget &&
		a.RevisionInfo == b.RevisionInfo &&
		a.Kind == b.Kind &&
		slices.Equal(a.SourceFiles, b.SourceFiles) &&
		slices.Equal(a.TargetFiles, b.TargetFiles)
}

// Sort orders units ascending by Compare; ties keep their relative order.
func Sort(units []*MergeUnit) {
	slices.SortStableFunc(units, Compare)
}

// OldestTodo returns the minimum TODO unit by Compare, or nil when there is none.
func OldestTodo(units []*MergeUnit) *MergeUnit {
	var oldest *MergeUnit
	for _, u := range units {
		if u.Status != StatusTodo {
			continue
		}
		if oldest == nil || Compare(u, oldest) < 0 {
			oldest = u
		}
	}
	return oldest
}

// Filter returns the units with the given status.
func Filter(units []*MergeUnit, status Status) []*MergeUnit {
	var out []*MergeUnit
	for _, u := range units {
		if u.Status == status {
			out = append(out, u)
		}
	}
	return out
}
