// Package vcstest provides an in-memory vcs.Client for tests.
package vcstest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// MergeCall records one Merge invocation.
type MergeCall struct {
	Path       string
	URL        string
	Revision   string
	Recursive  bool
	RecordOnly bool
}

// CommitCall records one Commit invocation.
type CommitCall struct {
	Path     string
	Message  string
	Revision int64
}

// Fake is a scriptable vcs.Client. The zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	files        map[string][]byte
	heads        map[string]int64
	logs         map[string][]vcs.LogEntry
	dirs         map[string][]string
	workingCopy  map[string]string
	modified     map[string]bool
	conflicted   map[string]bool
	conflictRevs map[string]bool
	failNext     map[string][]error
	failAlways   map[string]error
	calls        map[string]int
	merges       []MergeCall
	commits      []CommitCall
	updated      []string
	nextRev      int64
	closed       bool

	// MergeHook, when set, runs before every merge; a non-nil error fails it.
	MergeHook func(ctx context.Context, call MergeCall) error
}

var _ vcs.Client = (*Fake)(nil)

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		files:        make(map[string][]byte),
		heads:        make(map[string]int64),
		logs:         make(map[string][]vcs.LogEntry),
		dirs:         make(map[string][]string),
		workingCopy:  make(map[string]string),
		modified:     make(map[string]bool),
		conflicted:   make(map[string]bool),
		conflictRevs: make(map[string]bool),
		failNext:     make(map[string][]error),
		failAlways:   make(map[string]error),
		calls:        make(map[string]int),
		nextRev:      1000,
	}
}

// SetFile makes Cat(url) return data.
func (f *Fake) SetFile(url string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[url] = data
}

// RemoveFile makes Cat(url) fail with not found.
func (f *Fake) RemoveFile(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, url)
}

// SetHead sets the head revision reported for url.
func (f *Fake) SetHead(url string, rev int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads[url] = rev
}

// AddLog appends entries for url and advances its head to the newest revision.
func (f *Fake) AddLog(url string, entries ...vcs.LogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[url] = append(f.logs[url], entries...)
	for _, e := range entries {
		if e.Revision > f.heads[url] {
			f.heads[url] = e.Revision
		}
	}
}

// SetDirectories sets the listing returned for url.
func (f *Fake) SetDirectories(url string, dirs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[url] = dirs
}

// ConflictOn makes merges of revision leave the working copy conflicted.
func (f *Fake) ConflictOn(revision string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflictRevs[revision] = true
}

// ResolveConflicts clears the conflict marker of the working copy at path.
func (f *Fake) ResolveConflicts(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conflicted, path)
}

// SetWorkingCopy registers path as a working copy of url.
func (f *Fake) SetWorkingCopy(path, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workingCopy[path] = url
}

// SetModified marks the working copy at path as locally modified.
func (f *Fake) SetModified(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified[path] = true
}

// FailNext queues err as the result of the next call to op (e.g. "merge").
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = append(f.failNext[op], err)
}

// FailAlways makes every call to op fail with err. A nil err clears it.
func (f *Fake) FailAlways(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAlways, op)
		return
	}
	f.failAlways[op] = err
}

// Calls returns how often op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Merges returns the recorded merges.
func (f *Fake) Merges() []MergeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MergeCall(nil), f.merges...)
}

// Commits returns the recorded commits.
func (f *Fake) Commits() []CommitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CommitCall(nil), f.commits...)
}

// Updated returns every path passed to UpdateEmpty.
func (f *Fake) Updated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updated...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// enter counts the call and returns a scripted failure, if any. Callers hold f.mu.
func (f *Fake) enter(op string) error {
	f.calls[op]++
	if q := f.failNext[op]; len(q) > 0 {
		f.failNext[op] = q[1:]
		return q[0]
	}
	return f.failAlways[op]
}

func (f *Fake) Cat(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("cat"); err != nil {
		return nil, err
	}
	data, ok := f.files[url]
	if !ok {
		return nil, vcs.Wrap("cat", url, vcs.ErrNotFound, fmt.Errorf("no such file"))
	}
	return append([]byte(nil), data...), nil
}

func (f *Fake) Diff(_ context.Context, url string, from, to int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("diff"); err != nil {
		return "", err
	}
	return fmt.Sprintf("--- %s@%d\n+++ %s@%d\n", url, from, url, to), nil
}

func (f *Fake) Log(_ context.Context, url string, from, to int64, author string) ([]vcs.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("log"); err != nil {
		return nil, err
	}
	var out []vcs.LogEntry
	for _, e := range f.logs[url] {
		if e.Revision < from || (to > 0 && e.Revision > to) {
			continue
		}
		if author != "" && e.Author != author {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revision < out[j].Revision })
	return out, nil
}

func (f *Fake) ListDirectories(_ context.Context, url string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	dirs, ok := f.dirs[url]
	if !ok {
		return nil, vcs.Wrap("list", url, vcs.ErrNotFound, fmt.Errorf("no such directory"))
	}
	return append([]string(nil), dirs...), nil
}

func (f *Fake) ShowRevision(_ context.Context, url string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("revision"); err != nil {
		return 0, err
	}
	rev, ok := f.heads[url]
	if !ok {
		return 0, vcs.Wrap("revision", url, vcs.ErrNotFound, fmt.Errorf("unknown url"))
	}
	return rev, nil
}

func (f *Fake) CheckoutEmpty(_ context.Context, path, url string) error {
	if err := vcs.RequireLocation("checkout", path, url); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("checkout"); err != nil {
		return err
	}
	f.workingCopy[path] = url
	return nil
}

func (f *Fake) UpdateEmpty(_ context.Context, paths []string) ([]int64, error) {
	if err := vcs.RequirePaths("update", paths); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("update"); err != nil {
		return nil, err
	}
	f.updated = append(f.updated, paths...)
	revs := make([]int64, len(paths))
	for i := range revs {
		revs[i] = f.nextRev
	}
	return revs, nil
}

func (f *Fake) Merge(ctx context.Context, path, url, revision string, recursive, recordOnly bool) error {
	if err := vcs.RequireLocation("merge", path, url); err != nil {
		return err
	}
	call := MergeCall{Path: path, URL: url, Revision: revision, Recursive: recursive, RecordOnly: recordOnly}

	f.mu.Lock()
	err := f.enter("merge")
	hook := f.MergeHook
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges = append(f.merges, call)
	f.modified[path] = true
	if f.conflictRevs[revision] {
		f.conflicted[path] = true
	}
	return nil
}

func (f *Fake) Commit(_ context.Context, path, message string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("commit"); err != nil {
		return 0, err
	}
	if !f.modified[path] {
		return 0, nil
	}
	f.nextRev++
	f.commits = append(f.commits, CommitCall{Path: path, Message: message, Revision: f.nextRev})
	delete(f.modified, path)
	return f.nextRev, nil
}

func (f *Fake) HasModifications(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("status"); err != nil {
		return false, err
	}
	return f.modified[path], nil
}

func (f *Fake) HasConflicts(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("conflicts"); err != nil {
		return false, err
	}
	return f.conflicted[path], nil
}

func (f *Fake) URLOf(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("url"); err != nil {
		return "", err
	}
	url, ok := f.workingCopy[strings.TrimSuffix(path, "/")]
	if !ok {
		return "", vcs.Wrap("url", path, vcs.ErrNotFound, fmt.Errorf("not a working copy"))
	}
	return url, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
