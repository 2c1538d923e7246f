package gitvcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

type fixture struct {
	dir  string
	repo *git.Repository
	when time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "origin")
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &fixture{dir: dir, repo: repo, when: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (f *fixture) commit(t *testing.T, author, file, content, msg string) plumbing.Hash {
	t.Helper()
	full := filepath.Join(f.dir, file)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	wt, err := f.repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(file)
	require.NoError(t, err)
	f.when = f.when.Add(time.Hour)
	h, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: author, Email: author + "@example.org", When: f.when},
	})
	require.NoError(t, err)
	return h
}

func (f *fixture) branch(t *testing.T, name string) {
	t.Helper()
	head, err := f.repo.Head()
	require.NoError(t, err)
	require.NoError(t, f.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())))
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return New(Options{CacheDir: filepath.Join(t.TempDir(), "mirrors")})
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("https://git.example.org/app.git#release/1.x:pom.xml")
	require.NoError(t, err)
	assert.Equal(t, Location{Remote: "https://git.example.org/app.git", Branch: "release/1.x", Path: "pom.xml"}, loc)
	assert.Equal(t, "https://git.example.org/app.git#release/1.x:pom.xml", loc.String())

	loc, err = ParseLocation("https://git.example.org/app.git")
	require.NoError(t, err)
	assert.Equal(t, "main", loc.Branch)
	assert.Empty(t, loc.Path)

	_, err = ParseLocation("  ")
	require.Error(t, err)
	_, err = ParseLocation("#main")
	require.Error(t, err)
}

func TestReadsThroughMirror(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", "pom.xml", "<project><version>1.0.0</version></project>", "one")
	f.commit(t, "bob", "src/a.txt", "a", "two")
	f.commit(t, "alice", "pom.xml", "<project><version>1.1.0</version></project>", "three")
	f.branch(t, "release/1.x")
	f.branch(t, "release/2.x")

	c := newTestClient(t)
	defer func() { _ = c.Close() }()
	ctx := context.Background()
	base := f.dir + "#master"

	rev, err := c.ShowRevision(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rev)

	data, err := c.Cat(ctx, base+":pom.xml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "1.1.0")

	entries, err := c.Log(ctx, base, 2, 3, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].Revision)
	assert.Equal(t, "bob", entries[0].Author)
	assert.Equal(t, []string{"src/a.txt"}, entries[0].Paths)
	assert.Len(t, entries[0].ID, 40)

	mine, err := c.Log(ctx, base, 1, 0, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "three", mine[1].Message)

	empty, err := c.Log(ctx, base, 4, 3, "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	patch, err := c.Diff(ctx, base+":pom.xml", 1, 3)
	require.NoError(t, err)
	assert.Contains(t, patch, "1.1.0")
	assert.NotContains(t, patch, "src/a.txt")

	dirs, err := c.ListDirectories(ctx, f.dir+"#release")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.x", "2.x"}, dirs)
}

func TestMissingFileIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", "a.txt", "a", "one")

	c := newTestClient(t)
	_, err := c.Cat(context.Background(), f.dir+"#master:missing.txt")
	require.Error(t, err)
	assert.True(t, vcs.IsNotFound(err))

	_, err = c.Cat(context.Background(), f.dir+"#nope:a.txt")
	require.Error(t, err)
	assert.True(t, vcs.IsNotFound(err))

	_, err = c.Diff(context.Background(), f.dir+"#master", 1, 7)
	require.Error(t, err)
	assert.True(t, vcs.IsNotFound(err))
}

func TestURLOf(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", "a.txt", "a", "one")

	wc := filepath.Join(t.TempDir(), "wc")
	_, err := git.PlainClone(wc, false, &git.CloneOptions{URL: f.dir})
	require.NoError(t, err)

	url, err := newTestClient(t).URLOf(context.Background(), wc)
	require.NoError(t, err)
	assert.Equal(t, f.dir+"#master", url)
}

func TestSparsePatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "info"), 0o750))

	gotRoot, rel, err := splitWorkingCopy(filepath.Join(root, "module", "pom.xml"))
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)
	assert.Equal(t, "module/pom.xml", rel)

	require.NoError(t, appendSparsePatterns(root, []string{"module/pom.xml"}))
	require.NoError(t, appendSparsePatterns(root, []string{"module/pom.xml", "a.txt"}))
	data, err := os.ReadFile(filepath.Join(root, ".git", sparseFile))
	require.NoError(t, err)
	assert.Equal(t, "/module/pom.xml\n/a.txt\n", string(data))

	_, _, err = splitWorkingCopy(filepath.Join(t.TempDir(), "x", "y"))
	require.Error(t, err)
}

func TestMergeToleratesConflicts(t *testing.T) {
	var calls []string
	conflicted := true
	runner := vcs.RunnerFunc(func(_ context.Context, _ string, _ string, args ...string) ([]byte, error) {
		calls = append(calls, strings.Join(args[2:], " "))
		switch args[2] {
		case "cherry-pick":
			return nil, &vcs.CommandError{Name: "git", Stderr: "error: could not apply abc123", Err: errors.New("exit status 1")}
		case "diff":
			if conflicted {
				return []byte("pom.xml\n"), nil
			}
			return nil, nil
		}
		return nil, nil
	})
	c := New(Options{Runner: runner, CacheDir: t.TempDir()})

	require.NoError(t, c.Merge(context.Background(), "/tmp/wc", "https://git.example.org/app.git#main", "abc123", true, false))
	assert.Equal(t, []string{
		"fetch --no-tags https://git.example.org/app.git main",
		"cherry-pick --no-commit abc123",
		"diff --name-only --diff-filter=U",
	}, calls)

	conflicted = false
	err := c.Merge(context.Background(), "/tmp/wc", "https://git.example.org/app.git#main", "abc123", true, false)
	require.Error(t, err)
	assert.Equal(t, vcs.ErrTransport, vcs.KindOf(err))

	calls = nil
	require.NoError(t, c.Merge(context.Background(), "/tmp/wc", "https://git.example.org/app.git#main", "abc123", true, true))
	assert.Empty(t, calls)
}
