// Package gitvcs implements vcs.Client for git repositories.
//
// Repository reads (Cat, Diff, Log, ListDirectories, ShowRevision) go through
// bare go-git mirrors kept under a cache directory. Working-copy operations use
// the git binary, since they need sparse checkouts and cherry-picks.
package gitvcs

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// Options configures the git backend.
type Options struct {
	Binary   string
	Username string
	Password string
	// CacheDir holds the bare mirrors used for repository reads.
	CacheDir string
	Runner   vcs.Runner
}

// Client is the git backend.
type Client struct {
	binary  string
	runner  vcs.Runner
	mirrors *mirrorSet
}

var _ vcs.Client = (*Client)(nil)

// New creates a git backend.
func New(opts Options) *Client {
	binary := opts.Binary
	if binary == "" {
		binary = "git"
	}
	runner := opts.Runner
	if runner == nil {
		runner = vcs.ExecRunner{Env: []string{"GIT_TERMINAL_PROMPT=0"}}
	}
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "mergekeeper-git-mirrors")
	}
	return &Client{
		binary:  binary,
		runner:  runner,
		mirrors: newMirrorSet(cacheDir, basicAuth(opts.Username, opts.Password)),
	}
}

func (c *Client) git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	full := append([]string{"-C", dir}, args...)
	slog.Debug("git", slog.String("command", args[0]), logfields.Path(dir))
	return c.runner.Run(ctx, "", c.binary, full...)
}

// Cat returns the content of the file addressed by url.
func (c *Client) Cat(ctx context.Context, url string) ([]byte, error) {
	loc, err := ParseLocation(url)
	if err != nil {
		return nil, err
	}
	if loc.Path == "" {
		return nil, vcs.Wrap("cat", url, vcs.ErrNotFound, fmt.Errorf("location has no file path"))
	}
	commit, err := c.mirrors.head(ctx, loc)
	if err != nil {
		return nil, classify("cat", url, err)
	}
	file, err := commit.File(loc.Path)
	if err != nil {
		return nil, classify("cat", url, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, classify("cat", url, err)
	}
	return []byte(contents), nil
}

// Diff returns the patch of url between two first-parent positions.
func (c *Client) Diff(ctx context.Context, url string, from, to int64) (string, error) {
	loc, err := ParseLocation(url)
	if err != nil {
		return "", err
	}
	patch, err := c.mirrors.diff(ctx, loc, from, to)
	if err != nil {
		return "", classify("diff", url, err)
	}
	return patch, nil
}

// Log returns commits at first-parent positions [from, to] of the branch.
func (c *Client) Log(ctx context.Context, url string, from, to int64, author string) ([]vcs.LogEntry, error) {
	loc, err := ParseLocation(url)
	if err != nil {
		return nil, err
	}
	entries, err := c.mirrors.log(ctx, loc, from, to, author)
	if err != nil {
		return nil, classify("log", url, err)
	}
	return entries, nil
}

// ListDirectories lists branches below the location's branch name, or all branches
// when the location names none.
func (c *Client) ListDirectories(ctx context.Context, url string) ([]string, error) {
	remote, ref, hasRef := strings.Cut(strings.TrimSpace(url), "#")
	prefix := ""
	if hasRef && ref != "" {
		prefix = strings.TrimSuffix(ref, "/") + "/"
	}
	branches, err := c.mirrors.branches(ctx, remote)
	if err != nil {
		return nil, classify("list", url, err)
	}
	var out []string
	for _, b := range branches {
		if rest, ok := strings.CutPrefix(b, prefix); ok && rest != "" {
			out = append(out, rest)
		}
	}
	return out, nil
}

// ShowRevision returns the length of the branch's first-parent history.
func (c *Client) ShowRevision(ctx context.Context, url string) (int64, error) {
	loc, err := ParseLocation(url)
	if err != nil {
		return 0, err
	}
	chain, err := c.mirrors.chain(ctx, loc)
	if err != nil {
		return 0, classify("revision", url, err)
	}
	return int64(len(chain)), nil
}

// URLOf resolves a working copy to "<origin>#<current branch>".
func (c *Client) URLOf(_ context.Context, path string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", classify("url", path, err)
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return "", classify("url", path, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", vcs.Wrap("url", path, vcs.ErrNotFound, fmt.Errorf("origin has no url"))
	}
	head, err := repo.Head()
	if err != nil {
		return "", classify("url", path, err)
	}
	return Location{Remote: urls[0], Branch: head.Name().Short()}.String(), nil
}

// Close drops cached mirror handles. Mirrors stay on disk for reuse.
func (c *Client) Close() error {
	c.mirrors.reset()
	return nil
}

func classify(op, url string, err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, plumbing.ErrReferenceNotFound),
		stderrors.Is(err, plumbing.ErrObjectNotFound),
		stderrors.Is(err, git.ErrRepositoryNotExists),
		stderrors.Is(err, errRevisionOutOfRange),
		isFileNotFound(err):
		return vcs.Wrap(op, url, vcs.ErrNotFound, err)
	default:
		return vcs.Classify(op, url, err)
	}
}
