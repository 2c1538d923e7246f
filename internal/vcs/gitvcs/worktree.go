package gitvcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

const sparseFile = "info/sparse-checkout"

// CheckoutEmpty clones the branch at url into path with an empty sparse pattern set,
// so no files are materialized until UpdateEmpty names them.
func (c *Client) CheckoutEmpty(ctx context.Context, path, url string) error {
	if err := vcs.RequireLocation("checkout", path, url); err != nil {
		return err
	}
	loc, err := ParseLocation(url)
	if err != nil {
		return err
	}
	if _, err := c.runner.Run(ctx, "", c.binary, "clone", "--no-checkout", "--branch", loc.Branch, loc.Remote, path); err != nil {
		return vcs.Classify("checkout", url, err)
	}
	if _, err := c.git(ctx, path, "config", "core.sparseCheckout", "true"); err != nil {
		return vcs.Classify("checkout", url, err)
	}
	if err := os.WriteFile(filepath.Join(path, ".git", sparseFile), nil, 0o600); err != nil {
		return vcs.Wrap("checkout", url, vcs.ErrTransport, err)
	}
	if _, err := c.git(ctx, path, "checkout", loc.Branch); err != nil {
		return vcs.Classify("checkout", url, err)
	}
	return nil
}

// UpdateEmpty adds the given files to the sparse pattern set of their working copies
// and materializes them. Every returned revision is the working copy's head position.
func (c *Client) UpdateEmpty(ctx context.Context, paths []string) ([]int64, error) {
	if err := vcs.RequirePaths("update", paths); err != nil {
		return nil, err
	}
	byRoot := make(map[string][]string)
	var order []string
	for _, p := range paths {
		root, rel, err := splitWorkingCopy(p)
		if err != nil {
			return nil, vcs.Wrap("update", p, vcs.ErrNotFound, err)
		}
		if _, seen := byRoot[root]; !seen {
			order = append(order, root)
		}
		byRoot[root] = append(byRoot[root], rel)
	}

	heads := make(map[string]int64, len(order))
	for _, root := range order {
		if err := appendSparsePatterns(root, byRoot[root]); err != nil {
			return nil, vcs.Wrap("update", root, vcs.ErrTransport, err)
		}
		if _, err := c.git(ctx, root, "read-tree", "-mu", "HEAD"); err != nil {
			return nil, vcs.Classify("update", root, err)
		}
		n, err := headPosition(root)
		if err != nil {
			return nil, classify("update", root, err)
		}
		heads[root] = n
	}

	revs := make([]int64, len(paths))
	for i, p := range paths {
		root, _, _ := splitWorkingCopy(p)
		revs[i] = heads[root]
	}
	return revs, nil
}

// Merge cherry-picks the commit revision of url into the working copy at path
// without committing. A cherry-pick that stops on conflicts is not an error;
// callers detect the conflicts with HasConflicts. Git keeps no merge-tracking
// record for cherry-picks, so recordOnly merges change nothing.
func (c *Client) Merge(ctx context.Context, path, url, revision string, _ bool, recordOnly bool) error {
	if err := vcs.RequireLocation("merge", path, url); err != nil {
		return err
	}
	if recordOnly {
		return nil
	}
	loc, err := ParseLocation(url)
	if err != nil {
		return err
	}
	if _, err := c.git(ctx, path, "fetch", "--no-tags", loc.Remote, loc.Branch); err != nil {
		return vcs.Classify("merge", url, err)
	}
	if _, err := c.git(ctx, path, "cherry-pick", "--no-commit", revision); err != nil {
		if conflicted, cerr := c.HasConflicts(ctx, path); cerr == nil && conflicted {
			return nil
		}
		return vcs.Classify("merge", url, err)
	}
	return nil
}

// Commit commits staged changes and pushes them to origin. It returns the new
// head position, or 0 when there was nothing to commit.
func (c *Client) Commit(ctx context.Context, path, message string) (int64, error) {
	modified, err := c.HasModifications(ctx, path)
	if err != nil {
		return 0, err
	}
	if !modified {
		return 0, nil
	}
	if _, err := c.git(ctx, path, "commit", "-a", "-m", message); err != nil {
		return 0, vcs.Classify("commit", path, err)
	}
	if _, err := c.git(ctx, path, "push", "origin", "HEAD"); err != nil {
		return 0, vcs.Classify("commit", path, err)
	}
	n, err := headPosition(path)
	if err != nil {
		return 0, classify("commit", path, err)
	}
	return n, nil
}

// HasModifications reports tracked changes in the working copy at path.
func (c *Client) HasModifications(ctx context.Context, path string) (bool, error) {
	out, err := c.git(ctx, path, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, vcs.Classify("status", path, err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// HasConflicts reports unmerged paths in the working copy at path.
func (c *Client) HasConflicts(ctx context.Context, path string) (bool, error) {
	out, err := c.git(ctx, path, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return false, vcs.Classify("status", path, err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// splitWorkingCopy finds the enclosing working copy of p and returns its root
// and the slash-separated path of p relative to it.
func splitWorkingCopy(p string) (root, rel string, err error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", "", err
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if fi, serr := os.Stat(filepath.Join(dir, ".git")); serr == nil && fi.IsDir() {
			r, rerr := filepath.Rel(dir, abs)
			if rerr != nil {
				return "", "", rerr
			}
			return dir, filepath.ToSlash(r), nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			return "", "", fmt.Errorf("%s is not inside a working copy", p)
		}
	}
}

func appendSparsePatterns(root string, rels []string) error {
	file := filepath.Join(root, ".git", sparseFile)
	existing, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	have := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			have[line] = true
		}
	}
	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		b.WriteByte('\n')
	}
	for _, rel := range rels {
		pattern := "/" + strings.TrimPrefix(rel, "/")
		if have[pattern] {
			continue
		}
		have[pattern] = true
		b.WriteString(pattern)
		b.WriteByte('\n')
	}
	return os.WriteFile(file, []byte(b.String()), 0o600)
}

func headPosition(root string) (int64, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return 0, err
	}
	ref, err := repo.Head()
	if err != nil {
		return 0, err
	}
	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return 0, err
	}
	var n int64 = 1
	for c.NumParents() > 0 {
		if c, err = c.Parent(0); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}
