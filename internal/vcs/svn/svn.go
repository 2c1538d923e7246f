// Package svn implements vcs.Client by driving the svn command-line client.
package svn

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// Options configures the svn backend.
type Options struct {
	Binary   string
	Username string
	Password string
	Runner   vcs.Runner
}

// Client is the Subversion backend.
type Client struct {
	binary   string
	username string
	password string
	runner   vcs.Runner
}

var _ vcs.Client = (*Client)(nil)

// New creates a Subversion backend.
func New(opts Options) *Client {
	c := &Client{
		binary:   opts.Binary,
		username: opts.Username,
		password: opts.Password,
		runner:   opts.Runner,
	}
	if c.binary == "" {
		c.binary = "svn"
	}
	if c.runner == nil {
		c.runner = vcs.ExecRunner{}
	}
	return c
}

func (c *Client) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	full := []string{"--non-interactive"}
	if c.username != "" {
		full = append(full, "--username", c.username)
	}
	if c.password != "" {
		full = append(full, "--password", c.password, "--no-auth-cache")
	}
	full = append(full, args...)
	slog.Debug("svn", slog.String("command", args[0]), logfields.Path(dir))
	return c.runner.Run(ctx, dir, c.binary, full...)
}

// Cat returns the content of the file at url.
func (c *Client) Cat(ctx context.Context, url string) ([]byte, error) {
	out, err := c.run(ctx, "", "cat", url)
	if err != nil {
		return nil, vcs.Classify("cat", url, err)
	}
	return out, nil
}

// Diff returns the unified diff of url between from and to.
func (c *Client) Diff(ctx context.Context, url string, from, to int64) (string, error) {
	out, err := c.run(ctx, "", "diff", "-r", revRange(from, to), url)
	if err != nil {
		return "", vcs.Classify("diff", url, err)
	}
	return string(out), nil
}

// Log returns the entries of url in [from, to], filtered to author when non-empty.
func (c *Client) Log(ctx context.Context, url string, from, to int64, author string) ([]vcs.LogEntry, error) {
	out, err := c.run(ctx, "", "log", "--xml", "-v", "-r", revRange(from, to), url)
	if err != nil {
		return nil, vcs.Classify("log", url, err)
	}
	entries, err := parseLog(out)
	if err != nil {
		return nil, vcs.Wrap("log", url, vcs.ErrTransport, err)
	}
	if author == "" {
		return entries, nil
	}
	filtered := entries[:0]
	for _, e := range entries {
		if e.Author == author {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// ListDirectories lists the child directories of url.
func (c *Client) ListDirectories(ctx context.Context, url string) ([]string, error) {
	out, err := c.run(ctx, "", "list", url)
	if err != nil {
		return nil, vcs.Classify("list", url, err)
	}
	var dirs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, "/") {
			dirs = append(dirs, strings.TrimSuffix(line, "/"))
		}
	}
	return dirs, nil
}

// ShowRevision returns the head revision of the repository holding url.
func (c *Client) ShowRevision(ctx context.Context, url string) (int64, error) {
	info, err := c.info(ctx, "info", url)
	if err != nil {
		return 0, err
	}
	return info.Revision, nil
}

// CheckoutEmpty creates a depth-empty working copy of url at path.
func (c *Client) CheckoutEmpty(ctx context.Context, path, url string) error {
	if err := vcs.RequireLocation("checkout", path, url); err != nil {
		return err
	}
	if _, err := c.run(ctx, "", "checkout", "--depth", "empty", url, path); err != nil {
		return vcs.Classify("checkout", url, err)
	}
	return nil
}

var updatedRevision = regexp.MustCompile(`(?m)^(?:At|Updated to) revision (\d+)\.`)

// UpdateEmpty pulls the given files (and their parent directories) into a sparse working copy.
func (c *Client) UpdateEmpty(ctx context.Context, paths []string) ([]int64, error) {
	if err := vcs.RequirePaths("update", paths); err != nil {
		return nil, err
	}
	args := append([]string{"update", "--parents"}, paths...)
	out, err := c.run(ctx, "", args...)
	if err != nil {
		return nil, vcs.Classify("update", paths[0], err)
	}
	revs := make([]int64, 0, len(paths))
	for _, m := range updatedRevision.FindAllSubmatch(out, -1) {
		n, perr := strconv.ParseInt(string(m[1]), 10, 64)
		if perr != nil {
			return nil, vcs.Wrap("update", paths[0], vcs.ErrTransport, perr)
		}
		revs = append(revs, n)
	}
	if len(revs) == 0 {
		return nil, vcs.Wrap("update", paths[0], vcs.ErrTransport, fmt.Errorf("no revision reported"))
	}
	// svn reports one summary line per target when given several; pad with the last one otherwise
	for len(revs) < len(paths) {
		revs = append(revs, revs[len(revs)-1])
	}
	return revs[:len(paths)], nil
}

// Merge applies revision of url to the working copy at path.
func (c *Client) Merge(ctx context.Context, path, url, revision string, recursive, recordOnly bool) error {
	if err := vcs.RequireLocation("merge", path, url); err != nil {
		return err
	}
	args := []string{"merge", "--accept", "postpone", "-c", revision}
	if !recursive {
		args = append(args, "--depth", "empty")
	}
	if recordOnly {
		args = append(args, "--record-only")
	}
	args = append(args, url, path)
	if _, err := c.run(ctx, "", args...); err != nil {
		return vcs.Classify("merge", url, err)
	}
	return nil
}

var committedRevision = regexp.MustCompile(`Committed revision (\d+)\.`)

// Commit commits the working copy at path and returns the new revision.
func (c *Client) Commit(ctx context.Context, path, message string) (int64, error) {
	out, err := c.run(ctx, "", "commit", "-m", message, path)
	if err != nil {
		return 0, vcs.Classify("commit", path, err)
	}
	m := committedRevision.FindSubmatch(out)
	if m == nil {
		// nothing to commit
		return 0, nil
	}
	n, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return 0, vcs.Wrap("commit", path, vcs.ErrTransport, err)
	}
	return n, nil
}

// HasModifications reports whether the working copy at path has local changes.
func (c *Client) HasModifications(ctx context.Context, path string) (bool, error) {
	st, err := c.status(ctx, path)
	if err != nil {
		return false, err
	}
	for _, e := range st.Targets.Entries {
		if e.Status.modified() {
			return true, nil
		}
	}
	return false, nil
}

// HasConflicts reports whether the working copy at path has unresolved conflicts.
func (c *Client) HasConflicts(ctx context.Context, path string) (bool, error) {
	st, err := c.status(ctx, path)
	if err != nil {
		return false, err
	}
	for _, e := range st.Targets.Entries {
		if e.Status.conflicted() {
			return true, nil
		}
	}
	return false, nil
}

// URLOf returns the repository URL the working copy at path was checked out from.
func (c *Client) URLOf(ctx context.Context, path string) (string, error) {
	info, err := c.info(ctx, "info", path)
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Close is a no-op; the backend holds no resources between commands.
func (c *Client) Close() error { return nil }

func (c *Client) info(ctx context.Context, op, target string) (infoEntry, error) {
	out, err := c.run(ctx, "", "info", "--xml", target)
	if err != nil {
		return infoEntry{}, vcs.Classify(op, target, err)
	}
	var doc infoDoc
	if err := xml.Unmarshal(out, &doc); err != nil {
		return infoEntry{}, vcs.Wrap(op, target, vcs.ErrTransport, err)
	}
	if len(doc.Entries) == 0 {
		return infoEntry{}, vcs.Wrap(op, target, vcs.ErrNotFound, fmt.Errorf("no info entry"))
	}
	return doc.Entries[0], nil
}

func (c *Client) status(ctx context.Context, path string) (statusDoc, error) {
	out, err := c.run(ctx, "", "status", "--xml", path)
	if err != nil {
		return statusDoc{}, vcs.Classify("status", path, err)
	}
	var doc statusDoc
	if err := xml.Unmarshal(out, &doc); err != nil {
		return statusDoc{}, vcs.Wrap("status", path, vcs.ErrTransport, err)
	}
	return doc, nil
}

func revRange(from, to int64) string {
	if to <= 0 {
		return fmt.Sprintf("%d:HEAD", from)
	}
	return fmt.Sprintf("%d:%d", from, to)
}

type logDoc struct {
	Entries []struct {
		Revision int64  `xml:"revision,attr"`
		Author   string `xml:"author"`
		Date     string `xml:"date"`
		Msg      string `xml:"msg"`
		Paths    []struct {
			Action string `xml:"action,attr"`
			Path   string `xml:",chardata"`
		} `xml:"paths>path"`
	} `xml:"logentry"`
}

func parseLog(data []byte) ([]vcs.LogEntry, error) {
	var doc logDoc
	if err := xml.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return nil, err
	}
	entries := make([]vcs.LogEntry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		entry := vcs.LogEntry{Revision: e.Revision, Author: e.Author, Message: strings.TrimSpace(e.Msg)}
		if e.Date != "" {
			if ts, err := time.Parse(time.RFC3339Nano, e.Date); err == nil {
				entry.Date = ts
			}
		}
		for _, p := range e.Paths {
			entry.Paths = append(entry.Paths, p.Path)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type infoDoc struct {
	Entries []infoEntry `xml:"entry"`
}

type infoEntry struct {
	Revision int64  `xml:"revision,attr"`
	URL      string `xml:"url"`
}

type statusDoc struct {
	Targets struct {
		Entries []struct {
			Path   string   `xml:"path,attr"`
			Status wcStatus `xml:"wc-status"`
		} `xml:"entry"`
	} `xml:"target"`
}

type wcStatus struct {
	Item           string `xml:"item,attr"`
	Props          string `xml:"props,attr"`
	TreeConflicted bool   `xml:"tree-conflicted,attr"`
}

func (s wcStatus) modified() bool {
	switch s.Item {
	case "modified", "added", "deleted", "replaced", "conflicted", "missing", "obstructed", "incomplete":
		return true
	}
	return s.Props == "modified" || s.Props == "conflicted" || s.TreeConflicted
}

func (s wcStatus) conflicted() bool {
	return s.Item == "conflicted" || s.Props == "conflicted" || s.TreeConflicted
}
