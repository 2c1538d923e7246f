package gitvcs

import (
	"context"
	"crypto/sha1" // #nosec G505 -- directory naming only
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

var errRevisionOutOfRange = stderrors.New("revision out of range")

func basicAuth(username, password string) transport.AuthMethod {
	if username == "" {
		return nil
	}
	return &http.BasicAuth{Username: username, Password: password}
}

// mirrorSet keeps one bare mirror per remote and refreshes it before reads.
// Concurrent refreshes of the same remote collapse into one fetch.
type mirrorSet struct {
	dir   string
	auth  transport.AuthMethod
	group singleflight.Group

	mu    sync.Mutex
	repos map[string]*git.Repository
}

func newMirrorSet(dir string, auth transport.AuthMethod) *mirrorSet {
	return &mirrorSet{dir: dir, auth: auth, repos: make(map[string]*git.Repository)}
}

func (m *mirrorSet) path(remote string) string {
	sum := sha1.Sum([]byte(remote)) // #nosec G401 -- not used for security
	return filepath.Join(m.dir, hex.EncodeToString(sum[:8])+".git")
}

func (m *mirrorSet) open(ctx context.Context, remote string) (*git.Repository, error) {
	v, err, _ := m.group.Do(remote, func() (any, error) {
		m.mu.Lock()
		repo, ok := m.repos[remote]
		m.mu.Unlock()

		if !ok {
			var err error
			repo, err = m.cloneOrOpen(ctx, remote)
			if err != nil {
				return nil, err
			}
			m.mu.Lock()
			m.repos[remote] = repo
			m.mu.Unlock()
		}

		err := repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: "origin",
			RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/heads/*"},
			Auth:       m.auth,
			Force:      true,
			Tags:       git.NoTags,
		})
		if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		return repo, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*git.Repository), nil
}

func (m *mirrorSet) cloneOrOpen(ctx context.Context, remote string) (*git.Repository, error) {
	path := m.path(remote)
	if _, err := os.Stat(path); err == nil {
		repo, err := git.PlainOpen(path)
		if err == nil {
			return repo, nil
		}
		slog.Warn("Discarding unreadable mirror", logfields.Path(path), logfields.Error(err))
		if err := os.RemoveAll(path); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return nil, err
	}
	slog.Info("Creating git mirror", logfields.URL(remote), logfields.Path(path))
	repo, err := git.PlainCloneContext(ctx, path, true, &git.CloneOptions{
		URL:    remote,
		Auth:   m.auth,
		Mirror: true,
	})
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("clone: %w", err)
	}
	return repo, nil
}

func (m *mirrorSet) head(ctx context.Context, loc Location) (*object.Commit, error) {
	repo, err := m.open(ctx, loc.Remote)
	if err != nil {
		return nil, err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(loc.Branch), true)
	if err != nil {
		return nil, err
	}
	return repo.CommitObject(ref.Hash())
}

// chain returns the first-parent history of the branch, oldest first.
// Position n (1-based) in this slice is the numeric revision of that commit.
func (m *mirrorSet) chain(ctx context.Context, loc Location) ([]*object.Commit, error) {
	c, err := m.head(ctx, loc)
	if err != nil {
		return nil, err
	}
	var commits []*object.Commit
	for {
		commits = append(commits, c)
		if c.NumParents() == 0 {
			break
		}
		if c, err = c.Parent(0); err != nil {
			return nil, err
		}
	}
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

func at(chain []*object.Commit, n int64) (*object.Commit, error) {
	if n < 1 || n > int64(len(chain)) {
		return nil, fmt.Errorf("%w: %d of %d", errRevisionOutOfRange, n, len(chain))
	}
	return chain[n-1], nil
}

func (m *mirrorSet) diff(ctx context.Context, loc Location, from, to int64) (string, error) {
	chain, err := m.chain(ctx, loc)
	if err != nil {
		return "", err
	}
	if to <= 0 {
		to = int64(len(chain))
	}
	fromCommit, err := at(chain, from)
	if err != nil {
		return "", err
	}
	toCommit, err := at(chain, to)
	if err != nil {
		return "", err
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return "", err
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return "", err
	}
	changes, err := fromTree.DiffContext(ctx, toTree)
	if err != nil {
		return "", err
	}
	if loc.Path != "" {
		var filtered object.Changes
		for _, ch := range changes {
			if underPath(ch.From.Name, loc.Path) || underPath(ch.To.Name, loc.Path) {
				filtered = append(filtered, ch)
			}
		}
		changes = filtered
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", err
	}
	return patch.String(), nil
}

func underPath(name, path string) bool {
	return name == path || strings.HasPrefix(name, path+"/")
}

func (m *mirrorSet) log(ctx context.Context, loc Location, from, to int64, author string) ([]vcs.LogEntry, error) {
	chain, err := m.chain(ctx, loc)
	if err != nil {
		return nil, err
	}
	if to <= 0 || to > int64(len(chain)) {
		to = int64(len(chain))
	}
	if from < 1 {
		from = 1
	}
	var entries []vcs.LogEntry
	for n := from; n <= to; n++ {
		c := chain[n-1]
		if author != "" && c.Author.Name != author && c.Author.Email != author {
			continue
		}
		entry := vcs.LogEntry{
			Revision: n,
			ID:       c.Hash.String(),
			Author:   c.Author.Name,
			Date:     c.Author.When,
			Message:  strings.TrimSpace(c.Message),
		}
		if stats, serr := c.StatsContext(ctx); serr == nil {
			for _, s := range stats {
				entry.Paths = append(entry.Paths, s.Name)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m *mirrorSet) branches(ctx context.Context, remote string) ([]string, error) {
	repo, err := m.open(ctx, remote)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, err
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (m *mirrorSet) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos = make(map[string]*git.Repository)
}

func isFileNotFound(err error) bool {
	return stderrors.Is(err, object.ErrFileNotFound)
}
