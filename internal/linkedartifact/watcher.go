// Package linkedartifact follows a repository URL and reports commits by one
// author that appeared since the last check. The last seen revision survives
// restarts in a small JSON state file.
package linkedartifact

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

type state struct {
	URL              string `json:"url"`
	LastSeenRevision int64  `json:"last_seen_revision"`
}

// Watcher tracks the last seen revision of one URL.
type Watcher struct {
	client    vcs.Client
	statePath string

	mu    sync.Mutex
	state state
}

// GetOrCreate loads the watcher state for url from statePath. Missing or
// unreadable state, or state written for another URL, starts over at the
// current head revision so that history before now is never reported.
func GetOrCreate(ctx context.Context, url, statePath string, client vcs.Client) (*Watcher, error) {
	if url == "" || statePath == "" {
		return nil, errors.ContractError("linked artifact needs a url and a state path").Build()
	}
	w := &Watcher{client: client, statePath: statePath}

	if st, err := readState(statePath); err == nil && st.URL == url {
		w.state = st
		return w, nil
	} else if err != nil && !os.IsNotExist(err) {
		slog.Warn("Discarding unreadable linked artifact state", logfields.Path(statePath), logfields.Error(err))
	}

	head, err := client.ShowRevision(ctx, url)
	if err != nil {
		return nil, err
	}
	w.state = state{URL: url, LastSeenRevision: head}
	if err := w.save(); err != nil {
		return nil, err
	}
	slog.Info("Initialized linked artifact", logfields.URL(url), logfields.Revision(head))
	return w, nil
}

// URL returns the watched URL.
func (w *Watcher) URL() string { return w.state.URL }

// LastSeenRevision returns the newest revision already reported.
func (w *Watcher) LastSeenRevision() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.LastSeenRevision
}

// CheckForNew returns the commits by user between the last seen revision
// (exclusive) and head, then advances the last seen revision to head.
func (w *Watcher) CheckForNew(ctx context.Context, user string) ([]vcs.LogEntry, error) {
	if user == "" {
		return nil, errors.ContractError("linked artifact check needs a user").
			WithContext("url", w.state.URL).
			Build()
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	head, err := w.client.ShowRevision(ctx, w.state.URL)
	if err != nil {
		return nil, err
	}
	if head <= w.state.LastSeenRevision {
		return nil, nil
	}
	entries, err := w.client.Log(ctx, w.state.URL, w.state.LastSeenRevision+1, head, user)
	if err != nil {
		return nil, err
	}

	prev := w.state.LastSeenRevision
	w.state.LastSeenRevision = head
	if err := w.save(); err != nil {
		w.state.LastSeenRevision = prev
		return nil, err
	}
	slog.Debug("Checked linked artifact",
		logfields.URL(w.state.URL),
		logfields.User(user),
		logfields.Revision(head),
		logfields.Count(len(entries)))
	return entries, nil
}

func readState(path string) (state, error) {
	var st state
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}

func (w *Watcher) save() error {
	data, err := json.MarshalIndent(w.state, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal linked artifact state").Build()
	}
	if err := os.MkdirAll(filepath.Dir(w.statePath), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create state directory").
			WithContext("path", w.statePath).
			Build()
	}
	tmp := w.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write linked artifact state").
			WithContext("path", w.statePath).
			Build()
	}
	if err := os.Rename(tmp, w.statePath); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to replace linked artifact state").
			WithContext("path", w.statePath).
			Build()
	}
	return nil
}
