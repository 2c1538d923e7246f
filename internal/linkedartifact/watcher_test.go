package linkedartifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs/vcstest"
)

const artifactURL = "https://svn.example.org/libs/parser/trunk"

func commit(rev int64, author string) vcs.LogEntry {
	return vcs.LogEntry{Revision: rev, Author: author, Date: time.Date(2024, 3, 1, 0, 0, int(rev), 0, time.UTC), Message: "change"}
}

func TestCheckForNewReportsCommitsAfterInitialization(t *testing.T) {
	fake := vcstest.New()
	fake.AddLog(artifactURL, commit(1, "testuser"))
	statePath := filepath.Join(t.TempDir(), "linked", "parser.json")

	w, err := GetOrCreate(t.Context(), artifactURL, statePath, fake)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.LastSeenRevision())

	fake.AddLog(artifactURL, commit(2, "testuser"), commit(3, "someone"), commit(4, "testuser"))

	entries, err := w.CheckForNew(t.Context(), "testuser")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].Revision)
	assert.Equal(t, int64(4), entries[1].Revision)
	assert.Equal(t, int64(4), w.LastSeenRevision())

	entries, err = w.CheckForNew(t.Context(), "testuser")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, fake.Calls("log"))
}

func TestGetOrCreateResumesFromSavedState(t *testing.T) {
	fake := vcstest.New()
	fake.AddLog(artifactURL, commit(1, "testuser"))
	statePath := filepath.Join(t.TempDir(), "parser.json")

	_, err := GetOrCreate(t.Context(), artifactURL, statePath, fake)
	require.NoError(t, err)

	fake.AddLog(artifactURL, commit(2, "testuser"))
	w, err := GetOrCreate(t.Context(), artifactURL, statePath, fake)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.LastSeenRevision())

	entries, err := w.CheckForNew(t.Context(), "testuser")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGetOrCreateReinitializes(t *testing.T) {
	tests := []struct {
		name  string
		state string
	}{
		{name: "corrupt", state: "{not json"},
		{name: "other url", state: `{"url":"https://svn.example.org/other","last_seen_revision":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := vcstest.New()
			fake.SetHead(artifactURL, 7)
			statePath := filepath.Join(t.TempDir(), "parser.json")
			require.NoError(t, os.WriteFile(statePath, []byte(tt.state), 0o644))

			w, err := GetOrCreate(t.Context(), artifactURL, statePath, fake)
			require.NoError(t, err)
			assert.Equal(t, int64(7), w.LastSeenRevision())

			data, err := os.ReadFile(statePath)
			require.NoError(t, err)
			assert.JSONEq(t, `{"url":"`+artifactURL+`","last_seen_revision":7}`, string(data))
		})
	}
}

func TestCheckForNewNeedsUser(t *testing.T) {
	fake := vcstest.New()
	fake.SetHead(artifactURL, 1)
	w, err := GetOrCreate(t.Context(), artifactURL, filepath.Join(t.TempDir(), "s.json"), fake)
	require.NoError(t, err)

	_, err = w.CheckForNew(t.Context(), "")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryContract))
	assert.Equal(t, 1, fake.Calls("revision"), "only the initialization reads the head")
}

func TestCheckForNewKeepsRevisionWhenLogFails(t *testing.T) {
	fake := vcstest.New()
	fake.SetHead(artifactURL, 1)
	w, err := GetOrCreate(t.Context(), artifactURL, filepath.Join(t.TempDir(), "s.json"), fake)
	require.NoError(t, err)

	fake.AddLog(artifactURL, commit(2, "testuser"))
	fake.FailNext("log", vcs.Wrap("log", artifactURL, vcs.ErrTransport, assert.AnError))
	_, err = w.CheckForNew(t.Context(), "testuser")
	require.Error(t, err)
	assert.Equal(t, int64(1), w.LastSeenRevision())

	entries, err := w.CheckForNew(t.Context(), "testuser")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
