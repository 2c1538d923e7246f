package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
)

func seed(t *testing.T, s Store, folder mergeunit.Folder, name string, data []byte) {
	t.Helper()
	_, err := s.Write(context.Background(), folder, name, data)
	require.NoError(t, err)
}

func TestLoadAllParsesEveryFolder(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, mergeunit.FolderTodo, "late.merge", descriptor("2024-03-03T00:00:00Z"))
	seed(t, mem, mergeunit.FolderTodo, "early.merge", descriptor("2024-03-01T00:00:00Z"))
	seed(t, mem, mergeunit.FolderDone, "done.merge", descriptor("2024-03-02T00:00:00Z"))
	seed(t, mem, mergeunit.FolderDone, "ign.merge", append(descriptor("2024-02-01T00:00:00Z"), "ignored=true\n"...))
	seed(t, mem, mergeunit.FolderIgnored, "legacy.merge", descriptor("2024-01-01T00:00:00Z"))
	seed(t, mem, mergeunit.FolderManual, "broken.merge", []byte("nonsense"))

	repo := NewUnitRepository(mem)
	units, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 5)

	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.FileName
	}
	assert.Equal(t, []string{"legacy.merge", "ign.merge", "early.merge", "done.merge", "late.merge"}, names)
	assert.Equal(t, mergeunit.StatusIgnored, units[0].Status)
	assert.Equal(t, mergeunit.StatusIgnored, units[1].Status)
	assert.Equal(t, mergeunit.StatusTodo, units[2].Status)
	assert.Equal(t, mergeunit.StatusDone, units[3].Status)
	assert.Equal(t, "todo/late.merge", units[4].RemotePath)
}

func TestLoadAllReturnsFreshInstances(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, mergeunit.FolderTodo, "a.merge", descriptor("2024-03-01T00:00:00Z"))
	repo := NewUnitRepository(mem)

	first, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	second, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first[0], second[0])
	assert.True(t, mergeunit.Equal(first[0], second[0]))
}

func TestMoveToFollowsTransitionTable(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, mergeunit.FolderTodo, "a.merge", descriptor("2024-03-01T00:00:00Z"))
	repo := NewUnitRepository(mem)
	ctx := context.Background()

	u, err := repo.Get(ctx, "a.merge")
	require.NoError(t, err)

	err = repo.MoveTo(ctx, u, mergeunit.StatusManual)
	require.NoError(t, err)
	assert.Equal(t, "manual/a.merge", u.RemotePath)

	err = repo.MoveTo(ctx, u, mergeunit.StatusDone)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.Equal(t, mergeunit.StatusManual, u.Status)
	assert.Equal(t, []string{"manual/a.merge"}, mem.Paths())

	require.NoError(t, repo.MoveTo(ctx, u, mergeunit.StatusTodo))
	require.NoError(t, repo.MoveTo(ctx, u, mergeunit.StatusTodo))
	assert.Equal(t, []string{"todo/a.merge"}, mem.Paths())
}

func TestMoveToIgnoredUsesDoneFolderFlag(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, mergeunit.FolderTodo, "a.merge", descriptor("2024-03-01T00:00:00Z"))
	repo := NewUnitRepository(mem)
	ctx := context.Background()

	u, err := repo.Get(ctx, "a.merge")
	require.NoError(t, err)
	require.NoError(t, repo.MoveTo(ctx, u, mergeunit.StatusIgnored))
	assert.Equal(t, "done/a.merge", u.RemotePath)

	reloaded, err := repo.Get(ctx, "a.merge")
	require.NoError(t, err)
	assert.Equal(t, mergeunit.StatusIgnored, reloaded.Status)

	require.NoError(t, repo.MoveTo(ctx, reloaded, mergeunit.StatusTodo))
	data, err := mem.Read(ctx, "todo/a.merge")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ignored=")
}

func TestMoveDoneToIgnoredRewritesInPlace(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, mergeunit.FolderDone, "a.merge", descriptor("2024-03-01T00:00:00Z"))
	repo := NewUnitRepository(mem)
	ctx := context.Background()

	u, err := repo.Get(ctx, "a.merge")
	require.NoError(t, err)
	require.Equal(t, mergeunit.StatusDone, u.Status)

	require.NoError(t, repo.MoveTo(ctx, u, mergeunit.StatusIgnored))
	assert.Equal(t, 0, mem.Calls().Move)
	reloaded, err := repo.Get(ctx, "a.merge")
	require.NoError(t, err)
	assert.Equal(t, mergeunit.StatusIgnored, reloaded.Status)
}

func TestStaleIgnoredFlagIsClearedBeforeDone(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, mergeunit.FolderDone, "a.merge", append(descriptor("2024-03-01T00:00:00Z"), "ignored=true\n"...))
	repo := NewUnitRepository(mem)
	ctx := context.Background()

	u, err := repo.Get(ctx, "a.merge")
	require.NoError(t, err)
	require.Equal(t, mergeunit.StatusIgnored, u.Status)

	mem.FailNext("write", storeError("write", "todo/a.merge", assert.AnError))
	require.NoError(t, repo.MoveTo(ctx, u, mergeunit.StatusTodo))
	data, err := mem.Read(ctx, "todo/a.merge")
	require.NoError(t, err)
	require.Contains(t, string(data), "ignored=true")

	require.NoError(t, repo.MoveTo(ctx, u, mergeunit.StatusDone))
	reloaded, err := repo.Get(ctx, "a.merge")
	require.NoError(t, err)
	assert.Equal(t, mergeunit.StatusDone, reloaded.Status)
}

func TestMoveToDoneKeepsStatusWhenFlagClearFails(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, mergeunit.FolderTodo, "a.merge", append(descriptor("2024-03-01T00:00:00Z"), "ignored=true\n"...))
	repo := NewUnitRepository(mem)
	ctx := context.Background()

	u, err := repo.Get(ctx, "a.merge")
	require.NoError(t, err)
	require.Equal(t, mergeunit.StatusTodo, u.Status)

	mem.FailNext("write", storeError("write", "todo/a.merge", assert.AnError))
	require.Error(t, repo.MoveTo(ctx, u, mergeunit.StatusDone))
	assert.Equal(t, mergeunit.StatusTodo, u.Status)
	assert.Equal(t, []string{"todo/a.merge"}, mem.Paths())
}

func TestGetUnknownUnit(t *testing.T) {
	_, err := NewUnitRepository(NewMemory()).Get(context.Background(), "nope.merge")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSaveWritesIntoStatusFolder(t *testing.T) {
	mem := NewMemory()
	repo := NewUnitRepository(mem)
	u, err := mergeunit.Parse("a.merge", "", mergeunit.FolderManual, descriptor("2024-03-01T00:00:00Z"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), u))
	assert.Equal(t, "manual/a.merge", u.RemotePath)
}
