package mergeunit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableIsClosed(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusTodo, StatusDone}:      false,
		{StatusTodo, StatusCancelled}: false,
		{StatusTodo, StatusManual}:    false,
		{StatusTodo, StatusIgnored}:   false,
		{StatusDone, StatusTodo}:      true,
		{StatusIgnored, StatusTodo}:   true,
		{StatusManual, StatusTodo}:    true,
		{StatusCancelled, StatusTodo}: true,
		{StatusDone, StatusIgnored}:   true,
	}
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			confirm, ok := allowed[[2]Status{from, to}]
			assert.Equal(t, ok, CanTransition(from, to), "%s -> %s", from, to)
			assert.Equal(t, confirm, RequiresConfirmation(from, to), "%s -> %s confirmation", from, to)
		}
	}
}

func TestOnlyTodoToDoneAndCancelledAreAutomatic(t *testing.T) {
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := from == StatusTodo && (to == StatusDone || to == StatusCancelled)
			assert.Equal(t, want, IsAutomatic(from, to), "%s -> %s", from, to)
		}
	}
}

func TestFolderMapping(t *testing.T) {
	assert.Equal(t, FolderTodo, StatusTodo.Folder())
	assert.Equal(t, FolderDone, StatusDone.Folder())
	assert.Equal(t, FolderDone, StatusIgnored.Folder())
	assert.Equal(t, FolderCanceled, StatusCancelled.Folder())
	assert.Equal(t, FolderManual, StatusManual.Folder())

	for _, tc := range []struct {
		folder  Folder
		ignored bool
		want    Status
	}{
		{FolderTodo, false, StatusTodo},
		{FolderDone, false, StatusDone},
		{FolderDone, true, StatusIgnored},
		{FolderIgnored, false, StatusIgnored},
		{FolderCanceled, false, StatusCancelled},
		{FolderManual, true, StatusManual},
	} {
		got, err := StatusFor(tc.folder, tc.ignored)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s ignored=%v", tc.folder, tc.ignored)
	}

	_, err := StatusFor("archive", false)
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("todo")
	require.NoError(t, err)
	assert.Equal(t, StatusTodo, s)

	s, err = ParseStatus("canceled")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, s)

	_, err = ParseStatus("pending")
	assert.Error(t, err)

	assert.False(t, StatusTodo.Settled())
	assert.True(t, StatusManual.Settled())
}
