package mergeunit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs/vcstest"
)

func TestRenameMappingIsComputedOnce(t *testing.T) {
	u, err := Parse("1234.merge", "todo/1234.merge", FolderTodo, []byte(svnDescriptor))
	require.NoError(t, err)

	var calls atomic.Int32
	src := RenameSourceFunc(func(_ context.Context, u *MergeUnit) (RenameMapping, error) {
		calls.Add(1)
		return RenameMapping{{Source: "core/Loader.java", Target: "loader/Loader.java"}, {Source: "pom.xml", Target: "pom.xml"}}, nil
	})

	for range 3 {
		has, err := u.HasRenaming(context.Background(), src)
		require.NoError(t, err)
		assert.True(t, has)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, u.SetRenameMapping(IdentityMapping(u.SourceFiles)))
}

func TestRenameFailureIsKeptForInstance(t *testing.T) {
	u, err := Parse("1234.merge", "todo/1234.merge", FolderTodo, []byte(svnDescriptor))
	require.NoError(t, err)
	boom := errors.New("boom")
	_, err = u.RenameMapping(context.Background(), RenameSourceFunc(func(context.Context, *MergeUnit) (RenameMapping, error) {
		return nil, boom
	}))
	require.ErrorIs(t, err, boom)
	_, err = u.RenameMapping(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestUnitsWithoutCapabilityAreIdentity(t *testing.T) {
	u, err := Parse("g.merge", "todo/g.merge", FolderTodo, []byte(gitDescriptor))
	require.NoError(t, err)
	src := RenameSourceFunc(func(context.Context, *MergeUnit) (RenameMapping, error) {
		t.Fatal("source must not be consulted")
		return nil, nil
	})
	m, err := u.RenameMapping(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, IdentityMapping([]string{"src/app.go"}), m)
	assert.False(t, m.HasRenaming())
}

func TestSetRenameMapping(t *testing.T) {
	u := &MergeUnit{Capabilities: CapRenameMapping, SourceFiles: []string{"a"}}
	assert.True(t, u.SetRenameMapping(RenameMapping{{Source: "a", Target: "b"}}))
	has, err := u.HasRenaming(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, has)

	target, ok := RenameMapping{{Source: "a", Target: "b"}}.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "b", target)
}

func TestProbeSource(t *testing.T) {
	u, err := Parse("1234.merge", "todo/1234.merge", FolderTodo, []byte(svnDescriptor))
	require.NoError(t, err)

	fake := vcstest.New()
	fake.SetFile("https://svn.example.org/product/branches/1.x/pom.xml", []byte("<project/>"))
	reg := vcs.NewRegistry()
	reg.Register(vcs.KindSVN, fake)

	m, err := ProbeSource{Clients: reg}.ResolveRenames(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, RenameMapping{
		{Source: "core/Loader.java", Target: "loader/Loader.java"},
		{Source: "pom.xml", Target: "pom.xml"},
	}, m)
	assert.Equal(t, 2, fake.Calls("cat"))

	// the source path still exists on the target branch: no rename needed
	fake.SetFile("https://svn.example.org/product/branches/1.x/core/Loader.java", []byte("class Loader {}"))
	m, err = ProbeSource{Clients: reg}.ResolveRenames(context.Background(), u)
	require.NoError(t, err)
	assert.False(t, m.HasRenaming())

	fake.FailAlways("cat", vcs.Wrap("cat", "x", vcs.ErrTransport, errors.New("connection refused")))
	_, err = ProbeSource{Clients: reg}.ResolveRenames(context.Background(), u)
	assert.Error(t, err)
}
