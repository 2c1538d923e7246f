package mergeunit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

func TestParseSVNDescriptor(t *testing.T) {
	u, err := Parse("1234.merge", "todo/1234.merge", FolderTodo, []byte(svnDescriptor))
	require.NoError(t, err)

	assert.Equal(t, StatusTodo, u.Status)
	assert.Equal(t, vcs.KindSVN, u.Kind)
	assert.Equal(t, "svn.example.org", u.Host)
	assert.Equal(t, "product", u.Repository)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC), u.Date)
	assert.Equal(t, "r1234-r1236", u.RevisionInfo)
	assert.Equal(t, []string{"core/Loader.java", "pom.xml"}, u.SourceFiles)
	assert.Equal(t, []string{"loader/Loader.java", "pom.xml"}, u.TargetFiles)
	assert.True(t, u.Capabilities.Has(CapRenameMapping))
	require.NotNil(t, u.SVN)
	assert.Nil(t, u.Git)
	assert.Equal(t, []int64{1234, 1236}, u.SVN.Revisions)

	require.Len(t, u.Script, 4)
	assert.Equal(t, ScriptLine{Kind: ScriptWarning, Text: "target branch is frozen until Friday"}, u.Script[0])
	assert.Equal(t, ScriptInfo, u.Script[1].Kind)
	assert.Equal(t, ScriptCommentComplete, u.Script[2].Kind)
	assert.Equal(t, ScriptLine{Kind: ScriptComment, Text: "ping the release manager"}, u.Script[3])
}

func TestParseGitDescriptor(t *testing.T) {
	u, err := Parse("abc.merge", "done/abc.merge", FolderDone, []byte(gitDescriptor))
	require.NoError(t, err)

	assert.Equal(t, StatusDone, u.Status)
	assert.Equal(t, vcs.KindGit, u.Kind)
	require.NotNil(t, u.Git)
	assert.Equal(t, "https://git.example.org/app.git#release/2.x", u.TargetURL())
	assert.False(t, u.Capabilities.Has(CapRenameMapping))
	assert.Equal(t, "0123456789ab", u.RevisionInfo)
}

func TestIgnoredFlagSharesDoneFolder(t *testing.T) {
	data := []byte(svnDescriptor + "ignored=true\n")
	u, err := Parse("1234.merge", "done/1234.merge", FolderDone, data)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, u.Status)

	legacy, err := Parse("1234.merge", "ignored/1234.merge", FolderIgnored, []byte(svnDescriptor))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, legacy.Status)
}

func TestFormatKeepsStatusFlagAndRenames(t *testing.T) {
	u, err := Parse("1234.merge", "todo/1234.merge", FolderTodo, []byte(svnDescriptor))
	require.NoError(t, err)
	u.Status = StatusIgnored

	again, err := Parse("1234.merge", "done/1234.merge", FolderDone, Format(u))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, again.Status)
	assert.True(t, Equal(u, again))
	assert.Equal(t, u.Script, again.Script)
	assert.Equal(t, u.SVN.Message, again.SVN.Message)

	u.Status = StatusDone
	assert.NotContains(t, string(Format(u)), "ignored=")
}

func TestParseLatin1(t *testing.T) {
	data := []byte(svnDescriptor + "# Gr\xfc\xdfe\n")
	u, err := Parse("1234.merge", "todo/1234.merge", FolderTodo, data)
	require.NoError(t, err)
	assert.Equal(t, "Grüße", u.Script[len(u.Script)-1].Text)
}

func TestParseKeepsUnknownHeaders(t *testing.T) {
	u, err := Parse("1234.merge", "todo/1234.merge", FolderTodo, []byte(svnDescriptor+"ticket=PRJ-42\n"))
	require.NoError(t, err)
	assert.Equal(t, []Header{{Key: "ticket", Value: "PRJ-42"}}, u.Extra)
	assert.Contains(t, string(Format(u)), "ticket=PRJ-42\n")
}

func TestParseRejectsBadDescriptors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing fields", "vcs=svn\nhost=h\n"},
		{"bad date", "date=yesterday\n"},
		{"bad revision", "revisions=12,abc\n"},
		{"unknown vcs", "vcs=hg\n"},
		{"garbage line", "this is not a header\n"},
		{"empty file", "file==>x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("x.merge", "todo/x.merge", FolderTodo, []byte(tt.data))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
		})
	}
}

func TestParseRequiresAffectedFiles(t *testing.T) {
	var kept []string
	for _, line := range strings.Split(svnDescriptor, "\n") {
		if !strings.HasPrefix(line, "file=") {
			kept = append(kept, line)
		}
	}
	_, err := Parse("x.merge", "todo/x.merge", FolderTodo, []byte(strings.Join(kept, "\n")))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	missing, _ := ce.Context().GetString("missing")
	assert.Equal(t, "file", missing)
}

func TestSetIgnoredFlag(t *testing.T) {
	data := []byte("host=h\n# note\nignored=false\nfile=a")
	assert.Equal(t, "host=h\n# note\nfile=a\nignored=true\n", string(SetIgnoredFlag(data, true)))
	assert.Equal(t, "host=h\n# note\nfile=a", string(SetIgnoredFlag(data, false)))
}
