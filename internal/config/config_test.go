package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
store:
  root: /srv/merges
linked_artifacts:
  - url: https://svn.example.org/repo/trunk
    user: alice
`))
	require.NoError(t, err)

	assert.Equal(t, StoreTypeFS, cfg.Store.Type)
	assert.Equal(t, RetryBackoffLinear, cfg.Store.Retry.Mode)
	assert.Equal(t, time.Second, cfg.Store.Retry.Initial)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval)
	assert.Equal(t, "pom.xml", cfg.Versions.DescriptorName)
	assert.Equal(t, []string{"pom.xml", "trunk/pom.xml"}, cfg.Versions.CandidatePaths)
	assert.Equal(t, 20, cfg.Versions.CacheSize)
	assert.Equal(t, "svn", cfg.VCS.SVNBinary)
	assert.Equal(t, filepath.Join("./mergekeeper-data", "history.db"), cfg.History.Path)
	require.Len(t, cfg.LinkedArtifacts, 1)
	assert.Contains(t, cfg.LinkedArtifacts[0].StateFile, filepath.Join("mergekeeper-data", "linked"))
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("MK_STORE_ROOT", "/data/merge-units")

	cfg, err := Parse([]byte("store:\n  root: ${MK_STORE_ROOT}\nrefresh:\n  interval: 90s\n  automatic: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "/data/merge-units", cfg.Store.Root)
	assert.Equal(t, 90*time.Second, cfg.Refresh.Interval)
	assert.True(t, cfg.Refresh.Automatic)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"fs without root", "store:\n  type: fs\n"},
		{"gcs without bucket", "store:\n  type: gcs\n"},
		{"gcs with watch", "store:\n  type: gcs\n  bucket: b\n  watch: true\n"},
		{"unknown store", "store:\n  type: ftp\n  root: /x\n"},
		{"artifact without user", "store:\n  root: /x\nlinked_artifacts:\n  - url: svn://h/r\n"},
		{"initial above max", "store:\n  root: /x\n  retry:\n    initial: 20s\n    max: 5s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestInitWritesLoadableExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergekeeper.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err, "second init without force must refuse")
	require.NoError(t, Init(path, true))

	t.Setenv("SVN_USERNAME", "bot")
	t.Setenv("SVN_PASSWORD", "secret")
	t.Setenv("USER", "alice")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bot", cfg.VCS.Username)
	assert.Equal(t, "/mnt/merges", cfg.Store.Root)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNormalizeRetryBackoff(t *testing.T) {
	assert.Equal(t, RetryBackoffExponential, NormalizeRetryBackoff(" Exponential "))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("random"))
}

func TestParseNormalizesEnums(t *testing.T) {
	cfg, err := Parse([]byte("store:\n  type: ' GCS '\n  bucket: merges\n  retry:\n    mode: Exponential\n"))
	require.NoError(t, err)
	assert.Equal(t, StoreTypeGCS, cfg.Store.Type)
	assert.Equal(t, RetryBackoffExponential, cfg.Store.Retry.Mode)
}
