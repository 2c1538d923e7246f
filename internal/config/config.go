package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/normalization"
)

// StoreType selects the RemoteUnitStore backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeGCS StoreType = "gcs"
)

var storeTypes = normalization.NewEnum("store type", map[string]StoreType{
	string(StoreTypeFS):  StoreTypeFS,
	string(StoreTypeGCS): StoreTypeGCS,
}, "")

// Config represents the application configuration.
type Config struct {
	DataDir         string           `yaml:"data_dir,omitempty"`
	Store           StoreConfig      `yaml:"store"`
	VCS             VCSConfig        `yaml:"vcs,omitempty"`
	Refresh         RefreshConfig    `yaml:"refresh,omitempty"`
	Workspace       WorkspaceConfig  `yaml:"workspace,omitempty"`
	Versions        VersionsConfig   `yaml:"versions,omitempty"`
	LinkedArtifacts []LinkedArtifact `yaml:"linked_artifacts,omitempty"`
	History         HistoryConfig    `yaml:"history,omitempty"`
	Metrics         MetricsConfig    `yaml:"metrics,omitempty"`
	Notify          NotifyConfig     `yaml:"notify,omitempty"`
}

// StoreConfig locates the remote unit store.
type StoreConfig struct {
	Type   StoreType   `yaml:"type"`
	Root   string      `yaml:"root,omitempty"`   // fs: directory holding todo/done/...
	Bucket string      `yaml:"bucket,omitempty"` // gcs bucket name
	Prefix string      `yaml:"prefix,omitempty"` // gcs object prefix
	Watch  bool        `yaml:"watch,omitempty"`  // fs: trigger refresh on file changes
	Retry  RetryConfig `yaml:"retry,omitempty"`
}

// VCSConfig configures the command-line backends.
type VCSConfig struct {
	SVNBinary      string `yaml:"svn_binary,omitempty"`
	GitBinary      string `yaml:"git_binary,omitempty"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	NonInteractive bool   `yaml:"non_interactive,omitempty"`
}

// RefreshConfig controls the periodic store refresh.
type RefreshConfig struct {
	Interval  time.Duration `yaml:"interval,omitempty"`
	Automatic bool          `yaml:"automatic,omitempty"`
}

// WorkspaceConfig controls where ephemeral working copies are created.
type WorkspaceConfig struct {
	BaseDir string `yaml:"base_dir,omitempty"`
	Keep    bool   `yaml:"keep,omitempty"`
}

// VersionsConfig configures build-descriptor version lookup.
type VersionsConfig struct {
	DescriptorName string   `yaml:"descriptor_name,omitempty"`
	CandidatePaths []string `yaml:"candidate_paths,omitempty"`
	CacheSize      int      `yaml:"cache_size,omitempty"`
}

// LinkedArtifact is a repository URL watched for new commits by a user.
type LinkedArtifact struct {
	URL       string `yaml:"url"`
	User      string `yaml:"user"`
	StateFile string `yaml:"state_file,omitempty"`
}

// HistoryConfig locates the sqlite transition history.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// NotifyConfig configures NATS notifications.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write configuration file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

const exampleConfig = `# mergekeeper configuration
data_dir: ./mergekeeper-data

store:
  type: fs
  root: /mnt/merges
  watch: true
  retry:
    mode: linear
    initial: 1s
    max: 10s
    max_retries: 2

vcs:
  svn_binary: svn
  git_binary: git
  username: ${SVN_USERNAME}
  password: ${SVN_PASSWORD}
  non_interactive: true

refresh:
  interval: 5m
  automatic: false

versions:
  descriptor_name: pom.xml
  candidate_paths:
    - pom.xml
    - trunk/pom.xml

linked_artifacts:
  - url: https://svn.example.org/repos/project/trunk
    user: ${USER}

metrics:
  listen_addr: ":9464"
`
