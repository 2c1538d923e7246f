package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mergekeeper/internal/config"
	"git.home.luguber.info/inful/mergekeeper/internal/eventstore"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/metrics"
	"git.home.luguber.info/inful/mergekeeper/internal/notify"
	"git.home.luguber.info/inful/mergekeeper/internal/orchestrator"
	"git.home.luguber.info/inful/mergekeeper/internal/renames"
	"git.home.luguber.info/inful/mergekeeper/internal/retry"
	"git.home.luguber.info/inful/mergekeeper/internal/store"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs/gitvcs"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs/svn"
	"git.home.luguber.info/inful/mergekeeper/internal/versionresolver"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"mergekeeper.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	List    ListCmd    `cmd:"" help:"List merge units"`
	Show    ShowCmd    `cmd:"" help:"Show one merge unit"`
	Merge   MergeCmd   `cmd:"" help:"Merge a unit"`
	Ignore  IgnoreCmd  `cmd:"" help:"Mark a unit as ignored"`
	Requeue RequeueCmd `cmd:"" help:"Put a settled unit back into TODO"`
	Daemon  DaemonCmd  `cmd:"" help:"Refresh the store periodically and merge automatically if configured"`
	Resolve ResolveCmd `cmd:"" name:"version" help:"Print the project version found at a branch URL"`
	Watch   WatchCmd   `cmd:"" help:"Report new commits on the configured linked artifacts"`
	History HistoryCmd `cmd:"" help:"Show the recorded history of a unit, or a summary of all units"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// App bundles the components a command works with. Close releases all of them.
type App struct {
	Config   *config.Config
	Store    store.Store
	Repo     *store.UnitRepository
	Clients  *vcs.Registry
	Renames  *renames.Resolver
	Orch     *orchestrator.Orchestrator
	History  *eventstore.SQLiteStore
	Notify   notify.Publisher
	Recorder *metrics.PrometheusRecorder
	Registry *prom.Registry
}

// Open loads the configuration and builds every component from it.
func Open(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, cfg)
}

// NewApp builds the components for cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: prom.NewRegistry()}
	a.Recorder = metrics.NewPrometheusRecorder(a.Registry)

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.Repo = store.NewUnitRepository(st)

	a.Clients = vcs.NewRegistry()
	a.Clients.Register(vcs.KindSVN, svn.New(svn.Options{
		Binary:   cfg.VCS.SVNBinary,
		Username: cfg.VCS.Username,
		Password: cfg.VCS.Password,
	}))
	a.Clients.Register(vcs.KindGit, gitvcs.New(gitvcs.Options{
		Binary:   cfg.VCS.GitBinary,
		Username: cfg.VCS.Username,
		Password: cfg.VCS.Password,
		CacheDir: filepath.Join(cfg.DataDir, "git-mirrors"),
	}))

	history, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.History = history

	a.Notify = notify.NoopPublisher{}
	if cfg.Notify.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(cfg.Notify)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Notify = pub
	}

	a.Renames = renames.New(mergeunit.ProbeSource{Clients: a.Clients},
		renames.WithRecorder(a.Recorder),
		renames.WithNotify(renamingChecked))
	a.Orch = orchestrator.New(a.Repo, a.Clients, a.Renames,
		orchestrator.WithWorkspace(cfg.Workspace.BaseDir, cfg.Workspace.Keep),
		orchestrator.WithHistory(a.History),
		orchestrator.WithPublisher(a.Notify),
		orchestrator.WithRecorder(a.Recorder))
	return a, nil
}

func openStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Type {
	case config.StoreTypeGCS:
		st, err = store.NewGCSStore(ctx, c.Bucket, c.Prefix)
	case config.StoreTypeFS:
		st, err = store.NewFSStore(c.Root)
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown store type %q", c.Type)).Build()
	}
	if err != nil {
		return nil, err
	}
	if c.Retry.MaxRetries == 0 {
		return st, nil
	}
	return store.NewRetrying(st, retry.NewPolicy(c.Retry.Mode, c.Retry.Initial, c.Retry.Max, c.Retry.MaxRetries)), nil
}

// renamingChecked announces units that cannot take the ephemeral strategy.
// Failures are logged by the resolver.
func renamingChecked(u *mergeunit.MergeUnit, hasRenaming bool, err error) {
	if err != nil || !hasRenaming {
		return
	}
	slog.Info("Merge unit touches renamed files and needs a workspace merge",
		logfields.Unit(u.FileName),
		slog.String("target", u.TargetURL()))
}

// renamingLabel describes the rename answer for u without blocking.
func renamingLabel(r *renames.Resolver, u *mergeunit.MergeUnit) string {
	if r == nil || !r.IsResultAvailable(u) {
		return "pending"
	}
	has, err := r.HasRenaming(context.Background(), u).Value()
	switch {
	case err != nil:
		return "error"
	case has:
		return "yes"
	default:
		return "no"
	}
}

// Versions returns a version resolver for backends of kind.
func (a *App) Versions(kind vcs.Kind) (*versionresolver.Resolver, error) {
	client, err := a.Clients.For(kind)
	if err != nil {
		return nil, err
	}
	opts := versionresolver.OptionsFromConfig(a.Config.Versions)
	opts.Recorder = a.Recorder
	if kind == vcs.KindGit {
		opts.JoinURL = func(base, rel string) string { return base + ":" + strings.TrimPrefix(rel, "/") }
	}
	return versionresolver.New(client, opts), nil
}

// Close releases every opened component. Errors are logged.
func (a *App) Close() error {
	var first error
	closeOne := func(name string, fn func() error) {
		if err := fn(); err != nil {
			slog.Warn("Failed to close component", slog.String("component", name), logfields.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	if a.Notify != nil {
		closeOne("notify", a.Notify.Close)
	}
	if a.History != nil {
		closeOne("history", a.History.Close)
	}
	if a.Clients != nil {
		closeOne("vcs", a.Clients.Close)
	}
	if a.Store != nil {
		closeOne("store", a.Store.Close)
	}
	return first
}
