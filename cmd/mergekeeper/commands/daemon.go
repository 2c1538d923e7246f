package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/config"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/metrics"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/prompt"
	"git.home.luguber.info/inful/mergekeeper/internal/refresh"
	"git.home.luguber.info/inful/mergekeeper/internal/store"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Automatic bool   `help:"Merge new TODO units without interaction (overrides the configuration)"`
	Listen    string `help:"Metrics listen address (overrides the configuration)"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if d.Automatic {
		app.Config.Refresh.Automatic = true
	}
	if d.Listen != "" {
		app.Config.Metrics.ListenAddr = d.Listen
	}
	return RunDaemon(ctx, app)
}

// RunDaemon runs the refresh loop until ctx ends. The metrics endpoint and the
// store watcher are started when configured.
func RunDaemon(ctx context.Context, app *App) error {
	cfg := app.Config
	slog.Info("Starting daemon mode",
		slog.String("data_dir", cfg.DataDir),
		slog.String("store", string(cfg.Store.Type)))

	loop := refresh.New(app.Repo, app.Orch, refresh.Options{
		Interval:  cfg.Refresh.Interval,
		Automatic: cfg.Refresh.Automatic,
		Renames:   app.Renames,
		History:   app.History,
		Publisher: app.Notify,
		Recorder:  app.Recorder,
		Progress:  &prompt.LogProgress{},
		OnNew: func(units []*mergeunit.MergeUnit) {
			slog.Info("New merge units arrived", logfields.Count(len(units)))
		},
	})
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := loop.Stop(); err != nil {
			slog.Warn("Failed to stop refresh loop", logfields.Error(err))
		}
	}()

	if cfg.Store.Type == config.StoreTypeFS && cfg.Store.Watch {
		changes, err := store.Watch(ctx, cfg.Store.Root, 0)
		if err != nil {
			slog.Warn("Store watcher unavailable, relying on periodic refresh", logfields.Error(err))
		} else {
			loop.TriggerOn(ctx, changes)
		}
	}

	errChan := make(chan error, 1)
	var srv *http.Server
	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(app.Registry))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("Serving metrics", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	slog.Info("Daemon started, waiting for shutdown signal...")
	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	if srv != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			slog.Warn("Failed to stop metrics server", logfields.Error(err))
		}
	}
	slog.Info("Daemon stopped")
	return runErr
}
