package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"git.home.luguber.info/inful/mergekeeper/internal/linkedartifact"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct{}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	ctx := context.Background()
	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	client, err := app.Clients.For(vcs.KindSVN)
	if err != nil {
		return err
	}
	return RunWatch(ctx, app, client, os.Stdout)
}

// RunWatch checks every configured linked artifact once. A failing artifact
// is logged and does not stop the others; the first failure is returned.
func RunWatch(ctx context.Context, app *App, client vcs.Client, out io.Writer) error {
	if len(app.Config.LinkedArtifacts) == 0 {
		_, _ = fmt.Fprintln(out, "no linked artifacts configured")
		return nil
	}
	var first error
	for _, a := range app.Config.LinkedArtifacts {
		entries, err := checkArtifact(ctx, a.URL, a.User, a.StateFile, client)
		if err != nil {
			slog.Error("Linked artifact check failed", logfields.URL(a.URL), logfields.Error(err))
			if first == nil {
				first = err
			}
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: %d new commit(s) by %s\n", a.URL, len(entries), a.User)
		for _, e := range entries {
			msg, _, _ := strings.Cut(e.Message, "\n")
			_, _ = fmt.Fprintf(out, "  r%d %s %s\n", e.Revision, e.Date.Format("2006-01-02 15:04"), msg)
		}
	}
	return first
}

func checkArtifact(ctx context.Context, url, user, statePath string, client vcs.Client) ([]vcs.LogEntry, error) {
	w, err := linkedartifact.GetOrCreate(ctx, url, statePath, client)
	if err != nil {
		return nil, err
	}
	return w.CheckForNew(ctx, user)
}
