package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/renames"
)

// ListCmd implements the 'list' command.
type ListCmd struct {
	Status  string        `short:"s" help:"Only list units with this status (todo, done, ignored, cancelled, manual)"`
	Renames bool          `help:"Check TODO units for renamed files"`
	Wait    time.Duration `help:"How long to wait for rename checks before reporting them as pending" default:"5s"`
}

func (l *ListCmd) Run(_ *Global, root *CLI) error {
	ctx := context.Background()
	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return RunList(ctx, app, l, os.Stdout)
}

// RunList prints the units of the store, optionally filtered by status. Rename
// answers that are not ready are shown as pending.
func RunList(ctx context.Context, app *App, l *ListCmd, out io.Writer) error {
	units, err := app.Repo.LoadAll(ctx)
	if err != nil {
		return err
	}
	if l.Status != "" {
		s, err := mergeunit.ParseStatus(l.Status)
		if err != nil {
			return err
		}
		units = mergeunit.Filter(units, s)
	}
	if l.Renames {
		awaitRenames(ctx, app.Renames, mergeunit.Filter(units, mergeunit.StatusTodo), l.Wait)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tFILE\tHOST\tREPOSITORY\tDATE\tREVISIONS\tRENAMES")
	for _, u := range units {
		renamed := "-"
		if u.Status == mergeunit.StatusTodo {
			renamed = renamingLabel(app.Renames, u)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			u.Status, u.FileName, u.Host, u.Repository, u.Date.Format("2006-01-02 15:04"), u.RevisionInfo, renamed)
	}
	return w.Flush()
}

// awaitRenames starts the rename checks of units and waits at most d for them.
func awaitRenames(ctx context.Context, r *renames.Resolver, units []*mergeunit.MergeUnit, d time.Duration) {
	if r == nil || len(units) == 0 {
		return
	}
	results := make([]*renames.Result, len(units))
	for i, u := range units {
		results[i] = r.HasRenaming(ctx, u)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for _, res := range results {
		select {
		case <-res.Done():
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ShowCmd implements the 'show' command.
type ShowCmd struct {
	File     string `arg:"" help:"Descriptor file name"`
	Versions bool   `help:"Look up the project version of source and target branch"`
	Strategy bool   `help:"Determine the merge strategy (may probe the target branch)"`
}

func (s *ShowCmd) Run(_ *Global, root *CLI) error {
	ctx := context.Background()
	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return RunShow(ctx, app, s, os.Stdout)
}

// RunShow prints the details of one unit.
func RunShow(ctx context.Context, app *App, s *ShowCmd, out io.Writer) error {
	u, err := app.Repo.Get(ctx, s.File)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	row := func(k, v string) { _, _ = fmt.Fprintf(w, "%s:\t%s\n", k, v) }
	row("File", u.FileName)
	row("Status", string(u.Status))
	row("VCS", string(u.Kind))
	row("Host", u.Host)
	row("Repository", u.Repository)
	row("Date", u.Date.Format("2006-01-02 15:04:05"))
	row("Source", u.SourceURL())
	row("Target", u.TargetURL())
	row("Revisions", strings.Join(u.MergeRevisions(), ", "))
	for i, f := range u.SourceFiles {
		target := f
		if i < len(u.TargetFiles) {
			target = u.TargetFiles[i]
		}
		if target == f {
			row("File", f)
		} else {
			row("File", f+" -> "+target)
		}
	}

	if s.Strategy {
		strategy, err := app.Orch.Strategy(ctx, u)
		if err != nil {
			return err
		}
		row("Strategy", string(strategy))
	}
	row("Renames", renamingLabel(app.Renames, u))
	if s.Versions {
		versions, err := app.Versions(u.Kind)
		if err != nil {
			return err
		}
		row("Source version", versions.ForURL(ctx, u.SourceURL()))
		row("Target version", versions.ForURL(ctx, u.TargetURL()))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\n%s\n", u.CommitMessage())
	return nil
}
