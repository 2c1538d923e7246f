package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/mergekeeper/internal/orchestrator"
	"git.home.luguber.info/inful/mergekeeper/internal/prompt"
)

// MergeCmd implements the 'merge' command.
type MergeCmd struct {
	File string `arg:"" help:"Descriptor file name"`
}

func (m *MergeCmd) Run(_ *Global, root *CLI) error {
	// Interrupting a running merge cancels it; the unit then moves to CANCELLED.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	u, err := app.Repo.Get(ctx, m.File)
	if err != nil {
		return err
	}
	outcome, err := app.Orch.Merge(ctx, u, prompt.NewTerminal(root.Verbose), &prompt.LogProgress{})
	fmt.Printf("%s: %s\n", u.FileName, outcome)
	return err
}

// IgnoreCmd implements the 'ignore' command.
type IgnoreCmd struct {
	File string `arg:"" help:"Descriptor file name"`
}

func (i *IgnoreCmd) Run(_ *Global, root *CLI) error {
	ctx := context.Background()
	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return RunIgnore(ctx, app, i.File, prompt.NewTerminal(root.Verbose), os.Stdout)
}

// RunIgnore moves a unit to IGNORED, asking p when the unit is already DONE.
func RunIgnore(ctx context.Context, app *App, file string, p orchestrator.Prompter, out io.Writer) error {
	u, err := app.Repo.Get(ctx, file)
	if err != nil {
		return err
	}
	moved, err := app.Orch.Ignore(ctx, u, p)
	if err != nil {
		return err
	}
	report(out, u.FileName, moved, "ignored")
	return nil
}

// RequeueCmd implements the 'requeue' command.
type RequeueCmd struct {
	File string `arg:"" help:"Descriptor file name"`
}

func (r *RequeueCmd) Run(_ *Global, root *CLI) error {
	ctx := context.Background()
	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return RunRequeue(ctx, app, r.File, prompt.NewTerminal(root.Verbose), os.Stdout)
}

// RunRequeue moves a settled unit back to TODO after p confirmed it.
func RunRequeue(ctx context.Context, app *App, file string, p orchestrator.Prompter, out io.Writer) error {
	u, err := app.Repo.Get(ctx, file)
	if err != nil {
		return err
	}
	moved, err := app.Orch.Requeue(ctx, u, p)
	if err != nil {
		return err
	}
	report(out, u.FileName, moved, "re-queued")
	return nil
}

func report(out io.Writer, name string, changed bool, verb string) {
	if changed {
		_, _ = fmt.Fprintf(out, "%s: %s\n", name, verb)
		return
	}
	_, _ = fmt.Fprintf(out, "%s: unchanged\n", name)
}
