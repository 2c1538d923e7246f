package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/workspace"
)

// runEphemeral merges in a sparse working copy covering only the affected
// files and commits on success. Cancellation moves the unit to CANCELLED;
// any other failure is shown and leaves it TODO.
func (a *attempt) runEphemeral(ctx context.Context) (Outcome, error) {
	u := a.unit
	revisions := u.MergeRevisions()
	a.progress.Begin("Merging "+u.FileName, 4+len(revisions))

	ws := workspace.NewManager(a.o.workspaceBase, u.FileName).WithKeep(a.o.keepWorkspace)
	if err := ws.Create(); err != nil {
		a.prompter.ShowError(u, err)
		return OutcomeFailed, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to remove working copy", logfields.Path(ws.GetPath()), logfields.Error(err))
		}
	}()
	wc := ws.GetPath()

	err := a.mergeEphemeral(ctx, wc)
	switch {
	case err == nil:
		// committed; the move must not be skipped by a late cancellation
		if err := a.o.move(context.WithoutCancel(ctx), u, mergeunit.StatusDone, a.id); err != nil {
			a.prompter.ShowError(u, err)
			return OutcomeFailed, err
		}
		return OutcomeDone, nil
	case cancelled(ctx, err):
		if err := a.o.move(context.WithoutCancel(ctx), u, mergeunit.StatusCancelled, a.id); err != nil {
			a.prompter.ShowError(u, err)
			return OutcomeFailed, err
		}
		return OutcomeCancelled, nil
	default:
		a.prompter.ShowError(u, err)
		return OutcomeFailed, err
	}
}

func (a *attempt) mergeEphemeral(ctx context.Context, wc string) error {
	u := a.unit
	if err := a.step(ctx, "checkout"); err != nil {
		return err
	}
	if err := a.client.CheckoutEmpty(ctx, wc, u.TargetURL()); err != nil {
		return err
	}

	if err := a.step(ctx, "update"); err != nil {
		return err
	}
	// the working copy is of the target branch, so it needs the target paths
	paths := make([]string, len(u.TargetFiles))
	for i, f := range u.TargetFiles {
		paths[i] = filepath.Join(wc, filepath.FromSlash(f))
	}
	if _, err := a.client.UpdateEmpty(ctx, paths); err != nil {
		return err
	}

	if err := a.applyRevisions(ctx, wc); err != nil {
		return err
	}

	if err := a.step(ctx, "check conflicts"); err != nil {
		return err
	}
	conflicts, err := a.client.HasConflicts(ctx, wc)
	if err != nil {
		return err
	}
	if conflicts {
		return a.conflictError(wc)
	}

	if err := a.step(ctx, "commit"); err != nil {
		return err
	}
	rev, err := a.client.Commit(ctx, wc, u.CommitMessage())
	if err != nil {
		return err
	}
	a.revision = rev
	slog.Info("Committed merge", logfields.Unit(u.FileName), logfields.Revision(rev), logfields.AttemptID(a.id))
	return nil
}
