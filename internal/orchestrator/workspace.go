package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/workspace"
)

// runWorkspace merges into a developer working copy. Failed attempts are
// retried only when the user asks for it. The unit leaves TODO only through
// the final Commit or Close action.
func (a *attempt) runWorkspace(ctx context.Context) (Outcome, error) {
	u := a.unit
	a.progress.Begin("Merging "+u.FileName+" into workspace", 2+len(u.MergeRevisions()))

	ws, ok := a.selectWorkspace(ctx)
	if !ok {
		return OutcomeAbandoned, nil
	}
	if err := ws.Create(); err != nil {
		a.prompter.ShowError(u, err)
		return OutcomeFailed, err
	}
	path := ws.GetPath()

	dirty, err := a.client.HasModifications(ctx, path)
	if err != nil {
		a.prompter.ShowError(u, err)
		return OutcomeFailed, err
	}
	if dirty {
		slog.Info("Workspace has local modifications", logfields.Unit(u.FileName), logfields.Path(path))
	}

	state := StateAttempting
	var lastErr error
	for !state.Terminal() {
		var ev Event
		switch state {
		case StateAttempting:
			if lastErr = a.applyRevisions(ctx, path); lastErr != nil {
				ev = EventMergeFailed
			} else {
				ev = EventMergeSucceeded
			}
		case StateAwaitingChoice:
			if ctx.Err() == nil && a.prompter.AskRetry(u, lastErr) {
				ev = EventRetry
			} else {
				ev = EventAbandon
			}
		}
		next, _ := Next(state, ev)
		slog.Debug("Workspace merge state", logfields.Unit(u.FileName), slog.String("from", state.String()), slog.String("to", next.String()))
		state = next
	}
	if state == StateAbandoned {
		slog.Info("Workspace merge abandoned", logfields.Unit(u.FileName), logfields.Error(lastErr))
		return OutcomeAbandoned, nil
	}

	return a.finishWorkspace(ctx, path, dirty)
}

// selectWorkspace asks until the user picks a working copy of the unit's
// target branch or gives up.
func (a *attempt) selectWorkspace(ctx context.Context) (*workspace.Manager, bool) {
	want := a.unit.TargetURL()
	for {
		path, ok := a.prompter.SelectWorkspace(a.unit)
		if !ok || ctx.Err() != nil {
			return nil, false
		}
		got, err := a.client.URLOf(ctx, path)
		if err != nil {
			slog.Debug("Rejected workspace", logfields.Path(path), logfields.Error(err))
			a.prompter.ReportInvalidWorkspace(path, want, "")
			continue
		}
		if !sameURL(got, want) {
			a.prompter.ReportInvalidWorkspace(path, want, got)
			continue
		}
		return workspace.NewPersistentManager(path), true
	}
}

// finishWorkspace runs the final user action. Commit is refused while
// conflicts remain; a failed commit leaves the unit unchanged.
func (a *attempt) finishWorkspace(ctx context.Context, path string, dirty bool) (Outcome, error) {
	u := a.unit
	if err := a.step(ctx, "check conflicts"); err != nil {
		return OutcomeAbandoned, nil
	}
	conflicts, err := a.client.HasConflicts(ctx, path)
	if err != nil {
		a.prompter.ShowError(u, err)
		return OutcomeFailed, err
	}
	if conflicts {
		a.prompter.ShowError(u, a.conflictError(path))
	}

	for {
		switch a.prompter.FinalAction(u, conflicts) {
		case ActionCommit:
			if conflicts {
				// resolved in the meantime?
				if conflicts, err = a.client.HasConflicts(ctx, path); err != nil {
					a.prompter.ShowError(u, err)
					return OutcomeFailed, err
				}
				if conflicts {
					a.prompter.ShowError(u, a.conflictError(path))
					continue
				}
			}
			if dirty && !a.prompter.ConfirmCommit(u) {
				continue
			}
			a.stage = "commit"
			a.progress.Step("commit")
			rev, err := a.client.Commit(ctx, path, u.CommitMessage())
			if err != nil {
				a.prompter.ShowError(u, err)
				return OutcomeFailed, err
			}
			a.revision = rev
			if err := a.o.move(context.WithoutCancel(ctx), u, mergeunit.StatusDone, a.id); err != nil {
				a.prompter.ShowError(u, err)
				return OutcomeFailed, err
			}
			return OutcomeDone, nil

		default:
			// the user chose to close; a late cancellation must not undo the hand-off
			if err := a.o.move(context.WithoutCancel(ctx), u, mergeunit.StatusManual, a.id); err != nil {
				a.prompter.ShowError(u, err)
				return OutcomeFailed, err
			}
			return OutcomeManual, nil
		}
	}
}

func sameURL(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
