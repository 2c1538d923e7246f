package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/eventstore"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// attempt holds the state of one merge request.
type attempt struct {
	o        *Orchestrator
	id       string
	unit     *mergeunit.MergeUnit
	client   vcs.Client
	prompter Prompter
	progress Progress
	strategy Strategy
	started  time.Time
	revision int64
	stage    string
}

// step reports progress and stops when ctx was cancelled.
func (a *attempt) step(ctx context.Context, name string) error {
	a.stage = name
	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, errors.CategoryCancelled, "merge cancelled").
			WithContext("unit", a.unit.FileName).
			WithContext("stage", name).
			Warning().
			Build()
	}
	a.progress.Step(name)
	return nil
}

// applyRevisions merges every revision of the unit into the working copy at path.
func (a *attempt) applyRevisions(ctx context.Context, path string) error {
	for _, rev := range a.unit.MergeRevisions() {
		if err := a.step(ctx, "merge "+rev); err != nil {
			return err
		}
		if err := a.client.Merge(ctx, path, a.unit.SourceURL(), rev, true, false); err != nil {
			return err
		}
	}
	return nil
}

func (a *attempt) conflictError(path string) error {
	return errors.ConflictError("merge left conflicts in the working copy").
		WithContext("unit", a.unit.FileName).
		WithContext("path", path).
		Build()
}

// cancelled reports whether err stems from cancellation of ctx.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.IsCancelled(err)
}

// finish logs, counts and records the end of the attempt.
func (a *attempt) finish(ctx context.Context, outcome Outcome, err error) {
	d := time.Since(a.started)
	a.o.recorder.ObserveMerge(string(a.strategy), string(outcome), d)
	a.progress.Done()

	attrs := []any{
		logfields.Unit(a.unit.FileName),
		logfields.Strategy(string(a.strategy)),
		logfields.Outcome(string(outcome)),
		logfields.AttemptID(a.id),
		logfields.Duration(d),
	}
	if err != nil {
		slog.Warn("Merge finished with error", append(attrs, logfields.Error(err))...)
		a.o.record(ctx, func() (eventstore.Event, error) {
			return eventstore.NewMergeFailed(a.unit.FileName, a.id, a.stage, err)
		})
		return
	}
	slog.Info("Merge finished", attrs...)
	a.o.record(ctx, func() (eventstore.Event, error) {
		return eventstore.NewMergeCompleted(a.unit.FileName, a.id, string(outcome), a.revision, d)
	})
}
