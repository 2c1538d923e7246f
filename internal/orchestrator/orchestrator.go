package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/mergekeeper/internal/eventstore"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/metrics"
	"git.home.luguber.info/inful/mergekeeper/internal/notify"
	"git.home.luguber.info/inful/mergekeeper/internal/renames"
	"git.home.luguber.info/inful/mergekeeper/internal/store"
)

// Orchestrator runs merges and status changes for single units.
type Orchestrator struct {
	repo    *store.UnitRepository
	clients mergeunit.Clients
	renames *renames.Resolver

	workspaceBase string
	keepWorkspace bool

	history   eventstore.Store
	publisher notify.Publisher
	recorder  metrics.Recorder
	newID     func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkspace sets the base directory of ephemeral working copies and
// whether they survive cleanup.
func WithWorkspace(baseDir string, keep bool) Option {
	return func(o *Orchestrator) {
		o.workspaceBase = baseDir
		o.keepWorkspace = keep
	}
}

// WithHistory records transitions and attempts in s.
func WithHistory(s eventstore.Store) Option { return func(o *Orchestrator) { o.history = s } }

// WithPublisher sends move notifications through p.
func WithPublisher(p notify.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = notify.OrNoop(p) }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = metrics.OrNoop(r) }
}

// WithIDGenerator replaces the attempt ID generator.
func WithIDGenerator(fn func() string) Option { return func(o *Orchestrator) { o.newID = fn } }

// New creates an Orchestrator. Rename answers come from resolver, which is
// shared with the refresh loop.
func New(repo *store.UnitRepository, clients mergeunit.Clients, resolver *renames.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:      repo,
		clients:   clients,
		renames:   resolver,
		publisher: notify.NoopPublisher{},
		recorder:  metrics.NoopRecorder{},
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Strategy determines how u would be merged. Only SVN units consult the
// rename resolver; the call blocks until its answer is available.
func (o *Orchestrator) Strategy(ctx context.Context, u *mergeunit.MergeUnit) (Strategy, error) {
	if !u.Capabilities.Has(mergeunit.CapRenameMapping) {
		return SelectStrategy(u, false), nil
	}
	var (
		has bool
		err error
	)
	if o.renames != nil {
		has, err = o.renames.HasRenaming(ctx, u).Wait(ctx)
	} else {
		has, err = u.HasRenaming(ctx, nil)
	}
	if err != nil {
		return "", err
	}
	return SelectStrategy(u, has), nil
}

// Merge executes u. A settled unit is re-queued first, which needs the user's
// confirmation; without it nothing changes and OutcomeRefused is returned.
func (o *Orchestrator) Merge(ctx context.Context, u *mergeunit.MergeUnit, p Prompter, progress Progress) (Outcome, error) {
	return o.merge(ctx, u, p, progress, false)
}

// MergeAutomatic executes a TODO unit without user interaction. Units in other
// statuses are never re-queued.
func (o *Orchestrator) MergeAutomatic(ctx context.Context, u *mergeunit.MergeUnit, progress Progress) (Outcome, error) {
	if u.Status != mergeunit.StatusTodo {
		return OutcomeRefused, errors.ValidationError(fmt.Sprintf("automatic merge needs a TODO unit, got %s", u.Status)).
			WithContext("unit", u.FileName).
			Build()
	}
	return o.merge(ctx, u, AutomaticPrompter{}, progress, true)
}

func (o *Orchestrator) merge(ctx context.Context, u *mergeunit.MergeUnit, p Prompter, progress Progress, automatic bool) (Outcome, error) {
	if progress == nil {
		progress = NopProgress{}
	}
	if u.Status != mergeunit.StatusTodo {
		if !p.ConfirmRequeue(u) {
			slog.Info("Re-queue declined", logfields.Unit(u.FileName), logfields.Status(string(u.Status)))
			return OutcomeRefused, nil
		}
		if err := o.move(ctx, u, mergeunit.StatusTodo, ""); err != nil {
			p.ShowError(u, err)
			return OutcomeFailed, err
		}
	}

	strategy, err := o.Strategy(ctx, u)
	if err != nil {
		p.ShowError(u, err)
		return OutcomeFailed, err
	}
	client, err := o.clients.For(u.Kind)
	if err != nil {
		p.ShowError(u, err)
		return OutcomeFailed, err
	}

	a := &attempt{
		o:        o,
		id:       o.newID(),
		unit:     u,
		client:   client,
		prompter: p,
		progress: progress,
		strategy: strategy,
		started:  time.Now(),
	}
	slog.Info("Starting merge",
		logfields.Unit(u.FileName),
		logfields.Strategy(string(strategy)),
		logfields.AttemptID(a.id),
		logfields.VCS(string(u.Kind)))
	o.record(ctx, func() (eventstore.Event, error) {
		return eventstore.NewMergeAttempted(u.FileName, a.id, string(strategy), automatic)
	})

	var outcome Outcome
	switch strategy {
	case StrategyWorkspace:
		outcome, err = a.runWorkspace(ctx)
	default:
		outcome, err = a.runEphemeral(ctx)
	}
	a.finish(ctx, outcome, err)
	return outcome, err
}

// Ignore marks u IGNORED. A DONE unit needs confirmation. It reports whether
// the status changed.
func (o *Orchestrator) Ignore(ctx context.Context, u *mergeunit.MergeUnit, p Prompter) (bool, error) {
	switch u.Status {
	case mergeunit.StatusIgnored:
		return false, nil
	case mergeunit.StatusDone:
		if !p.ConfirmIgnoreDone(u) {
			return false, nil
		}
	}
	if err := o.move(ctx, u, mergeunit.StatusIgnored, ""); err != nil {
		return false, err
	}
	return true, nil
}

// Requeue moves a settled unit back to TODO after confirmation. TODO units are
// left alone. It reports whether the status changed.
func (o *Orchestrator) Requeue(ctx context.Context, u *mergeunit.MergeUnit, p Prompter) (bool, error) {
	if u.Status == mergeunit.StatusTodo {
		return false, nil
	}
	if mergeunit.RequiresConfirmation(u.Status, mergeunit.StatusTodo) && !p.ConfirmRequeue(u) {
		return false, nil
	}
	if err := o.move(ctx, u, mergeunit.StatusTodo, ""); err != nil {
		return false, err
	}
	return true, nil
}

// move changes the unit's status in the store, then records, counts and
// announces the change. Only the store move can fail the operation.
func (o *Orchestrator) move(ctx context.Context, u *mergeunit.MergeUnit, to mergeunit.Status, attemptID string) error {
	from := u.Status
	if err := o.repo.MoveTo(ctx, u, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	o.recorder.IncStatusMove(string(from), string(to))
	o.record(ctx, func() (eventstore.Event, error) {
		return eventstore.NewUnitMoved(u.FileName, string(from), string(to), attemptID)
	})
	if err := o.publisher.PublishMoved(ctx, notify.Moved{
		Unit:      u.FileName,
		From:      string(from),
		To:        string(to),
		AttemptID: attemptID,
	}); err != nil {
		slog.Warn("Failed to publish move", logfields.Unit(u.FileName), logfields.Error(err))
	}
	return nil
}

// record appends an event to the history; failures are logged only.
func (o *Orchestrator) record(ctx context.Context, build func() (eventstore.Event, error)) {
	if o.history == nil {
		return
	}
	ev, err := build()
	if err == nil {
		err = eventstore.Record(context.WithoutCancel(ctx), o.history, ev)
	}
	if err != nil {
		slog.Warn("Failed to record history event", logfields.Error(err))
	}
}
