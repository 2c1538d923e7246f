// Package refresh keeps the in-memory set of known units in step with the
// store and drives automatic merging.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/mergekeeper/internal/eventstore"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/metrics"
	"git.home.luguber.info/inful/mergekeeper/internal/notify"
	"git.home.luguber.info/inful/mergekeeper/internal/orchestrator"
	"git.home.luguber.info/inful/mergekeeper/internal/renames"
	"git.home.luguber.info/inful/mergekeeper/internal/store"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 5 * time.Minute

// Merger runs a non-interactive merge of a TODO unit.
type Merger interface {
	MergeAutomatic(ctx context.Context, u *mergeunit.MergeUnit, progress orchestrator.Progress) (orchestrator.Outcome, error)
}

// NewUnitsFunc is called with the TODO units that appeared in a cycle.
type NewUnitsFunc func(units []*mergeunit.MergeUnit)

// Options configures a Loop.
type Options struct {
	Interval  time.Duration
	Automatic bool

	Renames   *renames.Resolver
	History   eventstore.Store
	Publisher notify.Publisher
	Recorder  metrics.Recorder
	Progress  orchestrator.Progress
	OnNew     NewUnitsFunc
}

// Loop owns the snapshot of known units. The snapshot is only ever replaced
// wholesale by a cycle; merges report their effect through the store.
type Loop struct {
	repo   *store.UnitRepository
	merger Merger
	opts   Options

	mu    sync.RWMutex
	units []*mergeunit.MergeUnit

	// serializes cycles started by RunOnce with those of the scheduler
	runMu sync.Mutex

	scheduler gocron.Scheduler
	job       gocron.Job
}

// New creates a Loop. merger may be nil when Automatic is false.
func New(repo *store.UnitRepository, merger Merger, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	opts.Publisher = notify.OrNoop(opts.Publisher)
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	if opts.Progress == nil {
		opts.Progress = orchestrator.NopProgress{}
	}
	return &Loop{repo: repo, merger: merger, opts: opts}
}

// Units returns a copy of the current snapshot in Compare order.
func (l *Loop) Units() []*mergeunit.MergeUnit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*mergeunit.MergeUnit, len(l.units))
	copy(out, l.units)
	return out
}

// Cycle reloads the store once and replaces the snapshot. It returns the TODO
// units that were not known before. On a failed load the snapshot is kept.
func (l *Loop) Cycle(ctx context.Context) ([]*mergeunit.MergeUnit, error) {
	start := time.Now()
	units, err := l.repo.LoadAll(ctx)
	if err != nil {
		l.opts.Recorder.ObserveRefresh(time.Since(start), false)
		return nil, err
	}

	l.mu.Lock()
	known := make(map[string]struct{}, len(l.units))
	for _, u := range l.units {
		known[u.FileName] = struct{}{}
	}
	l.units = units
	l.mu.Unlock()

	var arrived []*mergeunit.MergeUnit
	counts := make(map[mergeunit.Status]int)
	for _, u := range units {
		counts[u.Status]++
		if _, ok := known[u.FileName]; ok || u.Status != mergeunit.StatusTodo {
			continue
		}
		arrived = append(arrived, u)
	}
	for _, s := range mergeunit.Statuses() {
		l.opts.Recorder.SetUnits(string(s), counts[s])
	}

	if l.opts.Renames != nil {
		if n := l.opts.Renames.Cleanup(units); n > 0 {
			slog.Debug("Dropped stale rename answers", logfields.Count(n))
		}
	}

	if len(arrived) > 0 {
		l.announce(ctx, arrived)
		l.prewarm(ctx, arrived)
	}
	l.opts.Recorder.ObserveRefresh(time.Since(start), true)
	slog.Debug("Refresh cycle finished",
		logfields.Count(len(units)),
		slog.Int("new", len(arrived)),
		logfields.Duration(time.Since(start)))
	return arrived, nil
}

// prewarm starts the rename checks of new units so that listings and the
// automatic merge find the answer ready.
func (l *Loop) prewarm(ctx context.Context, arrived []*mergeunit.MergeUnit) {
	if l.opts.Renames == nil {
		return
	}
	for _, u := range arrived {
		l.opts.Renames.HasRenaming(ctx, u)
	}
}

func (l *Loop) announce(ctx context.Context, arrived []*mergeunit.MergeUnit) {
	l.opts.Recorder.IncNewUnits(len(arrived))
	now := time.Now()
	for _, u := range arrived {
		slog.Info("New merge unit", logfields.Unit(u.FileName), slog.String("repository", u.Repository))
		msg := notify.NewUnit{Unit: u.FileName, Host: u.Host, Repository: u.Repository, Date: u.Date, Timestamp: now}
		if err := l.opts.Publisher.PublishNew(ctx, msg); err != nil {
			slog.Warn("Failed to publish new unit", logfields.Unit(u.FileName), logfields.Error(err))
		}
		if l.opts.History == nil {
			continue
		}
		ev, err := eventstore.NewUnitDiscovered(u.FileName, string(u.Status), u.Host, u.Repository, u.Date)
		if err == nil {
			err = eventstore.Record(ctx, l.opts.History, ev)
		}
		if err != nil {
			slog.Warn("Failed to record discovery", logfields.Unit(u.FileName), logfields.Error(err))
		}
	}
	if l.opts.OnNew != nil {
		l.opts.OnNew(arrived)
	}
}

// RunOnce runs a cycle and, in automatic mode, merges the oldest TODO unit
// one at a time. A fresh cycle runs after every merge so late arrivals are
// still taken in order. The batch stops when no TODO unit is left or a merge
// leaves its unit in TODO. Failures are logged and never returned.
func (l *Loop) RunOnce(ctx context.Context) {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	arrived, err := l.Cycle(ctx)
	if err != nil {
		slog.Error("Refresh failed", logfields.Error(err))
		return
	}
	if !l.opts.Automatic || l.merger == nil || len(arrived) == 0 {
		return
	}

	for ctx.Err() == nil {
		next := mergeunit.OldestTodo(l.Units())
		if next == nil {
			return
		}
		outcome, err := l.merger.MergeAutomatic(ctx, next, l.opts.Progress)
		if err != nil {
			slog.Warn("Automatic merge failed",
				logfields.Unit(next.FileName),
				logfields.Outcome(string(outcome)),
				logfields.Error(err))
		}
		if !outcome.Progressed() {
			slog.Info("Automatic merge made no progress, waiting for next refresh",
				logfields.Unit(next.FileName),
				logfields.Outcome(string(outcome)))
			return
		}
		if _, err := l.Cycle(ctx); err != nil {
			slog.Error("Refresh after automatic merge failed", logfields.Error(err))
			return
		}
	}
}

// Start schedules RunOnce every interval and runs it immediately. A run that
// overlaps the previous one is pushed to the next slot instead.
func (l *Loop) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to create refresh scheduler").Build()
	}
	job, err := s.NewJob(
		gocron.DurationJob(l.opts.Interval),
		gocron.NewTask(l.RunOnce, ctx),
		gocron.WithName("refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return errors.WrapError(err, errors.CategoryRuntime, "failed to schedule refresh").Build()
	}
	l.scheduler = s
	l.job = job
	slog.Info("Starting refresh loop",
		logfields.JobID(job.ID().String()),
		slog.Duration("interval", l.opts.Interval),
		slog.Bool("automatic", l.opts.Automatic))
	s.Start()
	return nil
}

// RunNow asks the scheduler for an early run. It is a no-op before Start.
func (l *Loop) RunNow() error {
	if l.job == nil {
		return nil
	}
	if err := l.job.RunNow(); err != nil {
		return fmt.Errorf("refresh run-now: %w", err)
	}
	return nil
}

// TriggerOn requests an early run for every value received from ch until it
// is closed or ctx ends.
func (l *Loop) TriggerOn(ctx context.Context, ch <-chan struct{}) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if err := l.RunNow(); err != nil {
					slog.Warn("Failed to trigger refresh", logfields.Error(err))
				}
			}
		}
	}()
}

// Stop shuts the scheduler down and waits for a running cycle.
func (l *Loop) Stop() error {
	if l.scheduler == nil {
		return nil
	}
	slog.Info("Stopping refresh loop")
	err := l.scheduler.Shutdown()
	l.scheduler = nil
	l.job = nil
	return err
}
