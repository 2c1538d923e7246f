// Package renames answers "does this unit need renames?" without blocking the
// caller. Answers are computed once per unit on a background goroutine and kept
// until Cleanup drops units that left the store.
package renames

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/metrics"
)

// ErrPending is returned by Result.Value before the computation finished.
var ErrPending = errors.NewError(errors.CategoryInternal, "rename computation still running").Build()

// NotifyFunc receives the outcome of a computation. It is called exactly once
// per started computation, from the computing goroutine.
type NotifyFunc func(u *mergeunit.MergeUnit, hasRenaming bool, err error)

// Result is a handle on a possibly unfinished computation.
type Result struct {
	done  chan struct{}
	value bool
	err   error
}

// Done is closed once the value is available.
func (r *Result) Done() <-chan struct{} { return r.done }

// Available reports whether the computation finished.
func (r *Result) Available() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Value returns the computed answer, or ErrPending when it is not ready yet.
func (r *Result) Value() (bool, error) {
	if !r.Available() {
		return false, ErrPending
	}
	return r.value, r.err
}

// Wait blocks until the answer is available or ctx ends.
func (r *Result) Wait(ctx context.Context) (bool, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		return false, errors.WrapError(ctx.Err(), errors.CategoryCancelled, "waiting for rename computation").Warning().Build()
	}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNotify registers a completion callback.
func WithNotify(fn NotifyFunc) Option { return func(r *Resolver) { r.notify = fn } }

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Resolver) { r.recorder = metrics.OrNoop(rec) }
}

// Resolver memoizes rename answers per unit key. Safe for concurrent use.
type Resolver struct {
	source   mergeunit.RenameSource
	notify   NotifyFunc
	recorder metrics.Recorder

	mu      sync.RWMutex
	entries map[string]*Result
	wg      sync.WaitGroup
}

// New creates a Resolver computing mappings with source.
func New(source mergeunit.RenameSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:   source,
		recorder: metrics.NoopRecorder{},
		entries:  make(map[string]*Result),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// IsResultAvailable reports, without blocking, whether an answer for u is memoized.
func (r *Resolver) IsResultAvailable(u *mergeunit.MergeUnit) bool {
	r.mu.RLock()
	res, ok := r.entries[u.Key()]
	r.mu.RUnlock()
	return ok && res.Available()
}

// HasRenaming returns the handle for u, starting the computation when none
// exists. Callers asking for the same unit share one computation. The
// computation outlives ctx cancellation; only ctx values are inherited.
func (r *Resolver) HasRenaming(ctx context.Context, u *mergeunit.MergeUnit) *Result {
	key := u.Key()

	r.mu.RLock()
	res, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return res
	}

	r.mu.Lock()
	if res, ok = r.entries[key]; ok {
		r.mu.Unlock()
		return res
	}
	res = &Result{done: make(chan struct{})}
	r.entries[key] = res
	r.wg.Add(1)
	r.mu.Unlock()

	r.recorder.IncRenameComputation()
	go r.compute(context.WithoutCancel(ctx), u, res)
	return res
}

func (r *Resolver) compute(ctx context.Context, u *mergeunit.MergeUnit, res *Result) {
	defer r.wg.Done()
	res.value, res.err = u.HasRenaming(ctx, r.source)
	close(res.done)
	if res.err != nil {
		slog.Warn("Rename computation failed", logfields.Unit(u.FileName), logfields.Error(res.err))
	} else {
		slog.Debug("Rename computation finished", logfields.Unit(u.FileName), slog.Bool("has_renaming", res.value))
	}
	if r.notify != nil {
		r.notify(u, res.value, res.err)
	}
}

// Cleanup forgets every unit not in current.
func (r *Resolver) Cleanup(current []*mergeunit.MergeUnit) int {
	keep := make(map[string]struct{}, len(current))
	for _, u := range current {
		keep[u.Key()] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key := range r.entries {
		if _, ok := keep[key]; !ok {
			delete(r.entries, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Dropped rename results", logfields.Count(removed))
	}
	return removed
}

// Len reports the number of memoized or running entries.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Wait blocks until every started computation returned.
func (r *Resolver) Wait() { r.wg.Wait() }
