package store

import (
	"context"

	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/retry"
)

// Retrying wraps a Store and retries transient failures according to a policy.
type Retrying struct {
	next   Store
	policy retry.Policy
}

// NewRetrying wraps next.
func NewRetrying(next Store, policy retry.Policy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

func (r *Retrying) List(ctx context.Context, folder mergeunit.Folder) ([]Entry, error) {
	var out []Entry
	err := r.policy.Do(ctx, "list", func() error {
		var err error
		out, err = r.next.List(ctx, folder)
		return err
	})
	return out, err
}

func (r *Retrying) Read(ctx context.Context, p string) ([]byte, error) {
	var out []byte
	err := r.policy.Do(ctx, "read", func() error {
		var err error
		out, err = r.next.Read(ctx, p)
		return err
	})
	return out, err
}

func (r *Retrying) Write(ctx context.Context, folder mergeunit.Folder, name string, data []byte) (string, error) {
	var out string
	err := r.policy.Do(ctx, "write", func() error {
		var err error
		out, err = r.next.Write(ctx, folder, name, data)
		return err
	})
	return out, err
}

// Move retries like the other operations. A retry after a move that succeeded
// remotely but failed to report back ends in not found, which callers treat
// as a failed move; the next refresh shows the real location.
func (r *Retrying) Move(ctx context.Context, p string, to mergeunit.Folder) (string, error) {
	var out string
	err := r.policy.Do(ctx, "move", func() error {
		var err error
		out, err = r.next.Move(ctx, p, to)
		return err
	})
	return out, err
}

func (r *Retrying) Close() error { return r.next.Close() }
