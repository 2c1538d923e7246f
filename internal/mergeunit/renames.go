package mergeunit

import (
	"context"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/mergekeeper/internal/vcs"
)

// RenameEntry maps an affected source path to its path on the target branch.
type RenameEntry struct {
	Source string
	Target string
}

// Identity reports whether the entry keeps the path unchanged.
func (e RenameEntry) Identity() bool { return e.Source == e.Target }

// RenameMapping holds one entry per affected file, in descriptor order.
type RenameMapping []RenameEntry

// HasRenaming reports whether at least one entry is not an identity.
func (m RenameMapping) HasRenaming() bool {
	for _, e := range m {
		if !e.Identity() {
			return true
		}
	}
	return false
}

// Lookup returns the target path for source.
func (m RenameMapping) Lookup(source string) (string, bool) {
	for _, e := range m {
		if e.Source == source {
			return e.Target, true
		}
	}
	return "", false
}

// IdentityMapping maps every path to itself.
func IdentityMapping(paths []string) RenameMapping {
	m := make(RenameMapping, len(paths))
	for i, p := range paths {
		m[i] = RenameEntry{Source: p, Target: p}
	}
	return m
}

// RenameSource computes the rename mapping of a unit, typically with remote calls.
type RenameSource interface {
	ResolveRenames(ctx context.Context, u *MergeUnit) (RenameMapping, error)
}

// RenameSourceFunc adapts a function to RenameSource.
type RenameSourceFunc func(ctx context.Context, u *MergeUnit) (RenameMapping, error)

func (f RenameSourceFunc) ResolveRenames(ctx context.Context, u *MergeUnit) (RenameMapping, error) {
	return f(ctx, u)
}

// RenameMapping returns the unit's mapping, computing it on first use. The result,
// including a failure, is kept for the lifetime of this instance. Units without
// CapRenameMapping get an identity mapping without consulting src.
func (u *MergeUnit) RenameMapping(ctx context.Context, src RenameSource) (RenameMapping, error) {
	u.renameOnce.Do(func() {
		if !u.Capabilities.Has(CapRenameMapping) || src == nil {
			u.renames = IdentityMapping(u.SourceFiles)
			return
		}
		u.renames, u.renameErr = src.ResolveRenames(ctx, u)
	})
	return u.renames, u.renameErr
}

// SetRenameMapping installs a pre-resolved mapping. It reports false when the
// mapping was already fixed, in which case m is ignored.
func (u *MergeUnit) SetRenameMapping(m RenameMapping) bool {
	set := false
	u.renameOnce.Do(func() {
		u.renames = m
		set = true
	})
	return set
}

// HasRenaming reports whether the unit's mapping has a non-identity entry.
func (u *MergeUnit) HasRenaming(ctx context.Context, src RenameSource) (bool, error) {
	m, err := u.RenameMapping(ctx, src)
	if err != nil {
		return false, err
	}
	return m.HasRenaming(), nil
}

// Clients resolves the backend for a unit's VCS kind. *vcs.Registry satisfies it.
type Clients interface {
	For(kind vcs.Kind) (vcs.Client, error)
}

// ProbeSource resolves rename mappings by probing the target branch.
//
// For each affected file the source path is looked up on the target branch
// first; when present the entry is an identity. Otherwise the declared target
// path is used, which makes the entry a rename when it differs. A file absent
// under both paths is new on the target branch and maps to its declared target.
type ProbeSource struct {
	Clients Clients
	// Concurrency bounds parallel probes per unit. Zero means 4.
	Concurrency int
}

func (p ProbeSource) ResolveRenames(ctx context.Context, u *MergeUnit) (RenameMapping, error) {
	client, err := p.Clients.For(u.Kind)
	if err != nil {
		return nil, err
	}
	limit := p.Concurrency
	if limit <= 0 {
		limit = 4
	}

	mapping := make(RenameMapping, len(u.SourceFiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range u.SourceFiles {
		declared := src
		if i < len(u.TargetFiles) {
			declared = u.TargetFiles[i]
		}
		g.Go(func() error {
			present, err := exists(gctx, client, u.TargetFileURL(src))
			if err != nil {
				return err
			}
			if present {
				mapping[i] = RenameEntry{Source: src, Target: src}
				return nil
			}
			mapping[i] = RenameEntry{Source: src, Target: declared}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mapping, nil
}

func exists(ctx context.Context, c vcs.Client, url string) (bool, error) {
	if _, err := c.Cat(ctx, url); err != nil {
		if vcs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
