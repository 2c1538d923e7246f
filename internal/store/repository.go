package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
)

// UnitRepository reads and moves merge units on top of a Store. It is the only
// code path that changes a unit's status.
type UnitRepository struct {
	store Store
}

// NewUnitRepository creates a repository over s.
func NewUnitRepository(s Store) *UnitRepository {
	return &UnitRepository{store: s}
}

// Store returns the underlying store.
func (r *UnitRepository) Store() Store { return r.store }

// LoadAll lists every folder in parallel and parses each descriptor into a fresh
// unit. Descriptors that fail to parse are logged and skipped; so are descriptors
// that disappear between listing and reading. Units are returned in Compare order.
func (r *UnitRepository) LoadAll(ctx context.Context) ([]*mergeunit.MergeUnit, error) {
	folders := mergeunit.Folders()
	perFolder := make([][]*mergeunit.MergeUnit, len(folders))

	g, gctx := errgroup.WithContext(ctx)
	for i, folder := range folders {
		g.Go(func() error {
			units, err := r.loadFolder(gctx, folder)
			if err != nil {
				return err
			}
			perFolder[i] = units
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byName := make(map[string]*mergeunit.MergeUnit)
	var all []*mergeunit.MergeUnit
	for _, units := range perFolder {
		for _, u := range units {
			if prev, dup := byName[u.FileName]; dup {
				slog.Warn("Descriptor present in more than one folder",
					logfields.Unit(u.FileName),
					logfields.From(prev.RemotePath),
					logfields.To(u.RemotePath))
				continue
			}
			byName[u.FileName] = u
			all = append(all, u)
		}
	}
	mergeunit.Sort(all)
	return all, nil
}

func (r *UnitRepository) loadFolder(ctx context.Context, folder mergeunit.Folder) ([]*mergeunit.MergeUnit, error) {
	entries, err := r.store.List(ctx, folder)
	if err != nil {
		return nil, err
	}
	units := make([]*mergeunit.MergeUnit, 0, len(entries))
	for _, e := range entries {
		u, err := r.load(ctx, e)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			if errors.HasCategory(err, errors.CategoryValidation) {
				slog.Warn("Skipping unreadable descriptor", logfields.Path(e.Path), logfields.Error(err))
				continue
			}
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

func (r *UnitRepository) load(ctx context.Context, e Entry) (*mergeunit.MergeUnit, error) {
	data, err := r.store.Read(ctx, e.Path)
	if err != nil {
		return nil, err
	}
	return mergeunit.Parse(e.Name, e.Path, e.Folder, data)
}

// Get loads the unit with the given descriptor file name from whichever folder holds it.
func (r *UnitRepository) Get(ctx context.Context, fileName string) (*mergeunit.MergeUnit, error) {
	units, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if u.FileName == fileName {
			return u, nil
		}
	}
	return nil, errors.NotFoundError(fmt.Sprintf("no merge unit named %q", fileName)).Build()
}

// Save writes u's descriptor into the folder of its status.
func (r *UnitRepository) Save(ctx context.Context, u *mergeunit.MergeUnit) error {
	p, err := r.store.Write(ctx, u.Status.Folder(), u.FileName, mergeunit.Format(u))
	if err != nil {
		return err
	}
	u.RemotePath = p
	return nil
}

// MoveTo moves u to status to and updates its RemotePath and Status. Staying in
// the same status is a no-op; moves outside the transition table are rejected.
//
// DONE and IGNORED share a folder, so the ignored flag is written before a move
// into IGNORED and cleared after a move out of it. A flag left behind by a failed
// clear is removed again before any move into DONE. A failure before the move
// leaves the unit in its original status.
func (r *UnitRepository) MoveTo(ctx context.Context, u *mergeunit.MergeUnit, to mergeunit.Status) error {
	from := u.Status
	if from == to {
		return nil
	}
	if !mergeunit.CanTransition(from, to) {
		return errors.ValidationError(fmt.Sprintf("transition %s -> %s is not permitted", from, to)).
			WithContext("unit", u.FileName).
			Build()
	}

	switch to {
	case mergeunit.StatusIgnored:
		if err := r.rewriteFlag(ctx, u.RemotePath, true); err != nil {
			return err
		}
	case mergeunit.StatusDone:
		if err := r.rewriteFlag(ctx, u.RemotePath, false); err != nil {
			return err
		}
	}

	p := u.RemotePath
	curFolder, _, err := Split(p)
	if err != nil {
		return err
	}
	if curFolder != to.Folder() {
		if p, err = r.store.Move(ctx, u.RemotePath, to.Folder()); err != nil {
			return err
		}
	}

	if from == mergeunit.StatusIgnored {
		if err := r.rewriteFlag(ctx, p, false); err != nil {
			// the move happened; a stale flag is cleared before the next move into DONE
			slog.Warn("Failed to clear ignored flag", logfields.Path(p), logfields.Error(err))
		}
	}

	slog.Info("Moved merge unit",
		logfields.Unit(u.FileName),
		logfields.From(string(from)),
		logfields.To(string(to)),
		logfields.Path(p))
	u.RemotePath = p
	u.Status = to
	return nil
}

func (r *UnitRepository) rewriteFlag(ctx context.Context, p string, ignored bool) error {
	folder, name, err := Split(p)
	if err != nil {
		return err
	}
	data, err := r.store.Read(ctx, p)
	if err != nil {
		return err
	}
	rewritten := mergeunit.SetIgnoredFlag(data, ignored)
	if bytes.Equal(rewritten, data) {
		return nil
	}
	_, err = r.store.Write(ctx, folder, name, rewritten)
	return err
}
