package refresh

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mergekeeper/internal/eventstore"
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
	"git.home.luguber.info/inful/mergekeeper/internal/metrics"
	"git.home.luguber.info/inful/mergekeeper/internal/notify"
	"git.home.luguber.info/inful/mergekeeper/internal/orchestrator"
	"git.home.luguber.info/inful/mergekeeper/internal/renames"
	"git.home.luguber.info/inful/mergekeeper/internal/store"
)

func descriptor(date string) []byte {
	return []byte(fmt.Sprintf(`vcs=svn
host=svn.example.org
repository=product
date=%s
branch_source=trunk
branch_target=branches/1.x
source_url=https://svn.example.org/product/trunk
target_url=https://svn.example.org/product/branches/1.x
revisions=10
message=Fix loader
file=core/pom.xml
`, date))
}

// fakeMerger moves units to DONE unless told otherwise and records the order.
type fakeMerger struct {
	repo *store.UnitRepository

	mu      sync.Mutex
	merged  []string
	outcome orchestrator.Outcome
	before  func(u *mergeunit.MergeUnit)
}

func (m *fakeMerger) MergeAutomatic(ctx context.Context, u *mergeunit.MergeUnit, _ orchestrator.Progress) (orchestrator.Outcome, error) {
	m.mu.Lock()
	m.merged = append(m.merged, u.FileName)
	before := m.before
	m.before = nil
	outcome := m.outcome
	m.mu.Unlock()

	if before != nil {
		before(u)
	}
	if outcome != "" && outcome != orchestrator.OutcomeDone {
		return outcome, errors.VCSError("merge failed").Build()
	}
	if err := m.repo.MoveTo(ctx, u, mergeunit.StatusDone); err != nil {
		return orchestrator.OutcomeFailed, err
	}
	return orchestrator.OutcomeDone, nil
}

func (m *fakeMerger) Merged() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.merged...)
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	newUnits int
	refresh  []bool
	gauges   map[string]int
}

func (r *countingRecorder) IncNewUnits(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newUnits += n
}

func (r *countingRecorder) ObserveRefresh(_ time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh = append(r.refresh, ok)
}

func (r *countingRecorder) SetUnits(status string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gauges == nil {
		r.gauges = make(map[string]int)
	}
	r.gauges[status] = n
}

type fixture struct {
	mem     *store.MemoryStore
	repo    *store.UnitRepository
	merger  *fakeMerger
	pub     *notify.MemoryPublisher
	history *eventstore.SQLiteStore
	rec     *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	history, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	mem := store.NewMemory()
	repo := store.NewUnitRepository(mem)
	return &fixture{
		mem:     mem,
		repo:    repo,
		merger:  &fakeMerger{repo: repo},
		pub:     &notify.MemoryPublisher{},
		history: history,
		rec:     &countingRecorder{},
	}
}

func (f *fixture) write(t *testing.T, folder mergeunit.Folder, name, date string) {
	t.Helper()
	_, err := f.mem.Write(context.Background(), folder, name, descriptor(date))
	require.NoError(t, err)
}

func (f *fixture) loop(automatic bool) *Loop {
	return New(f.repo, f.merger, Options{
		Interval:  time.Hour,
		Automatic: automatic,
		History:   f.history,
		Publisher: f.pub,
		Recorder:  f.rec,
	})
}

func names(units []*mergeunit.MergeUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.FileName
	}
	return out
}

func TestCycleReportsOnlyNewTodoUnits(t *testing.T) {
	f := newFixture(t)
	f.write(t, mergeunit.FolderTodo, "a.merge", "2024-03-01T10:00:00Z")
	f.write(t, mergeunit.FolderManual, "m.merge", "2024-02-01T10:00:00Z")

	var seen [][]string
	l := f.loop(false)
	l.opts.OnNew = func(units []*mergeunit.MergeUnit) { seen = append(seen, names(units)) }

	arrived, err := l.Cycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.merge"}, names(arrived))
	assert.Len(t, l.Units(), 2)

	arrived, err = l.Cycle(t.Context())
	require.NoError(t, err)
	assert.Empty(t, arrived)

	f.write(t, mergeunit.FolderTodo, "b.merge", "2024-03-02T10:00:00Z")
	arrived, err = l.Cycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"b.merge"}, names(arrived))

	assert.Equal(t, [][]string{{"a.merge"}, {"b.merge"}}, seen)
	require.Len(t, f.pub.News(), 2)
	assert.Equal(t, "product", f.pub.News()[0].Repository)
	assert.Equal(t, 2, f.rec.newUnits)
	assert.Equal(t, []bool{true, true, true}, f.rec.refresh)
	assert.Equal(t, 2, f.rec.gauges[string(mergeunit.StatusTodo)])
	assert.Equal(t, 1, f.rec.gauges[string(mergeunit.StatusManual)])
	assert.Equal(t, 0, f.rec.gauges[string(mergeunit.StatusDone)])

	events, err := f.history.GetByUnit(t.Context(), "b.merge")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventstore.TypeUnitDiscovered, events[0].Type())
}

func TestCycleStartsRenameChecksForNewUnits(t *testing.T) {
	f := newFixture(t)
	f.write(t, mergeunit.FolderTodo, "a.merge", "2024-03-01T10:00:00Z")
	f.write(t, mergeunit.FolderManual, "m.merge", "2024-02-01T10:00:00Z")

	var (
		mu       sync.Mutex
		computed []string
		notified []string
	)
	resolver := renames.New(
		mergeunit.RenameSourceFunc(func(_ context.Context, u *mergeunit.MergeUnit) (mergeunit.RenameMapping, error) {
			mu.Lock()
			defer mu.Unlock()
			computed = append(computed, u.FileName)
			return mergeunit.IdentityMapping(u.SourceFiles), nil
		}),
		renames.WithNotify(func(u *mergeunit.MergeUnit, _ bool, _ error) {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, u.FileName)
		}))
	l := f.loop(false)
	l.opts.Renames = resolver

	_, err := l.Cycle(t.Context())
	require.NoError(t, err)
	resolver.Wait()
	_, err = l.Cycle(t.Context())
	require.NoError(t, err)
	resolver.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a.merge"}, computed)
	assert.Equal(t, []string{"a.merge"}, notified)
	for _, u := range l.Units() {
		assert.Equal(t, u.FileName == "a.merge", resolver.IsResultAvailable(u), u.FileName)
	}
}

func TestUnitsReturnsCopy(t *testing.T) {
	f := newFixture(t)
	f.write(t, mergeunit.FolderTodo, "a.merge", "2024-03-01T10:00:00Z")
	l := f.loop(false)
	_, err := l.Cycle(t.Context())
	require.NoError(t, err)

	units := l.Units()
	units[0] = nil
	assert.NotNil(t, l.Units()[0])
}

func TestCycleKeepsSnapshotWhenStoreFails(t *testing.T) {
	f := newFixture(t)
	f.write(t, mergeunit.FolderTodo, "a.merge", "2024-03-01T10:00:00Z")
	l := f.loop(false)
	_, err := l.Cycle(t.Context())
	require.NoError(t, err)

	f.mem.FailNext("list", errors.StoreError("bucket unavailable").Build())
	_, err = l.Cycle(t.Context())
	require.Error(t, err)
	assert.Equal(t, []string{"a.merge"}, names(l.Units()))
	assert.Equal(t, []bool{true, false}, f.rec.refresh)
}

func TestAutomaticMergesOldestFirstOneAtATime(t *testing.T) {
	f := newFixture(t)
	f.write(t, mergeunit.FolderTodo, "c.merge", "2024-03-03T10:00:00Z")
	f.write(t, mergeunit.FolderTodo, "a.merge", "2024-03-01T10:00:00Z")
	f.write(t, mergeunit.FolderTodo, "b.merge", "2024-03-05T10:00:00Z")

	// A unit dated between a and c shows up while a is merging.
	f.merger.before = func(*mergeunit.MergeUnit) {
		f.write(t, mergeunit.FolderTodo, "late.merge", "2024-03-02T10:00:00Z")
	}

	l := f.loop(true)
	l.RunOnce(t.Context())

	assert.Equal(t, []string{"a.merge", "late.merge", "c.merge", "b.merge"}, f.merger.Merged())
	assert.Empty(t, mergeunit.Filter(l.Units(), mergeunit.StatusTodo))
	assert.Len(t, mergeunit.Filter(l.Units(), mergeunit.StatusDone), 4)
}

func TestAutomaticStopsWhenMergeMakesNoProgress(t *testing.T) {
	f := newFixture(t)
	f.write(t, mergeunit.FolderTodo, "a.merge", "2024-03-01T10:00:00Z")
	f.write(t, mergeunit.FolderTodo, "b.merge", "2024-03-02T10:00:00Z")
	f.merger.outcome = orchestrator.OutcomeFailed

	l := f.loop(true)
	l.RunOnce(t.Context())

	assert.Equal(t, []string{"a.merge"}, f.merger.Merged())
	assert.Len(t, mergeunit.Filter(l.Units(), mergeunit.StatusTodo), 2)

	// Nothing new arrived, so the next tick does not retry.
	l.RunOnce(t.Context())
	assert.Equal(t, []string{"a.merge"}, f.merger.Merged())
}

func TestManualModeNeverMerges(t *testing.T) {
	f := newFixture(t)
	f.write(t, mergeunit.FolderTodo, "a.merge", "2024-03-01T10:00:00Z")

	l := f.loop(false)
	l.RunOnce(t.Context())

	assert.Empty(t, f.merger.Merged())
	assert.Len(t, l.Units(), 1)
}

func TestStartRunsImmediatelyAndOnDemand(t *testing.T) {
	f := newFixture(t)
	f.write(t, mergeunit.FolderTodo, "a.merge", "2024-03-01T10:00:00Z")

	l := f.loop(false)
	require.NoError(t, l.Start(t.Context()))
	t.Cleanup(func() { _ = l.Stop() })

	require.Eventually(t, func() bool { return len(l.Units()) == 1 }, 5*time.Second, 10*time.Millisecond)

	f.write(t, mergeunit.FolderTodo, "b.merge", "2024-03-02T10:00:00Z")
	trigger := make(chan struct{}, 1)
	l.TriggerOn(t.Context(), trigger)
	trigger <- struct{}{}

	require.Eventually(t, func() bool { return len(l.Units()) == 2 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, l.Stop())
	assert.NoError(t, l.RunNow())
}
