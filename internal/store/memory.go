package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
)

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	List  int
	Read  int
	Write int
	Move  int
}

type memoryObject struct {
	data    []byte
	modTime time.Time
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	objects  map[string]memoryObject
	calls    MemoryCalls
	failures map[string][]error
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string]memoryObject),
		failures: make(map[string][]error),
		now:      time.Now,
	}
}

// FailNext makes the next call of op ("list", "read", "write", "move") return err.
func (m *MemoryStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// Calls returns a snapshot of the call counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Paths returns every stored path, sorted.
func (m *MemoryStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) failure(op string) error {
	if q := m.failures[op]; len(q) > 0 {
		m.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, folder mergeunit.Folder) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++
	if err := m.failure("list"); err != nil {
		return nil, err
	}
	var entries []Entry
	for p, obj := range m.objects {
		f, name, err := Split(p)
		if err != nil || f != folder {
			continue
		}
		entries = append(entries, Entry{Name: name, Path: p, Folder: f, ModTime: obj.modTime})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *MemoryStore) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Read++
	if err := m.failure("read"); err != nil {
		return nil, err
	}
	obj, ok := m.objects[p]
	if !ok {
		return nil, notFound(p)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Write(ctx context.Context, folder mergeunit.Folder, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Write++
	if err := m.failure("write"); err != nil {
		return "", err
	}
	p := Join(folder, name)
	m.objects[p] = memoryObject{data: append([]byte(nil), data...), modTime: m.now()}
	return p, nil
}

func (m *MemoryStore) Move(ctx context.Context, p string, to mergeunit.Folder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	from, name, err := Split(p)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Move++
	if err := m.failure("move"); err != nil {
		return "", err
	}
	obj, ok := m.objects[p]
	if !ok {
		return "", notFound(p)
	}
	if from == to {
		return p, nil
	}
	dest := Join(to, name)
	delete(m.objects, p)
	obj.modTime = m.now()
	m.objects[dest] = obj
	return dest, nil
}

func (m *MemoryStore) Close() error { return nil }
