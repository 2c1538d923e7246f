package versionresolver

// ring is a fixed-capacity FIFO map. Eviction follows insertion order; reads
// do not refresh an entry. Not safe for concurrent use on its own.
type ring struct {
	keys   []string
	next   int
	values map[string]string
}

func newRing(capacity int) *ring {
	return &ring{keys: make([]string, 0, capacity), values: make(map[string]string, capacity)}
}

func (r *ring) get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r *ring) put(key, value string) {
	if _, ok := r.values[key]; ok {
		r.values[key] = value
		return
	}
	if len(r.keys) < cap(r.keys) {
		r.keys = append(r.keys, key)
	} else {
		delete(r.values, r.keys[r.next])
		r.keys[r.next] = key
		r.next = (r.next + 1) % len(r.keys)
	}
	r.values[key] = value
}

func (r *ring) len() int { return len(r.values) }
