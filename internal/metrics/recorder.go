package metrics

import "time"

// Recorder defines observability hooks for merges, refresh cycles and caches.
type Recorder interface {
	ObserveMerge(strategy, outcome string, d time.Duration)
	ObserveRefresh(d time.Duration, success bool)
	SetUnits(status string, n int)
	IncNewUnits(n int)
	IncStatusMove(from, to string)
	IncVersionCache(hit bool)
	IncRenameComputation()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveMerge(string, string, time.Duration) {}
func (NoopRecorder) ObserveRefresh(time.Duration, bool)         {}
func (NoopRecorder) SetUnits(string, int)                       {}
func (NoopRecorder) IncNewUnits(int)                            {}
func (NoopRecorder) IncStatusMove(string, string)               {}
func (NoopRecorder) IncVersionCache(bool)                       {}
func (NoopRecorder) IncRenameComputation()                      {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
