package metrics

import (
	"testing"
	"time"
)

func TestOrNoop(t *testing.T) {
	r := OrNoop(nil)
	if _, ok := r.(NoopRecorder); !ok {
		t.Fatalf("expected NoopRecorder, got %T", r)
	}
	r.ObserveMerge("ephemeral", "done", time.Second)

	pr := NewPrometheusRecorder(nil)
	if OrNoop(pr) != Recorder(pr) {
		t.Fatalf("expected recorder to be passed through")
	}
}
