// Package metrics provides the observability hooks of mergekeeper.
//
// Components receive a Recorder through their constructor or options and
// default to NoopRecorder, so no nil checks are needed at call sites:
//
//	type Loop struct {
//	    recorder metrics.Recorder
//	}
//
// The daemon swaps in a PrometheusRecorder and serves its registry through
// HTTPHandler when metrics.listen_addr is configured.
package metrics
