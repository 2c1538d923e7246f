package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "mergekeeper"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	merges          *prom.CounterVec
	mergeDuration   *prom.HistogramVec
	refreshDuration *prom.HistogramVec
	units           *prom.GaugeVec
	newUnits        prom.Counter
	statusMoves     *prom.CounterVec
	versionCache    *prom.CounterVec
	renames         prom.Counter
}

// NewPrometheusRecorder constructs the metrics and registers them with reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		merges: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Merge attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		mergeDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_duration_seconds",
			Help:      "Duration of merge attempts",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"strategy"}),
		refreshDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of store refresh cycles",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		units: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "units",
			Help:      "Known merge units by status after the last refresh",
		}, []string{"status"}),
		newUnits: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "new_units_total",
			Help:      "TODO units discovered by refresh cycles",
		}),
		statusMoves: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "status_moves_total",
			Help:      "Descriptor moves between statuses",
		}, []string{"from", "to"}),
		versionCache: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "version_cache_total",
			Help:      "Version resolver cache lookups by result",
		}, []string{"result"}),
		renames: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rename_computations_total",
			Help:      "Rename mapping computations started",
		}),
	}
	reg.MustRegister(pr.merges, pr.mergeDuration, pr.refreshDuration, pr.units, pr.newUnits, pr.statusMoves, pr.versionCache, pr.renames)
	return pr
}

func (p *PrometheusRecorder) ObserveMerge(strategy, outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.merges.WithLabelValues(strategy, outcome).Inc()
	p.mergeDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRefresh(d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.refreshDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetUnits(status string, n int) {
	if p == nil {
		return
	}
	p.units.WithLabelValues(status).Set(float64(n))
}

func (p *PrometheusRecorder) IncNewUnits(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.newUnits.Add(float64(n))
}

func (p *PrometheusRecorder) IncStatusMove(from, to string) {
	if p == nil {
		return
	}
	p.statusMoves.WithLabelValues(from, to).Inc()
}

func (p *PrometheusRecorder) IncVersionCache(hit bool) {
	if p == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.versionCache.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncRenameComputation() {
	if p == nil {
		return
	}
	p.renames.Inc()
}
