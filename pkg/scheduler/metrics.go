package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduler's Prometheus instrumentation.
type Metrics struct {
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration prometheus.Histogram
	TickDuration  prometheus.Histogram
	CandidatesDue prometheus.Gauge
	TicksSkipped  prometheus.Counter
	LastTickUnix  prometheus.Gauge
}

// NewMetrics registers the scheduler metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_engine_probes_total",
			Help: "Total probes executed, partitioned by result.",
		}, []string{"result"}),
		ProbeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "probe_engine_probe_duration_seconds",
			Help:    "Wall-clock duration of individual probes.",
			Buckets: prometheus.DefBuckets,
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "probe_engine_tick_duration_seconds",
			Help:    "Wall-clock duration of scheduler ticks, including the drain.",
			Buckets: prometheus.DefBuckets,
		}),
		CandidatesDue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "probe_engine_candidates_due",
			Help: "Number of entities whose check was due at the last tick.",
		}),
		TicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "probe_engine_ticks_skipped_total",
			Help: "Ticks skipped because the scheduler was disabled at runtime.",
		}),
		LastTickUnix: factory.NewGauge(prometheus.GaugeOpts{
			Name: "probe_engine_last_tick_timestamp_seconds",
			Help: "Unix timestamp of the last completed tick.",
		}),
	}
}
