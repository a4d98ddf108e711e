package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	runs         *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. Pass a
// fresh prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contour_pipeline_runs_total",
				Help: "Total pipeline runs by outcome (contained, not_contained, error)",
			},
			[]string{"outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contour_pipeline_step_duration_seconds",
				Help:    "Duration of each pipeline step",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"step"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contour_pipeline_run_duration_seconds",
				Help:    "Duration of a whole pipeline run",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
	}
	for _, c := range []prometheus.Collector{m.runs, m.stepDuration, m.runDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
