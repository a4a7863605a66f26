package experiment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics instruments the processing of experiments.
type PipelineMetrics struct {
	// PhaseDuration measures each postprocessing phase.
	// Labels: phase (inclusive, exclusive, partner, callers, flat, percent, filter)
	PhaseDuration *prometheus.HistogramVec

	// RawFetchErrors counts thread-level reads that failed and resolved to
	// no value.
	RawFetchErrors prometheus.Counter

	// CallersExpansions counts lazily materialized callers-view scopes.
	CallersExpansions prometheus.Counter
}

// NewPipelineMetrics registers the pipeline collectors with reg. A nil reg
// uses a private registry, which keeps experiments in tests independent.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &PipelineMetrics{
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "calltree",
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Duration of experiment processing phases in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"phase"}),
		RawFetchErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "calltree",
			Subsystem: "raw",
			Name:      "fetch_errors_total",
			Help:      "Total thread-level metric reads that failed",
		}),
		CallersExpansions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "calltree",
			Subsystem: "callers",
			Name:      "expansions_total",
			Help:      "Total callers-view scopes expanded on demand",
		}),
	}
}

// observe runs fn and records its duration under phase.
func (p *PipelineMetrics) observe(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	return err
}
