package solver

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var ErrMetrics = errors.New("solver metric registration failed")

const DefaultMetricsNamespace = "gomoc"

// Metrics exports the eigenvalue iteration as prometheus collectors. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Iterations    prometheus.Counter
	Keff          prometheus.Gauge
	Residual      prometheus.Gauge
	SweepDuration prometheus.Histogram
	Solves        *prometheus.CounterVec // By final State
	collectors    []prometheus.Collector
	registry      prometheus.Registerer
}

// NewMetrics registers the solver collectors on reg, the default registerer
// when reg is nil
func NewMetrics(namespace string, reg prometheus.Registerer) (m *Metrics, err error) {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m = &Metrics{
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "iterations_total",
			Help:      "Source iterations completed",
		}),
		Keff: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "keff",
			Help:      "Current multiplication factor estimate",
		}),
		Residual: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "source_residual",
			Help:      "Relative RMS change of the region source",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one transport sweep",
			Buckets:   prometheus.ExponentialBuckets(1.e-4, 4, 10),
		}),
		Solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solves_total",
			Help:      "Eigenvalue solves by final state",
		}, []string{"state"}),
		registry: reg,
	}
	for _, c := range []prometheus.Collector{m.Iterations, m.Keff, m.Residual, m.SweepDuration, m.Solves} {
		if err = reg.Register(c); err != nil {
			m.Unregister()
			return nil, fmt.Errorf("%w: %w", ErrMetrics, err)
		}
		m.collectors = append(m.collectors, c)
	}
	return
}

// Unregister removes the collectors this Metrics registered
func (m *Metrics) Unregister() {
	if m == nil {
		return
	}
	for _, c := range m.collectors {
		m.registry.Unregister(c)
	}
}

func (m *Metrics) observeIteration(keff, residual float64, sweep time.Duration) {
	if m == nil {
		return
	}
	m.Iterations.Inc()
	m.Keff.Set(keff)
	m.Residual.Set(residual)
	m.SweepDuration.Observe(sweep.Seconds())
}

func (m *Metrics) observeSolve(s State) {
	if m == nil {
		return
	}
	m.Solves.WithLabelValues(s.String()).Inc()
}
