/*package metrics records solver statistics as Prometheus metrics. A run
writes them to a text file which node_exporter's textfile collector (or a
person) can read.
*/
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	mbpol "github.com/mqaisran/mbpol-openmm-plugin"
)

const namespace = "mbpol"

// SolveMetrics is an mbpol.Observer which owns its registry.
type SolveMetrics struct {
	registry *prometheus.Registry

	solves     *prometheus.CounterVec
	iterations prometheus.Histogram
	duration   prometheus.Histogram
	residual   prometheus.Gauge
	particles  prometheus.Gauge
}

var _ mbpol.Observer = (*SolveMetrics)(nil)

// NewSolveMetrics creates the solver collectors and registers them with a
// fresh registry. constLabels (e.g. a run id) are attached to every metric.
func NewSolveMetrics(constLabels prometheus.Labels) *SolveMetrics {
	m := &SolveMetrics{
		registry: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scf", Name: "solves_total",
			Help:        "Number of induced dipole solves, by outcome.",
			ConstLabels: constLabels,
		}, []string{"converged"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scf", Name: "iterations",
			Help:        "Iterations used per solve.",
			Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
			ConstLabels: constLabels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scf", Name: "duration_seconds",
			Help:        "Wall time per solve.",
			Buckets:     prometheus.ExponentialBuckets(1e-5, 4, 12),
			ConstLabels: constLabels,
		}),
		residual: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "scf", Name: "last_residual",
			Help:        "Final RMS dipole change of the most recent solve.",
			ConstLabels: constLabels,
		}),
		particles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "particles",
			Help:        "Number of particles in the most recent solve.",
			ConstLabels: constLabels,
		}),
	}

	m.registry.MustRegister(
		m.solves, m.iterations, m.duration, m.residual, m.particles,
	)
	return m
}

// ObserveSolve implements mbpol.Observer.
func (m *SolveMetrics) ObserveSolve(
	particles int, state mbpol.ConvergenceState, elapsed time.Duration,
) {
	m.solves.WithLabelValues(strconv.FormatBool(state.Converged)).Inc()
	m.iterations.Observe(float64(state.Iteration))
	m.duration.Observe(elapsed.Seconds())
	m.residual.Set(state.Residual)
	m.particles.Set(float64(particles))
}

// Registry returns the registry holding every solver metric.
func (m *SolveMetrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current metrics to file in the Prometheus text
// format.
func (m *SolveMetrics) WriteTextfile(file string) error {
	return prometheus.WriteToTextfile(file, m.registry)
}
