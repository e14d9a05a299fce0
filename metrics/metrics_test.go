package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mbpol "github.com/mqaisran/mbpol-openmm-plugin"
	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

func TestObserveSolve(t *testing.T) {
	m := NewSolveMetrics(nil)

	m.ObserveSolve(9, mbpol.ConvergenceState{Iteration: 12, Residual: 5e-8, Converged: true}, time.Millisecond)
	m.ObserveSolve(9, mbpol.ConvergenceState{Iteration: 500, Residual: 1e-3}, time.Second)
	m.ObserveSolve(3, mbpol.ConvergenceState{Iteration: 4, Residual: 2e-8, Converged: true}, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.solves.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solves.WithLabelValues("false")))
	assert.Equal(t, 2e-8, testutil.ToFloat64(m.residual))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.particles))
	assert.Equal(t, 2, testutil.CollectAndCount(m.solves))

	count, err := testutil.GatherAndCount(m.Registry(), "mbpol_scf_iterations")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSolverReportsToMetrics(t *testing.T) {
	m := NewSolveMetrics(prometheus.Labels{"run_id": "test"})
	s, err := mbpol.NewSolver(mbpol.DefaultSolverConfig(), mbpol.WithObserver(m))
	require.NoError(t, err)

	ps := []mbpol.Particle{
		{Charge: 1, Polarizability: 1e-3, DampingFactor: 1e-3, Thole: 0.4, Group: mbpol.NoGroup},
		{Position: geom.Vec{0.3, 0, 0}, Charge: -1, Polarizability: 1e-3,
			DampingFactor: 1e-3, Thole: 0.4, Group: mbpol.NoGroup},
	}
	sys, err := mbpol.NewSystem(ps, nil)
	require.NoError(t, err)

	_, err = mbpol.NewEvaluator(s).Evaluate(sys)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solves.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.particles))
}

func TestWriteTextfile(t *testing.T) {
	m := NewSolveMetrics(prometheus.Labels{"run_id": "abc"})
	m.ObserveSolve(2, mbpol.ConvergenceState{Iteration: 3, Converged: true}, time.Millisecond)

	file := filepath.Join(t.TempDir(), "mbpol.prom")
	require.NoError(t, m.WriteTextfile(file))

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	text := string(b)
	assert.Contains(t, text, `mbpol_scf_solves_total{converged="true",run_id="abc"} 1`)
	assert.True(t, strings.Contains(text, "# HELP mbpol_particles"))

	expected := `
# HELP mbpol_particles Number of particles in the most recent solve.
# TYPE mbpol_particles gauge
mbpol_particles{run_id="abc"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(
		m.Registry(), strings.NewReader(expected), "mbpol_particles",
	))
}
