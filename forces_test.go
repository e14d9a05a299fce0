package mbpol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

func TestNumericalForcesCoulomb(t *testing.T) {
	// Two bare, undamped charges 0.3 nm apart along x.
	ps := []Particle{
		{Charge: 1, Group: NoGroup},
		{Position: geom.Vec{0.3, 0, 0}, Charge: -0.5, Group: NoGroup},
	}
	sys, err := NewSystem(ps, nil)
	require.NoError(t, err)

	s := mustSolver(t, DefaultSolverConfig())
	forces, err := s.NumericalForces(sys, 1e-5, NewTracks(2))
	require.NoError(t, err)

	// Attractive: F_0 = -q0 q1 / r^2 along -x from 0, i.e. towards 1.
	want := 0.5 / (0.3 * 0.3)
	assertVecInDelta(t, geom.Vec{want, 0, 0}, forces[0], 1e-5)
	assertVecInDelta(t, geom.Vec{-want, 0, 0}, forces[1], 1e-5)

	// The input geometry is not modified.
	assert.Equal(t, geom.Vec{0.3, 0, 0}, sys.Particles[1].Position)
}

func TestNumericalForcesNetZero(t *testing.T) {
	sys := waterTrimer(t, geom.Vec{}, trimerIntramolecular)
	config := DefaultSolverConfig()
	config.Epsilon = 1e-11
	s := mustSolver(t, config)

	ev, err := NewEvaluator(s, WithForces(1e-5)).Evaluate(sys)
	require.NoError(t, err)
	require.Len(t, ev.Forces, sys.Len())

	var net geom.Vec
	for _, f := range ev.Forces { net = net.Add(f) }
	for k := range net { assert.InDelta(t, 0, net[k], 1e-5) }

	nonzero := false
	for _, f := range ev.Forces { nonzero = nonzero || f.Norm() > 1e-2 }
	assert.True(t, nonzero)
}

func TestNumericalForcesNotConverged(t *testing.T) {
	sys := waterTrimer(t, geom.Vec{}, DefaultGroupScale)
	config := DefaultSolverConfig()
	config.MaxIterations = 1
	s := mustSolver(t, config)

	_, err := s.NumericalForces(sys, 1e-5, NewTracks(sys.Len()))
	assert.ErrorIs(t, err, ErrNotConverged)
	assert.Panics(t, func() { s.NumericalForces(sys, 0, NewTracks(sys.Len())) })
	assert.Panics(t, func() { s.NumericalForces(sys, 1e-5, NewTracks(2)) })
}
