package mbpol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

const (
	chargeO = -5.1966e-01
	chargeH = 2.5983e-01
	alphaO  = 0.001310
	alphaH  = 0.000294
	tholeW  = 0.4
)

// trimerPositions is a water trimer in Angstroms, O H H per molecule.
var trimerPositions = []geom.Vec{
	{-1.516074336e+00, -2.023167650e-01, 1.454672917e+00},
	{-6.218989773e-01, -6.009430735e-01, 1.572437625e+00},
	{-2.017613812e+00, -4.190350349e-01, 2.239642849e+00},
	{-1.763651687e+00, -3.816594649e-01, -1.300353949e+00},
	{-1.903851736e+00, -4.935677617e-01, -3.457810126e-01},
	{-2.527904158e+00, -7.613550077e-01, -1.733803676e+00},
	{-5.588472140e-01, 2.006699172e+00, -1.392786582e-01},
	{-9.411558180e-01, 1.541226676e+00, 6.163293071e-01},
	{-9.858551734e-01, 1.567124294e+00, -8.830970941e-01},
}

// trimerIntramolecular removes every intramolecular interaction except
// mutual induction.
var trimerIntramolecular = Scale{Mutual: 1}

func trimerParticles(shift geom.Vec) []Particle {
	ps := make([]Particle, len(trimerPositions))
	for i, x := range trimerPositions {
		p := Particle{
			Position: x.Scale(0.1).Add(shift),
			Charge:   chargeH,
			Thole:    tholeW,
			DampingFactor: alphaH, Polarizability: alphaH,
			Group: i / 3,
		}
		if i%3 == 0 {
			p.Charge = chargeO
			p.DampingFactor, p.Polarizability = alphaO, alphaO
		}
		ps[i] = p
	}
	return ps
}

func waterTrimer(t testing.TB, shift geom.Vec, group Scale) *System {
	sys, err := NewSystem(
		trimerParticles(shift), NewExclusions().SetGroupScale(group),
	)
	require.NoError(t, err)
	return sys
}

// multipoleQuartet has a full set of permanent moments on three sites and a
// bare, unpolarizable fourth site.
func multipoleQuartet(t testing.TB, shift geom.Vec) *System {
	ps := []Particle{
		{
			Position:   geom.Vec{0, 0, 0},
			Charge:     0.3,
			Dipole:     geom.Vec{0.01, -0.02, 0.015},
			Quadrupole: geom.Quadrupole{0.001, 0.0005, -0.0003, -0.002, 0.0004, 0.001},
			Thole:      0.39, DampingFactor: 0.0012, Polarizability: 0.0012,
			Group: 0,
		},
		{
			Position:   geom.Vec{0.25, 0.05, -0.03},
			Charge:     -0.2,
			Dipole:     geom.Vec{-0.005, 0.01, 0.02},
			Quadrupole: geom.Quadrupole{-0.0015, 0.0002, 0.0006, 0.0005, -0.0007, 0.001},
			Thole:      0.39, DampingFactor: 0.0009, Polarizability: 0.0009,
			Group: 1,
		},
		{
			Position:   geom.Vec{-0.08, 0.27, 0.11},
			Charge:     -0.1,
			Dipole:     geom.Vec{0, -0.012, 0.004},
			Quadrupole: geom.Quadrupole{0.0008, -0.0004, 0.0002, 0.0007, 0.0003, -0.0015},
			Thole:      0.39, DampingFactor: 0.0005, Polarizability: 0.0005,
			Group: 2,
		},
		{
			Position: geom.Vec{0.15, -0.2, 0.3},
			Thole:    0.39,
			Group:    3,
		},
	}
	for i := range ps { ps[i].Position = ps[i].Position.Add(shift) }

	sys, err := NewSystem(ps, nil)
	require.NoError(t, err)
	return sys
}

// oxygenPair is two like charges taken from neighbouring waters.
func oxygenPair(t testing.TB) *System {
	ps := make([]Particle, 2)
	for i, k := range []int{0, 3} {
		ps[i] = Particle{
			Position:      trimerPositions[k].Scale(0.1),
			Charge:        chargeO,
			Thole:         tholeW,
			DampingFactor: alphaO, Polarizability: alphaO,
			Group: NoGroup,
		}
	}
	sys, err := NewSystem(ps, nil)
	require.NoError(t, err)
	return sys
}

func mustSolver(t testing.TB, config SolverConfig, opts ...SolverOption) *Solver {
	s, err := NewSolver(config, opts...)
	require.NoError(t, err)
	return s
}

func solve(t testing.TB, sys *System, config SolverConfig) *Result {
	s := mustSolver(t, config)
	fixed, err := s.fields.FixedMultipoleField(sys)
	require.NoError(t, err)
	res, err := s.Solve(sys, fixed)
	require.NoError(t, err)
	return res
}

func assertVecInDelta(t *testing.T, want, got geom.Vec, delta float64, msgs ...interface{}) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], delta, msgs...)
}
