package mbpol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

func TestParticleValidate(t *testing.T) {
	good := Particle{Polarizability: 1e-3, DampingFactor: 1e-3, Thole: 0.4, Group: NoGroup}
	require.NoError(t, good.Validate())

	tests := []struct {
		name string
		edit func(p *Particle)
	}{
		{"NaN position", func(p *Particle) { p.Position[1] = math.NaN() }},
		{"infinite charge", func(p *Particle) { p.Charge = math.Inf(1) }},
		{"NaN dipole", func(p *Particle) { p.Dipole[2] = math.NaN() }},
		{"NaN quadrupole", func(p *Particle) { p.Quadrupole[geom.YZ] = math.NaN() }},
		{"negative polarizability", func(p *Particle) { p.Polarizability = -1e-3 }},
		{"negative damping", func(p *Particle) { p.DampingFactor = -1 }},
		{"negative Thole", func(p *Particle) { p.Thole = -0.1 }},
		{"bad group", func(p *Particle) { p.Group = -2 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := good
			tc.edit(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParticle)
		})
	}
}

func TestNewSystem(t *testing.T) {
	sys, err := NewSystem(trimerParticles(geom.Vec{}), nil)
	require.NoError(t, err)
	assert.Equal(t, 9, sys.Len())
	assert.Equal(t, DefaultGroupScale, sys.Exclusions.GroupScale())

	bad := trimerParticles(geom.Vec{})
	bad[4].Polarizability = -1
	_, err = NewSystem(bad, nil)
	assert.ErrorIs(t, err, ErrInvalidParticle)
	assert.Contains(t, err.Error(), "particle 4")

	empty, err := NewSystem(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestNewSystemCoincident(t *testing.T) {
	ps := []Particle{
		{Position: geom.Vec{1, 2, 3}, Charge: 1, Group: NoGroup},
		{Position: geom.Vec{1, 2, 3}, Charge: -1, Group: NoGroup},
	}
	_, err := NewSystem(ps, nil)
	assert.ErrorIs(t, err, ErrCoincident)

	// A fully excluded pair may share a position.
	ex := NewExclusions()
	ex.Set(0, 1, Excluded)
	_, err = NewSystem(ps, ex)
	assert.NoError(t, err)
}

func TestNewSystemExclusionRange(t *testing.T) {
	ex := NewExclusions()
	ex.Set(0, 5, Excluded)
	_, err := NewSystem(trimerParticles(geom.Vec{})[:3], ex)
	assert.ErrorIs(t, err, ErrInvalidParticle)

	ex = NewExclusions()
	ex.Set(0, 1, Scale{Multipole: math.NaN()})
	_, err = NewSystem(trimerParticles(geom.Vec{})[:3], ex)
	assert.ErrorIs(t, err, ErrInvalidParticle)
}

func TestSystemTranslate(t *testing.T) {
	sys := waterTrimer(t, geom.Vec{}, DefaultGroupScale)
	dx := geom.Vec{1, -2, 0.5}
	moved := sys.Translate(dx)

	require.Equal(t, sys.Len(), moved.Len())
	assert.Same(t, sys.Exclusions, moved.Exclusions)
	for i := range sys.Particles {
		assert.Equal(t, sys.Particles[i].Position.Add(dx), moved.Particles[i].Position)
	}
	assert.Equal(t, trimerPositions[0].Scale(0.1), sys.Particles[0].Position)
}

func TestTracks(t *testing.T) {
	ts := NewTracks(3)
	assert.Equal(t, 3, ts.Len())
	ts[Polar][1] = geom.Vec{1, 2, 3}

	c := ts.Clone()
	c[Polar][1][0] = 7
	assert.Equal(t, 1.0, ts[Polar][1][0])

	ts.CopyFrom(c)
	assert.Equal(t, 7.0, ts[Polar][1][0])
	assert.Panics(t, func() { ts.CopyFrom(NewTracks(2)) })

	assert.Equal(t, "direct", Direct.String())
	assert.Equal(t, "polar", Polar.String())
	assert.Equal(t, "Track(5)", Track(5).String())
}
