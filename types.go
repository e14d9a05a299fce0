package mbpol

import (
	"errors"
	"fmt"
	"math"

	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

var (
	// ErrInvalidParticle is returned when a particle's parameters are
	// unphysical (negative polarizability, NaN positions, etc.).
	ErrInvalidParticle = errors.New("invalid particle")
	// ErrCoincident is returned when two interacting particles share a
	// position.
	ErrCoincident = errors.New("coincident particles")
)

// NoGroup marks a particle that does not belong to any polarization group.
const NoGroup = -1

// Particle is a single polarizable multipole site in the lab frame.
//
// DampingFactor is a polarizability-like volume: the damping length of a
// pair is (DampingFactor_i * DampingFactor_j)^(1/6). It is normally equal to
// Polarizability.
type Particle struct {
	Position   geom.Vec
	Charge     float64
	Dipole     geom.Vec
	Quadrupole geom.Quadrupole

	Thole          float64
	DampingFactor  float64
	Polarizability float64

	// Group is the particle's polarization group, or NoGroup.
	Group int
}

// Validate checks that p can be handed to the solver.
func (p *Particle) Validate() error {
	switch {
	case !p.Position.IsFinite():
		return fmt.Errorf("%w: non-finite position %v", ErrInvalidParticle, p.Position)
	case !p.Dipole.IsFinite() || !p.Quadrupole.IsFinite() || !isFinite(p.Charge):
		return fmt.Errorf("%w: non-finite multipole moments", ErrInvalidParticle)
	case !isFinite(p.Polarizability) || p.Polarizability < 0:
		return fmt.Errorf(
			"%w: polarizability %g must be non-negative",
			ErrInvalidParticle, p.Polarizability,
		)
	case !isFinite(p.DampingFactor) || p.DampingFactor < 0:
		return fmt.Errorf(
			"%w: damping factor %g must be non-negative",
			ErrInvalidParticle, p.DampingFactor,
		)
	case !isFinite(p.Thole) || p.Thole < 0:
		return fmt.Errorf(
			"%w: Thole parameter %g must be non-negative",
			ErrInvalidParticle, p.Thole,
		)
	case p.Group < NoGroup:
		return fmt.Errorf("%w: group %d", ErrInvalidParticle, p.Group)
	}
	return nil
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// System is a validated, read-only collection of particles together with the
// pair scaling rules that apply to them. It is built once per evaluation.
type System struct {
	Particles  []Particle
	Exclusions *Exclusions
}

// NewSystem validates particles and returns a System which references them.
// A nil exclusions value means every pair interacts with unit scale.
func NewSystem(particles []Particle, exclusions *Exclusions) (*System, error) {
	if exclusions == nil { exclusions = NewExclusions() }

	for i := range particles {
		if err := particles[i].Validate(); err != nil {
			return nil, fmt.Errorf("particle %d: %w", i, err)
		}
	}

	if err := exclusions.check(len(particles)); err != nil { return nil, err }

	for i := range particles {
		for j := i + 1; j < len(particles); j++ {
			if particles[i].Position != particles[j].Position { continue }
			if exclusions.Scale(particles, i, j).IsZero() { continue }
			return nil, fmt.Errorf(
				"%w: particles %d and %d are both at %v",
				ErrCoincident, i, j, particles[i].Position,
			)
		}
	}

	return &System{Particles: particles, Exclusions: exclusions}, nil
}

// Len returns the number of particles in the system.
func (sys *System) Len() int { return len(sys.Particles) }

// Translate returns a copy of sys with every particle shifted by dx.
func (sys *System) Translate(dx geom.Vec) *System {
	ps := make([]Particle, len(sys.Particles))
	copy(ps, sys.Particles)
	for i := range ps { ps[i].Position.Translate(dx) }
	return &System{Particles: ps, Exclusions: sys.Exclusions}
}

// Track indexes the two induced dipole states carried for every particle.
type Track int

const (
	// Direct is the track driven by the direct-scaled permanent field.
	Direct Track = iota
	// Polar is the track driven by the polar-scaled permanent field.
	Polar
	// NumTracks is the number of tracks.
	NumTracks
)

func (t Track) String() string {
	switch t {
	case Direct:
		return "direct"
	case Polar:
		return "polar"
	}
	return fmt.Sprintf("Track(%d)", int(t))
}

// Tracks is a pair of parallel per-particle vector buffers, one per Track.
// It holds fields and induced dipoles.
type Tracks [NumTracks][]geom.Vec

// NewTracks allocates zeroed buffers for n particles.
func NewTracks(n int) Tracks {
	var ts Tracks
	for t := range ts { ts[t] = make([]geom.Vec, n) }
	return ts
}

// Len returns the number of particles the buffers describe.
func (ts Tracks) Len() int { return len(ts[Direct]) }

// Clone returns a deep copy of ts.
func (ts Tracks) Clone() Tracks {
	var out Tracks
	for t := range ts {
		out[t] = make([]geom.Vec, len(ts[t]))
		copy(out[t], ts[t])
	}
	return out
}

// CopyFrom overwrites ts with the contents of src. Both must have the same
// length.
func (ts Tracks) CopyFrom(src Tracks) {
	if ts.Len() != src.Len() {
		panic(fmt.Sprintf("mbpol: copying %d particles into %d.", src.Len(), ts.Len()))
	}
	for t := range ts { copy(ts[t], src[t]) }
}
