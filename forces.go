package mbpol

import (
	"fmt"

	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

// DefaultForceStep is the central difference step used by NumericalForces,
// in length units.
const DefaultForceStep = 1e-5

// NumericalForces returns -dE/dx for every particle by central differences
// of EnergyTerms.Total with step h. Each displaced geometry is re-solved
// starting from warm, normally the converged dipoles of sys, so the solver
// epsilon must be well below h times the expected force for the result to
// be meaningful. A displaced solve which does not converge is an error
// wrapping ErrNotConverged.
func (s *Solver) NumericalForces(sys *System, h float64, warm Tracks) ([]geom.Vec, error) {
	if !(h > 0) {
		panic(fmt.Sprintf("mbpol: force step h = %g must be positive.", h))
	}
	n := sys.Len()
	if warm.Len() != n {
		panic(fmt.Sprintf(
			"mbpol: forces of %d particles with %d warm-start dipoles.",
			n, warm.Len(),
		))
	}

	moved := &System{
		Particles:  make([]Particle, n),
		Exclusions: sys.Exclusions,
	}
	copy(moved.Particles, sys.Particles)

	forces := make([]geom.Vec, n)
	for i := range forces {
		for k := 0; k < 3; k++ {
			x0 := moved.Particles[i].Position[k]

			moved.Particles[i].Position[k] = x0 + h
			up, err := s.energyAt(moved, warm)
			if err != nil { return nil, fmt.Errorf("particle %d: %w", i, err) }

			moved.Particles[i].Position[k] = x0 - h
			down, err := s.energyAt(moved, warm)
			if err != nil { return nil, fmt.Errorf("particle %d: %w", i, err) }

			moved.Particles[i].Position[k] = x0
			forces[i][k] = -(up - down) / (2 * h)
		}
	}
	return forces, nil
}

// energyAt solves sys from warm and returns its total energy.
func (s *Solver) energyAt(sys *System, warm Tracks) (float64, error) {
	fixed, err := s.fields.FixedMultipoleField(sys)
	if err != nil { return 0, err }

	res, err := s.SolveFrom(sys, fixed, warm)
	if err != nil { return 0, err }
	if !res.State.Converged {
		return 0, fmt.Errorf(
			"%w: displaced geometry, residual %g", ErrNotConverged,
			res.State.Residual,
		)
	}

	e, err := s.fields.Energy(sys, res.Dipoles)
	return e.Total(), err
}
