package mbpol

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

// Evaluation is everything computed for one System.
type Evaluation struct {
	// Fixed is the polarizability-scaled permanent field, the zeroth-order
	// induced dipoles.
	Fixed  Tracks
	Result *Result
	Energy EnergyTerms
	// Forces is nil unless the Evaluator was built with WithForces.
	Forces []geom.Vec
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// RequireConverged makes Evaluate fail with ErrNotConverged instead of
// returning best-effort dipoles.
func RequireConverged() EvaluatorOption {
	return func(e *Evaluator) { e.requireConverged = true }
}

// ExactSolve makes Evaluate use Solver.SolveExact instead of iterating.
func ExactSolve() EvaluatorOption {
	return func(e *Evaluator) { e.exact = true }
}

// WithForces makes Evaluate also compute NumericalForces with step h. h <= 0
// selects DefaultForceStep.
func WithForces(h float64) EvaluatorOption {
	return func(e *Evaluator) {
		if h <= 0 { h = DefaultForceStep }
		e.forceStep = h
	}
}

// Evaluator runs the full pipeline for a System: fixed field, induced
// dipoles, energy, and optionally forces. It is safe for concurrent use
// when its Solver's Observer is.
type Evaluator struct {
	solver           *Solver
	requireConverged bool
	exact            bool
	forceStep        float64
}

// NewEvaluator returns an Evaluator which solves with solver.
func NewEvaluator(solver *Solver, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{solver: solver}
	for _, opt := range opts { opt(e) }
	return e
}

// Solver returns the evaluator's solver.
func (e *Evaluator) Solver() *Solver { return e.solver }

// Evaluate computes the Evaluation of sys.
func (e *Evaluator) Evaluate(sys *System) (*Evaluation, error) {
	start := time.Now()
	s := e.solver

	fixed, err := s.fields.FixedMultipoleField(sys)
	if err != nil { return nil, err }

	var res *Result
	if e.exact {
		res, err = s.SolveExact(sys, fixed)
	} else {
		res, err = s.Solve(sys, fixed)
	}
	if err != nil { return nil, err }
	if e.requireConverged && !res.State.Converged {
		return nil, fmt.Errorf(
			"%w: residual %g > %g after %d iterations", ErrNotConverged,
			res.State.Residual, res.State.Epsilon, res.State.Iteration,
		)
	}

	energy, err := s.fields.Energy(sys, res.Dipoles)
	if err != nil { return nil, err }

	ev := &Evaluation{Fixed: fixed, Result: res, Energy: energy}
	if e.forceStep > 0 {
		ev.Forces, err = s.NumericalForces(sys, e.forceStep, res.Dipoles)
		if err != nil { return nil, err }
	}

	s.log.Info("evaluated system",
		zap.Int("particles", sys.Len()),
		zap.Bool("converged", res.State.Converged),
		zap.Int("iterations", res.State.Iteration),
		zap.Float64("multipole_energy", energy.Multipole),
		zap.Float64("polarization_energy", energy.Polarization()),
		zap.Bool("forces", ev.Forces != nil),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ev, nil
}
