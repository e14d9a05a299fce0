package mbpol

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotConverged reports a solve that hit its iteration cap. Solve
	// itself never returns it; callers which cannot use best-effort dipoles
	// wrap it themselves (see Evaluator).
	ErrNotConverged = errors.New("induced dipoles did not converge")
	// ErrConfig is returned for invalid solver settings.
	ErrConfig = errors.New("invalid solver configuration")
)

const (
	DefaultEpsilon       = 1e-7
	DefaultMaxIterations = 500
	DefaultMixing        = 1.0
)

// SolverConfig controls the self-consistent induced dipole iteration.
type SolverConfig struct {
	// Epsilon is the RMS dipole change, in the caller's dipole units, below
	// which the dipoles are considered converged.
	Epsilon float64
	// MaxIterations caps the number of iterations.
	MaxIterations int
	// Mixing is the successive over-relaxation factor in (0, 1]. The new
	// dipole is old + Mixing*(trial - old); 1 replaces it outright.
	Mixing float64
	// Workers is the number of goroutines used per field pass. Values <= 0
	// select runtime.NumCPU().
	Workers int
	// CachePairs stores the damped pair geometry once per solve instead of
	// recomputing it every iteration. Ignored for very large systems.
	CachePairs bool
}

// DefaultSolverConfig returns the configuration used when none is given.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Epsilon:       DefaultEpsilon,
		MaxIterations: DefaultMaxIterations,
		Mixing:        DefaultMixing,
		CachePairs:    true,
	}
}

// Validate returns an error wrapping ErrConfig if c cannot be used.
func (c SolverConfig) Validate() error {
	switch {
	case !(c.Epsilon > 0) || math.IsInf(c.Epsilon, 0):
		return fmt.Errorf("%w: Epsilon = %g must be positive", ErrConfig, c.Epsilon)
	case c.MaxIterations < 0:
		return fmt.Errorf(
			"%w: MaxIterations = %d must be non-negative",
			ErrConfig, c.MaxIterations,
		)
	case !(c.Mixing > 0 && c.Mixing <= 1):
		return fmt.Errorf("%w: Mixing = %g must be in (0, 1]", ErrConfig, c.Mixing)
	}
	return nil
}

// ConvergenceState describes one solve. It is created when the solve starts
// and is not reused.
type ConvergenceState struct {
	Iteration     int
	Residual      float64
	Epsilon       float64
	MaxIterations int
	Converged     bool
}

// Result is the output of a solve.
type Result struct {
	// Dipoles are the final induced dipoles of both tracks.
	Dipoles Tracks
	State   ConvergenceState
	// History[k] is the residual measured by iteration k+1.
	History []float64
}

// Observer is notified after every solve. Implementations must be safe for
// concurrent use if the Solver is shared.
type Observer interface {
	ObserveSolve(particles int, state ConvergenceState, elapsed time.Duration)
}

// SolverOption configures optional Solver collaborators.
type SolverOption func(*Solver)

// WithLogger makes the solver log to l.
func WithLogger(l *zap.Logger) SolverOption {
	return func(s *Solver) {
		if l != nil { s.log = l }
	}
}

// WithObserver registers o to be called after every solve.
func WithObserver(o Observer) SolverOption {
	return func(s *Solver) { s.observer = o }
}

// Solver finds induced dipoles which are consistent with the field they
// generate. A Solver holds no per-solve state and may be reused.
type Solver struct {
	config   SolverConfig
	fields   FieldCalculator
	log      *zap.Logger
	observer Observer
}

// NewSolver validates config and returns a Solver.
func NewSolver(config SolverConfig, opts ...SolverOption) (*Solver, error) {
	if err := config.Validate(); err != nil { return nil, err }

	s := &Solver{
		config: config,
		fields: FieldCalculator{Workers: config.Workers},
		log:    zap.NewNop(),
	}
	for _, opt := range opts { opt(s) }
	return s, nil
}

// Config returns the solver's configuration.
func (s *Solver) Config() SolverConfig { return s.config }

// InitInducedDipoles returns the zeroth iterate: a copy of the
// polarizability-scaled permanent field of each track.
func InitInducedDipoles(fixed Tracks) Tracks { return fixed.Clone() }

// Solve iterates from InitInducedDipoles(fixed). fixed is the output of
// FieldCalculator.FixedMultipoleField for sys.
//
// Running out of iterations is not an error: the returned Result has
// State.Converged == false and holds the last dipoles. An error is returned
// only if the iteration produces non-finite values.
func (s *Solver) Solve(sys *System, fixed Tracks) (*Result, error) {
	return s.SolveFrom(sys, fixed, InitInducedDipoles(fixed))
}

// SolveFrom is Solve with a caller-supplied starting guess, e.g. the
// dipoles from a previous, nearby geometry. initial is not modified.
func (s *Solver) SolveFrom(sys *System, fixed, initial Tracks) (*Result, error) {
	n := sys.Len()
	if fixed.Len() != n || initial.Len() != n {
		panic(fmt.Sprintf(
			"mbpol: solving %d particles with %d fixed fields and %d dipoles.",
			n, fixed.Len(), initial.Len(),
		))
	}

	start := time.Now()
	run := s.newRun(sys, fixed, initial.Clone())
	res := &Result{
		Dipoles: run.dipoles,
		State: ConvergenceState{
			Residual:      math.Inf(1),
			Epsilon:       s.config.Epsilon,
			MaxIterations: s.config.MaxIterations,
		},
	}

	s.log.Debug("solving induced dipoles",
		zap.Int("particles", n),
		zap.Float64("epsilon", s.config.Epsilon),
		zap.Int("max_iterations", s.config.MaxIterations),
		zap.Int("workers", run.pool.Workers()),
		zap.Bool("cached_pairs", run.cache != nil),
	)

	for res.State.Iteration < s.config.MaxIterations {
		residual, err := run.iterate()
		if err != nil {
			return res, fmt.Errorf("iteration %d: %w", res.State.Iteration+1, err)
		}

		res.State.Iteration++
		res.State.Residual = residual
		res.History = append(res.History, residual)
		s.log.Debug("scf iteration",
			zap.Int("iteration", res.State.Iteration),
			zap.Float64("residual", residual),
		)

		if residual <= s.config.Epsilon {
			res.State.Converged = true
			break
		}
	}

	elapsed := time.Since(start)
	if res.State.Converged {
		s.log.Debug("induced dipoles converged",
			zap.Int("iterations", res.State.Iteration),
			zap.Float64("residual", res.State.Residual),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		s.log.Warn("induced dipoles did not converge",
			zap.Int("iterations", res.State.Iteration),
			zap.Float64("residual", res.State.Residual),
			zap.Float64("epsilon", s.config.Epsilon),
		)
	}
	if s.observer != nil { s.observer.ObserveSolve(n, res.State, elapsed) }

	return res, nil
}

// Step performs exactly one iteration on dipoles in place and returns the
// residual of that iteration.
func (s *Solver) Step(sys *System, fixed, dipoles Tracks) (float64, error) {
	return s.newRun(sys, fixed, dipoles).iterate()
}

// scfRun is the transient state of a single solve.
type scfRun struct {
	sys     *System
	fixed   Tracks
	dipoles Tracks
	field   Tracks
	mixing  float64

	pool  *pool
	cache *pairCache
}

func (s *Solver) newRun(sys *System, fixed, dipoles Tracks) *scfRun {
	n := sys.Len()
	run := &scfRun{
		sys:     sys,
		fixed:   fixed,
		dipoles: dipoles,
		field:   NewTracks(n),
		mixing:  s.config.Mixing,
		pool:    newPool(n, s.config.Workers),
	}
	if s.config.CachePairs && cacheable(n) {
		run.cache = newPairCache(sys, run.pool)
	}
	return run
}

// iterate computes the induced field of the current dipoles, then replaces
// every dipole with fixed + alpha*field. The field pass completes before any
// dipole is written.
func (run *scfRun) iterate() (float64, error) {
	err := inducedField(run.sys, run.pool, run.cache, run.dipoles, run.field)
	if err != nil { return math.NaN(), err }

	n := run.sys.Len()
	var sumSq [NumTracks]float64
	for i := range run.sys.Particles {
		alpha := run.sys.Particles[i].Polarizability
		for t := range run.dipoles {
			old := run.dipoles[t][i]
			trial := run.fixed[t][i]
			trial.AddScaled(alpha, run.field[t][i])
			if run.mixing != 1 {
				trial = old.Add(trial.Sub(old).Scale(run.mixing))
			}
			if !trial.IsFinite() {
				return math.NaN(), fmt.Errorf(
					"%w: %s dipole at particle %d", ErrDiverged, Track(t), i,
				)
			}

			sumSq[t] += trial.Sub(old).Norm2()
			run.dipoles[t][i] = trial
		}
	}

	return rmsResidual(sumSq, n), nil
}

// rmsResidual returns the larger of the per-track RMS dipole changes.
func rmsResidual(sumSq [NumTracks]float64, n int) float64 {
	if n == 0 { return 0 }
	worst := 0.0
	for _, ss := range sumSq {
		rms := math.Sqrt(ss / float64(n))
		if rms > worst { worst = rms }
	}
	return worst
}

// RMSDifference returns the residual rmsResidual would report for a change
// from a to b.
func RMSDifference(a, b Tracks) float64 {
	var sumSq [NumTracks]float64
	for t := range a {
		for i := range a[t] { sumSq[t] += a[t][i].Sub(b[t][i]).Norm2() }
	}
	return rmsResidual(sumSq, a.Len())
}
