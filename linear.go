package mbpol

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// MaxExactParticles bounds the size of systems SolveExact accepts. The
// dense matrix has (3N)^2 entries.
const MaxExactParticles = 2000

// SolveExact finds the induced dipoles without iterating, by LU factorizing
// the 3N x 3N system
//
//     mu_i - alpha_i sum_j T_ij mu_j = fixed_i
//
// where T_ij is the mutually scaled dipole field tensor. It costs O(N^3)
// and is meant for small systems and for checking Solve. The returned State
// has Iteration 0 and the Residual of one further iteration from the
// solution.
func (s *Solver) SolveExact(sys *System, fixed Tracks) (*Result, error) {
	n := sys.Len()
	if fixed.Len() != n {
		panic(fmt.Sprintf(
			"mbpol: solving %d particles with %d fixed fields.", n, fixed.Len(),
		))
	}
	if n > MaxExactParticles {
		return nil, fmt.Errorf(
			"%w: %d particles is too many for an exact solve (max %d)",
			ErrConfig, n, MaxExactParticles,
		)
	}

	start := time.Now()
	res := &Result{
		Dipoles: NewTracks(n),
		State: ConvergenceState{
			Epsilon: s.config.Epsilon, MaxIterations: s.config.MaxIterations,
			Converged: true,
		},
	}
	if n == 0 { return res, nil }

	var lu mat.LU
	lu.Factorize(polarizationMatrix(sys))

	b := mat.NewVecDense(3*n, nil)
	var x mat.VecDense
	for t := range fixed {
		for i, v := range fixed[t] {
			for k := range v { b.SetVec(3*i+k, v[k]) }
		}
		if err := lu.SolveVecTo(&x, false, b); err != nil {
			return nil, fmt.Errorf("%w: %s track: %v", ErrDiverged, Track(t), err)
		}
		for i := range res.Dipoles[t] {
			for k := 0; k < 3; k++ { res.Dipoles[t][i][k] = x.AtVec(3*i + k) }
		}
	}

	check := res.Dipoles.Clone()
	residual, err := s.Step(sys, fixed, check)
	if err != nil { return nil, err }
	res.State.Residual = residual
	res.State.Converged = residual <= s.config.Epsilon

	elapsed := time.Since(start)
	s.log.Debug("solved induced dipoles exactly",
		zap.Int("particles", n),
		zap.Float64("residual", residual),
		zap.Duration("elapsed", elapsed),
	)
	if s.observer != nil { s.observer.ObserveSolve(n, res.State, elapsed) }
	return res, nil
}

// polarizationMatrix returns I - alpha T for sys, row block i belonging to
// particle i.
func polarizationMatrix(sys *System) *mat.Dense {
	n := sys.Len()
	a := mat.NewDense(3*n, 3*n, nil)
	for i := 0; i < 3*n; i++ { a.Set(i, i, 1) }

	for i := range sys.Particles {
		alpha := sys.Particles[i].Polarizability
		if alpha == 0 { continue }
		for j := range sys.Particles {
			if j == i { continue }
			term, ok := mutualTerm(sys, i, j)
			if !ok { continue }

			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					tij := term.r5 * term.d[r] * term.d[c]
					if r == c { tij -= term.r3 }
					a.Set(3*i+r, 3*j+c, -alpha*tij)
				}
			}
		}
	}
	return a
}
