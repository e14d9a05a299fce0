/*package damping computes the Thole-damped inverse distance factors shared by
every multipole pair interaction.

The damping is the smeared-charge form used by TTM4 and MB-pol. For a pair
with damping factors dI, dJ (polarizability-like volumes) and Thole
parameters aI, aJ, the damping length is A = (dI*dJ)^(1/6), a = min(aI, aJ),
u = r/A, and the exponent is x = a*u^4. The scale functions are

	s0 = 1 - exp(-x) + a^(1/4) u Gamma(3/4, x)
	s1 = 1 - exp(-x)
	s2 = 1 - (1 + 4x/3) exp(-x)
	s3 = 1 - (1 + 16x/15 + 16x^2/15) exp(-x)
	s4 = 1 - (1 + 36x/35 + 16x^2/35 + 64x^3/105) exp(-x)

and satisfy s(n) = s(n-1) - r s'(n-1) / (2n - 1), so every damped field is
the exact gradient of the corresponding damped potential.
*/
package damping

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext"
)

// Cutoff is the exponent above which damping is dropped and the kernel
// reduces to bare Coulomb powers. exp(-50) is below double precision
// resolution relative to 1.
const Cutoff = 50.0

var gamma34 = math.Gamma(0.75)

// InverseRs holds the damped inverse distance factors for a single pair:
// R1 = s0/r, R3 = s1/r^3, R5 = 3 s2/r^5, R7 = 15 s3/r^7, R9 = 105 s4/r^9.
// The odd integer prefactors are the ones that appear in the Cartesian
// multipole tensors, so callers never multiply by them again.
type InverseRs struct {
	R1, R3, R5, R7, R9 float64
}

// Scales returns the factors ordered by increasing power.
func (rr InverseRs) Scales() [5]float64 {
	return [5]float64{rr.R1, rr.R3, rr.R5, rr.R7, rr.R9}
}

// Length returns the damping length (dampI*dampJ)^(1/6) of a pair.
func Length(dampI, dampJ float64) float64 {
	prod := dampI * dampJ
	if prod == 0 { return 0 }
	return math.Pow(prod, 1.0/6)
}

// InverseDistances computes the damped inverse distance factors for a pair
// separated by r. If justScale is true, the returned factors are s0 through
// s4 without the geometric r^-n falloff or integer prefactors.
//
// damp is the exponent x = a*u^4 that was applied, or zero if the pair is
// undamped (a zero damping factor on either side, or x >= Cutoff).
//
// r must be positive and finite: pairs at zero separation are excluded
// upstream, so a bad r is a programming error and InverseDistances panics.
func InverseDistances(
	dampI, dampJ, tholeI, tholeJ, r float64, justScale bool,
) (damp float64, rr InverseRs) {
	if !(r > 0) || math.IsInf(r, 0) {
		panic(fmt.Sprintf("damping: separation r = %g must be positive.", r))
	}

	s := [5]float64{1, 1, 1, 1, 1}
	damp = scales(dampI, dampJ, tholeI, tholeJ, r, &s)

	if justScale {
		return damp, InverseRs{s[0], s[1], s[2], s[3], s[4]}
	}

	rI := 1 / r
	r2I := rI * rI
	r3I := rI * r2I
	r5I := r3I * r2I
	r7I := r5I * r2I
	r9I := r7I * r2I

	rr.R1 = s[0] * rI
	rr.R3 = s[1] * r3I
	rr.R5 = 3 * s[2] * r5I
	rr.R7 = 15 * s[3] * r7I
	rr.R9 = 105 * s[4] * r9I
	return damp, rr
}

// scales writes the damping scale functions into s and returns the exponent.
// s is left untouched for undamped pairs.
func scales(dampI, dampJ, tholeI, tholeJ, r float64, s *[5]float64) float64 {
	A := Length(dampI, dampJ)
	if A == 0 { return 0 }

	a := tholeI
	if tholeJ < a { a = tholeJ }
	if a <= 0 { return 0 }

	u := r / A
	u2 := u * u
	x := a * u2 * u2
	if x >= Cutoff { return 0 }

	e := math.Exp(-x)
	x2 := x * x
	x3 := x2 * x

	s[0] = 1 - e + math.Pow(a, 0.25)*u*gamma34*mathext.GammaIncRegComp(0.75, x)
	s[1] = 1 - e
	s[2] = 1 - (1+4*x/3)*e
	s[3] = 1 - (1+16*x/15+16*x2/15)*e
	s[4] = 1 - (1+36*x/35+16*x2/35+64*x3/105)*e
	return x
}
