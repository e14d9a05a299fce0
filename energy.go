package mbpol

import (
	"fmt"

	"github.com/mqaisran/mbpol-openmm-plugin/damping"
	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

// EnergyTerms is the electrostatic energy of a System split by origin. Every
// polarization term is the mean of its Direct and Polar track values.
type EnergyTerms struct {
	// Multipole is the permanent-permanent pair energy.
	Multipole float64
	// PermanentInduced is -sum_i mu_i . E0_i, the induced dipoles in the
	// permanent field.
	PermanentInduced float64
	// InducedInduced is -1/2 sum_i mu_i . Eind_i, the induced dipole pair
	// energy.
	InducedInduced float64
	// Self is +1/2 sum_i |mu_i|^2 / alpha_i, the work spent inducing the
	// dipoles.
	Self float64
}

// Polarization returns the total polarization energy. At convergence it
// equals -1/2 sum_i mu_i . E0_i.
func (e EnergyTerms) Polarization() float64 {
	return e.PermanentInduced + e.InducedInduced + e.Self
}

// Total returns the full electrostatic energy.
func (e EnergyTerms) Total() float64 { return e.Multipole + e.Polarization() }

// ElectrostaticEnergy returns EnergyTerms.Total for sys with the given
// induced dipoles, using one worker per CPU.
func ElectrostaticEnergy(sys *System, dipoles Tracks) (float64, error) {
	e, err := FieldCalculator{}.Energy(sys, dipoles)
	return e.Total(), err
}

// Energy assembles the electrostatic energy of sys from its permanent
// multipoles and the given (normally converged) induced dipoles.
func (fc FieldCalculator) Energy(sys *System, dipoles Tracks) (EnergyTerms, error) {
	var e EnergyTerms
	n := sys.Len()
	if dipoles.Len() != n {
		panic(fmt.Sprintf(
			"mbpol: energy of %d particles with %d dipoles.", n, dipoles.Len(),
		))
	}

	p := newPool(n, fc.Workers)
	rows := make([]float64, n)
	err := p.run(func(w *workspace) error {
		for i := w.lo; i < w.hi; i++ {
			rows[i] = multipoleRow(sys, i)
			if !isFinite(rows[i]) {
				return fmt.Errorf("%w: multipole energy of particle %d", ErrDiverged, i)
			}
		}
		return nil
	})
	if err != nil { return e, err }
	for _, x := range rows { e.Multipole += x }

	fixed, err := fc.RawFixedField(sys)
	if err != nil { return e, err }
	induced := NewTracks(n)
	if err := inducedField(sys, p, nil, dipoles, induced); err != nil {
		return e, err
	}

	weight := 1 / float64(NumTracks)
	for t := range dipoles {
		for i := range sys.Particles {
			mu := dipoles[t][i]
			e.PermanentInduced -= weight * mu.Dot(fixed[t][i])
			e.InducedInduced -= weight * 0.5 * mu.Dot(induced[t][i])

			alpha := sys.Particles[i].Polarizability
			if alpha > 0 { e.Self += weight * 0.5 * mu.Norm2() / alpha }
		}
	}
	return e, nil
}

// multipoleRow returns the scaled permanent pair energy of i with every j > i.
func multipoleRow(sys *System, i int) float64 {
	ps := sys.Particles
	pi := &ps[i]
	sum := 0.0
	for j := i + 1; j < len(ps); j++ {
		s := sys.Exclusions.Scale(ps, i, j).Multipole
		if s == 0 { continue }

		pj := &ps[j]
		d := pj.Position.Sub(pi.Position)
		_, rr := damping.InverseDistances(
			pi.DampingFactor, pj.DampingFactor, pi.Thole, pj.Thole,
			d.Norm(), false,
		)
		sum += s * MultipolePairEnergy(pi, pj, d, rr)
	}
	return sum
}

// MultipolePairEnergy returns the interaction energy of the permanent
// charge, dipole, and quadrupole of pi with those of pk, where d points from
// pi to pk and rr holds the pair's inverse distance factors.
func MultipolePairEnergy(pi, pk *Particle, d geom.Vec, rr damping.InverseRs) float64 {
	ci, ck := pi.Charge, pk.Charge
	di, dk := pi.Dipole, pk.Dipole
	qir, qkr := pi.Quadrupole.Mul(d), pk.Quadrupole.Mul(d)

	dir, dkr, dik := di.Dot(d), dk.Dot(d), di.Dot(dk)
	qrri, qrrk, qrrik := qir.Dot(d), qkr.Dot(d), qir.Dot(qkr)
	qik := pi.Quadrupole.Contract(pk.Quadrupole)
	diqkr, dkqir := di.Dot(qkr), dk.Dot(qir)

	term1 := ci * ck
	term2 := ck*dir - ci*dkr + dik
	term3 := ci*qrrk + ck*qrri - dir*dkr + 2*(dkqir-diqkr+qik)
	term4 := dir*qrrk - dkr*qrri - 4*qrrik
	term5 := qrri * qrrk

	return term1*rr.R1 + term2*rr.R3 + term3*rr.R5 + term4*rr.R7 + term5*rr.R9
}
