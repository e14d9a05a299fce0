package mbpol

import (
	"errors"
	"fmt"

	"github.com/mqaisran/mbpol-openmm-plugin/damping"
	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

// ErrDiverged is returned when a field or dipole stops being finite, which
// happens when the polarization catastrophe is not damped out.
var ErrDiverged = errors.New("non-finite field")

// FieldCalculator evaluates the pairwise field sums of a System. The zero
// value uses one worker per logical CPU.
type FieldCalculator struct {
	// Workers is the number of goroutines used for each pass. Values <= 0
	// select runtime.NumCPU().
	Workers int
}

// FixedMultipoleField computes the field at every particle due to the
// permanent multipoles of all other particles, scaled by the particle's own
// polarizability. Direct and Polar differ only in the exclusion scale applied
// to each pair. The result is the zeroth-order induced dipole.
func (fc FieldCalculator) FixedMultipoleField(sys *System) (Tracks, error) {
	field, err := fc.RawFixedField(sys)
	if err != nil { return field, err }

	for i := range sys.Particles {
		alpha := sys.Particles[i].Polarizability
		for t := range field { field[t][i] = field[t][i].Scale(alpha) }
	}
	return field, nil
}

// RawFixedField is FixedMultipoleField without the polarizability scaling.
func (fc FieldCalculator) RawFixedField(sys *System) (Tracks, error) {
	n := sys.Len()
	field := NewTracks(n)

	err := newPool(n, fc.Workers).run(func(w *workspace) error {
		for i := w.lo; i < w.hi; i++ {
			ed, ep := fixedFieldRow(sys, i)
			if !ed.IsFinite() || !ep.IsFinite() {
				return fmt.Errorf("%w: permanent field at particle %d", ErrDiverged, i)
			}
			field[Direct][i], field[Polar][i] = ed, ep
		}
		return nil
	})
	return field, err
}

// fixedFieldRow returns the raw Direct and Polar permanent fields at i.
func fixedFieldRow(sys *System, i int) (ed, ep geom.Vec) {
	ps := sys.Particles
	pi := &ps[i]

	for j := range ps {
		if j == i { continue }
		s := sys.Exclusions.Scale(ps, i, j)
		if s.Direct == 0 && s.Polar == 0 { continue }

		pj := &ps[j]
		d := pj.Position.Sub(pi.Position)
		_, rr := damping.InverseDistances(
			pi.DampingFactor, pj.DampingFactor, pi.Thole, pj.Thole,
			d.Norm(), false,
		)

		f := permanentField(pj, d, rr)
		ed.AddScaled(-s.Direct, f)
		ep.AddScaled(-s.Polar, f)
	}
	return ed, ep
}

// permanentField returns minus the field at the origin of d due to the
// permanent multipoles of pj, located at d.
func permanentField(pj *Particle, d geom.Vec, rr damping.InverseRs) geom.Vec {
	qd := pj.Quadrupole.Mul(d)
	factor := rr.R3*pj.Charge - rr.R5*pj.Dipole.Dot(d) + rr.R7*d.Dot(qd)

	f := d.Scale(factor)
	f.AddScaled(rr.R3, pj.Dipole)
	f.AddScaled(-2*rr.R5, qd)
	return f
}

// InducedField computes the field at every particle due to the induced
// dipoles of all other particles, for both tracks, and writes it to out. The
// Mutual exclusion scale applies to each pair.
func (fc FieldCalculator) InducedField(sys *System, dipoles, out Tracks) error {
	return inducedField(sys, newPool(sys.Len(), fc.Workers), nil, dipoles, out)
}

func inducedField(
	sys *System, p *pool, pc *pairCache, dipoles, out Tracks,
) error {
	n := sys.Len()
	if dipoles.Len() != n || out.Len() != n {
		panic(fmt.Sprintf(
			"mbpol: induced field of %d particles with %d dipoles into %d fields.",
			n, dipoles.Len(), out.Len(),
		))
	}

	return p.run(func(w *workspace) error {
		for i := w.lo; i < w.hi; i++ {
			var e [NumTracks]geom.Vec
			if pc != nil {
				for _, term := range pc.rows[i] {
					addDipoleField(&e, &term, dipoles)
				}
			} else {
				for j := 0; j < n; j++ {
					if j == i { continue }
					term, ok := mutualTerm(sys, i, j)
					if ok { addDipoleField(&e, &term, dipoles) }
				}
			}

			for t := range out {
				if !e[t].IsFinite() {
					return fmt.Errorf(
						"%w: %s induced field at particle %d",
						ErrDiverged, Track(t), i,
					)
				}
				out[t][i] = e[t]
			}
		}
		return nil
	})
}

// addDipoleField adds the damped dipole field of source term.j to e.
func addDipoleField(e *[NumTracks]geom.Vec, term *pairTerm, dipoles Tracks) {
	for t := range e {
		mu := dipoles[t][term.j]
		e[t].AddScaled(-term.r3, mu)
		e[t].AddScaled(term.r5*mu.Dot(term.d), term.d)
	}
}
