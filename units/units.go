/*package units converts between the units files are written in and the
units used by package mbpol.

Internally, lengths are in nm, charges in e, polarizabilities and damping
factors in nm^3 and energies in e^2/nm. Nothing in the core converts; every
conversion happens here, at the edge of a run.
*/
package units

import (
	"fmt"
	"strings"

	mbpol "github.com/mqaisran/mbpol-openmm-plugin"
)

const (
	// NMPerAngstrom is the number of nm in one Angstrom.
	NMPerAngstrom = 0.1
	// Coulomb is 1/(4 pi eps0) in kJ nm / (mol e^2).
	Coulomb = 138.935456
	// JoulePerCalorie is the thermochemical calorie.
	JoulePerCalorie = 4.184
)

// Length is a unit of length used in input and output files.
type Length int

const (
	Nanometer Length = iota
	Angstrom
)

// ParseLength accepts "nm" or "angstrom" (and a few spellings of each).
func ParseLength(s string) (Length, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nm", "nanometer", "nanometers":
		return Nanometer, nil
	case "a", "ang", "angstrom", "angstroms":
		return Angstrom, nil
	}
	return Nanometer, fmt.Errorf("Unrecognized length unit '%s'.", s)
}

func (l Length) String() string {
	switch l {
	case Nanometer:
		return "nm"
	case Angstrom:
		return "angstrom"
	}
	return fmt.Sprintf("Length(%d)", int(l))
}

// NM returns the size of one l in nm.
func (l Length) NM() float64 {
	if l == Angstrom { return NMPerAngstrom }
	return 1
}

// ToInternal converts particles given in l (lengths in l, dipoles in e l,
// quadrupoles in e l^2, volumes in l^3) to internal units in place.
func ToInternal(ps []mbpol.Particle, l Length) {
	k := l.NM()
	if k == 1 { return }
	k3 := k * k * k
	for i := range ps {
		p := &ps[i]
		p.Position = p.Position.Scale(k)
		p.Dipole = p.Dipole.Scale(k)
		p.Quadrupole = p.Quadrupole.Scale(k * k)
		p.Polarizability *= k3
		p.DampingFactor *= k3
	}
}

// Dipoles converts induced dipoles from e nm to e l in place.
func Dipoles(ts mbpol.Tracks, l Length) {
	k := 1 / l.NM()
	for t := range ts {
		for i := range ts[t] { ts[t][i] = ts[t][i].Scale(k) }
	}
}

// Energy is a unit of energy used in output.
type Energy int

const (
	// ChargeSquaredPerNM is the internal unit, e^2/nm.
	ChargeSquaredPerNM Energy = iota
	KJPerMol
	KcalPerMol
)

// ParseEnergy accepts "e2/nm", "kJ/mol" or "kcal/mol", ignoring case.
func ParseEnergy(s string) (Energy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "e2/nm", "e^2/nm":
		return ChargeSquaredPerNM, nil
	case "kj/mol", "kj":
		return KJPerMol, nil
	case "kcal/mol", "kcal":
		return KcalPerMol, nil
	}
	return ChargeSquaredPerNM, fmt.Errorf("Unrecognized energy unit '%s'.", s)
}

func (e Energy) String() string {
	switch e {
	case ChargeSquaredPerNM:
		return "e^2/nm"
	case KJPerMol:
		return "kJ/mol"
	case KcalPerMol:
		return "kcal/mol"
	}
	return fmt.Sprintf("Energy(%d)", int(e))
}

// FromInternal converts an energy in e^2/nm to u.
func (u Energy) FromInternal(x float64) float64 {
	switch u {
	case KJPerMol:
		return x * Coulomb
	case KcalPerMol:
		return x * Coulomb / JoulePerCalorie
	}
	return x
}

// Force converts a force in e^2/nm^2 to u per l.
func (u Energy) Force(f float64, l Length) float64 {
	return u.FromInternal(f) * l.NM()
}
