package io

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	mbpol "github.com/mqaisran/mbpol-openmm-plugin"
	"github.com/mqaisran/mbpol-openmm-plugin/geom"
	"github.com/mqaisran/mbpol-openmm-plugin/units"
)

// EnergyReport is the printable summary of one evaluation, in output units.
type EnergyReport struct {
	RunID      string `yaml:"run_id,omitempty"`
	Particles  int    `yaml:"particles"`
	EnergyUnit string `yaml:"energy_unit"`

	Multipole        float64 `yaml:"multipole"`
	PermanentInduced float64 `yaml:"permanent_induced"`
	InducedInduced   float64 `yaml:"induced_induced"`
	Self             float64 `yaml:"self"`
	Polarization     float64 `yaml:"polarization"`
	Total            float64 `yaml:"total"`

	Converged  bool    `yaml:"converged"`
	Iterations int     `yaml:"iterations"`
	Residual   float64 `yaml:"residual"`

	// Forces are in EnergyUnit per LengthUnit.
	LengthUnit string       `yaml:"length_unit,omitempty"`
	Forces     [][3]float64 `yaml:"forces,omitempty,flow"`
}

// NewEnergyReport converts ev to energy unit e and length unit l.
func NewEnergyReport(
	runID string, ev *mbpol.Evaluation, e units.Energy, l units.Length,
) *EnergyReport {
	terms := ev.Energy
	r := &EnergyReport{
		RunID:            runID,
		Particles:        ev.Fixed.Len(),
		EnergyUnit:       e.String(),
		Multipole:        e.FromInternal(terms.Multipole),
		PermanentInduced: e.FromInternal(terms.PermanentInduced),
		InducedInduced:   e.FromInternal(terms.InducedInduced),
		Self:             e.FromInternal(terms.Self),
		Polarization:     e.FromInternal(terms.Polarization()),
		Total:            e.FromInternal(terms.Total()),
		Converged:        ev.Result.State.Converged,
		Iterations:       ev.Result.State.Iteration,
		Residual:         ev.Result.State.Residual,
	}

	if ev.Forces != nil {
		r.LengthUnit = l.String()
		r.Forces = make([][3]float64, len(ev.Forces))
		for i, f := range ev.Forces {
			for k := range f { r.Forces[i][k] = e.Force(f[k], l) }
		}
	}
	return r
}

// WriteEnergy writes r to w in format f.
func WriteEnergy(w io.Writer, r *EnergyReport, f Format) error {
	if f == YAML { return writeYAML(w, r) }

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if r.RunID != "" { fmt.Fprintf(tw, "# run\t%s\n", r.RunID) }
	fmt.Fprintf(tw, "# particles\t%d\n", r.Particles)
	fmt.Fprintf(tw, "# converged\t%t\t(%d iterations, residual %.3g)\n",
		r.Converged, r.Iterations, r.Residual)
	fmt.Fprintf(tw, "term\tenergy (%s)\n", r.EnergyUnit)
	for _, row := range []struct {
		name string
		x    float64
	}{
		{"multipole", r.Multipole},
		{"permanent-induced", r.PermanentInduced},
		{"induced-induced", r.InducedInduced},
		{"self", r.Self},
		{"polarization", r.Polarization},
		{"total", r.Total},
	} {
		fmt.Fprintf(tw, "%s\t%.10g\n", row.name, row.x)
	}

	if r.Forces != nil {
		fmt.Fprintf(tw, "\nparticle\tfx\tfy\tfz\t(%s/%s)\n", r.EnergyUnit, r.LengthUnit)
		for i, f := range r.Forces {
			fmt.Fprintf(tw, "%d\t%.8g\t%.8g\t%.8g\n", i, f[0], f[1], f[2])
		}
	}
	return tw.Flush()
}

// DipoleReport lists the induced dipoles of every particle.
type DipoleReport struct {
	RunID      string       `yaml:"run_id,omitempty"`
	DipoleUnit string       `yaml:"dipole_unit"`
	Converged  bool         `yaml:"converged"`
	Direct     [][3]float64 `yaml:"direct,flow"`
	Polar      [][3]float64 `yaml:"polar,flow"`
}

// NewDipoleReport converts the dipoles of res to e l.
func NewDipoleReport(runID string, res *mbpol.Result, l units.Length) *DipoleReport {
	ts := res.Dipoles.Clone()
	units.Dipoles(ts, l)
	return &DipoleReport{
		RunID:      runID,
		DipoleUnit: "e " + l.String(),
		Converged:  res.State.Converged,
		Direct:     vecRows(ts[mbpol.Direct]),
		Polar:      vecRows(ts[mbpol.Polar]),
	}
}

func vecRows(vs []geom.Vec) [][3]float64 {
	out := make([][3]float64, len(vs))
	for i := range vs { out[i] = vs[i] }
	return out
}

// WriteDipoles writes r to w in format f.
func WriteDipoles(w io.Writer, r *DipoleReport, f Format) error {
	if f == YAML { return writeYAML(w, r) }

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if r.RunID != "" { fmt.Fprintf(tw, "# run\t%s\n", r.RunID) }
	fmt.Fprintf(tw, "# converged\t%t\n", r.Converged)
	fmt.Fprintf(tw, "particle\tdirect x\tdirect y\tdirect z\tpolar x\tpolar y\tpolar z\t(%s)\n",
		r.DipoleUnit)
	for i := range r.Direct {
		d, p := r.Direct[i], r.Polar[i]
		fmt.Fprintf(tw, "%d\t%.8g\t%.8g\t%.8g\t%.8g\t%.8g\t%.8g\n",
			i, d[0], d[1], d[2], p[0], p[1], p[2])
	}
	return tw.Flush()
}

// KernelReport is the output of a single damping kernel evaluation.
type KernelReport struct {
	Damp      float64    `yaml:"damp"`
	JustScale bool       `yaml:"just_scale"`
	Values    [5]float64 `yaml:"values,flow"`
}

// WriteKernel writes r to w in format f.
func WriteKernel(w io.Writer, r *KernelReport, f Format) error {
	if f == YAML { return writeYAML(w, r) }

	names := [5]string{"R1", "R3", "R5", "R7", "R9"}
	if r.JustScale { names = [5]string{"s0", "s1", "s2", "s3", "s4"} }

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "damp\t%.10g\n", r.Damp)
	for i, x := range r.Values { fmt.Fprintf(tw, "%s\t%.10g\n", names[i], x) }
	return tw.Flush()
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil { return err }
	return enc.Close()
}
