/*package io reads run configurations and particle files and writes the
results of an evaluation.
*/
package io

import (
	"fmt"
	"os"
	"strings"

	"github.com/phil-mansfield/table"
	"gopkg.in/yaml.v3"

	mbpol "github.com/mqaisran/mbpol-openmm-plugin"
	"github.com/mqaisran/mbpol-openmm-plugin/geom"
	"github.com/mqaisran/mbpol-openmm-plugin/units"
)

// Format is the layout of a system or output file.
type Format int

const (
	Table Format = iota
	YAML
)

// ParseFormat accepts "table" or "yaml", ignoring case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "txt", "":
		return Table, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return Table, fmt.Errorf("Unrecognized format '%s'.", s)
}

func (f Format) String() string {
	switch f {
	case Table:
		return "table"
	case YAML:
		return "yaml"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Column indices of a table system file.
const (
	colX = iota
	colY
	colZ
	colCharge
	colDX
	colDY
	colDZ
	colQXX
	colQXY
	colQXZ
	colQYY
	colQYZ
	colQZZ
	colThole
	colDamping
	colPolarizability
	colGroup
	tableColumns
)

// ReadTable reads a column table system file. Values are in the file's
// units.
func ReadTable(file string) ([]mbpol.Particle, error) {
	colIdxs := make([]int, tableColumns)
	for i := range colIdxs { colIdxs[i] = i }

	cols, err := table.ReadTable(file, colIdxs, nil)
	if err != nil { return nil, err }

	ps := make([]mbpol.Particle, len(cols[colX]))
	for i := range ps {
		p := &ps[i]
		for k := 0; k < 3; k++ {
			p.Position[k] = cols[colX+k][i]
			p.Dipole[k] = cols[colDX+k][i]
		}
		for k := range p.Quadrupole { p.Quadrupole[k] = cols[colQXX+k][i] }
		p.Charge = cols[colCharge][i]
		p.Thole = cols[colThole][i]
		p.DampingFactor = cols[colDamping][i]
		p.Polarizability = cols[colPolarizability][i]

		g := cols[colGroup][i]
		if g != float64(int(g)) {
			return nil, fmt.Errorf(
				"Group of particle %d in %s is %g, not an integer.", i, file, g,
			)
		}
		p.Group = int(g)
	}
	return ps, nil
}

type yamlScale struct {
	Multipole float64 `yaml:"multipole"`
	Direct    float64 `yaml:"direct"`
	Polar     float64 `yaml:"polar"`
	Mutual    float64 `yaml:"mutual"`
}

type yamlParticle struct {
	Position       [3]float64 `yaml:"position"`
	Charge         float64    `yaml:"charge"`
	Dipole         [3]float64 `yaml:"dipole,omitempty"`
	Quadrupole     [6]float64 `yaml:"quadrupole,omitempty"`
	Thole          float64    `yaml:"thole"`
	Damping        float64    `yaml:"damping"`
	Polarizability float64    `yaml:"polarizability"`
	Group          *int       `yaml:"group,omitempty"`
}

type yamlPair struct {
	Pair  [2]int    `yaml:"pair"`
	Scale yamlScale `yaml:"scale"`
}

// yamlSystem is the document layout of a YAML system file.
type yamlSystem struct {
	Particles  []yamlParticle `yaml:"particles"`
	Exclusions []yamlPair     `yaml:"exclusions,omitempty"`
}

// ReadYAML reads a YAML system file. A particle without a group is in
// mbpol.NoGroup. Values are in the file's units.
func ReadYAML(file string) ([]mbpol.Particle, []PairScale, error) {
	b, err := os.ReadFile(file)
	if err != nil { return nil, nil, err }
	return ParseYAML(b)
}

// ParseYAML is ReadYAML for a document held in memory.
func ParseYAML(b []byte) ([]mbpol.Particle, []PairScale, error) {
	doc := &yamlSystem{}
	if err := yaml.Unmarshal(b, doc); err != nil { return nil, nil, err }

	ps := make([]mbpol.Particle, len(doc.Particles))
	for i, yp := range doc.Particles {
		ps[i] = mbpol.Particle{
			Position:       geom.Vec(yp.Position),
			Charge:         yp.Charge,
			Dipole:         geom.Vec(yp.Dipole),
			Quadrupole:     geom.Quadrupole(yp.Quadrupole),
			Thole:          yp.Thole,
			DampingFactor:  yp.Damping,
			Polarizability: yp.Polarizability,
			Group:          mbpol.NoGroup,
		}
		if yp.Group != nil { ps[i].Group = *yp.Group }
	}

	pairs := make([]PairScale, len(doc.Exclusions))
	for i, yp := range doc.Exclusions {
		s := yp.Scale
		pairs[i] = PairScale{
			I: yp.Pair[0], J: yp.Pair[1],
			Scale: mbpol.Scale{
				Multipole: s.Multipole, Direct: s.Direct,
				Polar: s.Polar, Mutual: s.Mutual,
			},
		}
		if pairs[i].I == pairs[i].J {
			return nil, nil, fmt.Errorf("Exclusion %d pairs particle %d with itself.", i, pairs[i].I)
		}
	}
	return ps, pairs, nil
}

// LoadSystem reads the system described by wrap, converts it to internal
// units, and applies the configured exclusions. Pairs listed in a YAML
// system file are applied before the [Exclusions] Pair lines, so the run
// file wins.
func LoadSystem(wrap *ConfigWrapper) (*mbpol.System, error) {
	con := &wrap.System
	length, err := units.ParseLength(con.LengthUnit)
	if err != nil { return nil, err }

	var ps []mbpol.Particle
	ex := mbpol.NewExclusions()
	switch con.SystemFormat() {
	case YAML:
		var pairs []PairScale
		ps, pairs, err = ReadYAML(con.File)
		if err != nil { return nil, err }
		for _, p := range pairs {
			if p.I < 0 || p.J < 0 || p.I >= len(ps) || p.J >= len(ps) {
				return nil, fmt.Errorf(
					"Exclusion (%d, %d) in %s is outside a %d-particle system.",
					p.I, p.J, con.File, len(ps),
				)
			}
			ex.Set(p.I, p.J, p.Scale)
		}
	default:
		ps, err = ReadTable(con.File)
		if err != nil { return nil, err }
	}

	ex, err = wrap.Exclusions.Apply(ex)
	if err != nil { return nil, err }

	units.ToInternal(ps, length)
	return mbpol.NewSystem(ps, ex)
}
