package io

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	mbpol "github.com/mqaisran/mbpol-openmm-plugin"
	"github.com/mqaisran/mbpol-openmm-plugin/units"
)

const ExampleConfigFile = `[System]

#######################
# Required Parameters #
#######################

# File containing the particles. Files ending in .yaml or .yml are read as
# YAML, everything else as a whitespace separated column table with the
# columns
#     x y z q dx dy dz qxx qxy qxz qyy qyz qzz thole damping polarizability group
# Use group = -1 for particles outside any polarization group.
File = path/to/water.txt

#######################
# Optional Parameters #
#######################

# Overrides the format implied by the file extension. One of [ Table | YAML ].
# Format = Table

# Unit of every length in the system file. Dipoles, quadrupoles and
# polarizabilities are read in the matching powers of this unit. One of
# [ nm | angstrom ]. Default is nm.
# LengthUnit = angstrom

[Solver]

# All of these are optional.

# RMS change in the induced dipoles, in e nm, at which the iteration stops.
# Epsilon = 1e-7
# MaxIterations = 500

# Fraction of each update which is applied. Values below 1 can help systems
# which oscillate.
# Mixing = 1.0

# Number of worker goroutines. 0 means one per CPU.
# Workers = 0

# Store pair geometry between iterations. Turn this off for very large
# systems if memory is a problem.
# CachePairs = true

# Fail instead of reporting best-effort dipoles.
# RequireConverged = false

# Solve the dipoles by LU factorization instead of iterating. Only for small
# systems: the cost grows as the cube of the particle count.
# Exact = false

[Exclusions]

# Scales applied to pairs of particles in the same polarization group. The
# default keeps everything but removes intra-group pairs from the polar
# field.
# GroupMultipole = 1
# GroupDirect = 1
# GroupPolar = 0
# GroupMutual = 1

# Explicit pair scales, which win over the group rule. Each line is
#     i j multipole direct polar mutual
# with zero-based particle indices. May be repeated.
# Pair = 0 1 0 0 0 1

[Output]

# All of these are optional.

# Unit of reported energies. One of [ e2/nm | kJ/mol | kcal/mol ].
# EnergyUnit = kJ/mol

# One of [ Table | YAML ].
# Format = Table

# Also compute numerical forces with the given central difference step, in
# LengthUnit.
# Forces = false
# ForceStep = 1e-5

# Write a plot of the SCF residual history. Requires python and matplotlib.
# PlotFile = convergence.png

# Write solver metrics in the Prometheus text format.
# MetricsFile = mbpol.prom

# Output files which are useful for profiling and debugging.
# LogFile = log.out
# ProfileFile = prof.out`

type SystemConfig struct {
	// Required
	File string

	// Optional
	Format, LengthUnit string
}

type SolverConfig struct {
	Epsilon          float64
	MaxIterations    int
	Mixing           float64
	Workers          int
	CachePairs       bool
	RequireConverged bool
	Exact            bool
}

type ExclusionsConfig struct {
	GroupMultipole, GroupDirect, GroupPolar, GroupMutual float64
	Pair []string
}

type OutputConfig struct {
	EnergyUnit, Format string
	Forces             bool
	ForceStep          float64
	PlotFile, MetricsFile string
	LogFile, ProfileFile  string
}

// ConfigWrapper is the gcfg representation of a run file.
type ConfigWrapper struct {
	System     SystemConfig
	Solver     SolverConfig
	Exclusions ExclusionsConfig
	Output     OutputConfig
}

func DefaultConfigWrapper() *ConfigWrapper {
	s := mbpol.DefaultSolverConfig()
	g := mbpol.DefaultGroupScale
	return &ConfigWrapper{
		Solver: SolverConfig{
			Epsilon: s.Epsilon, MaxIterations: s.MaxIterations,
			Mixing: s.Mixing, Workers: s.Workers, CachePairs: s.CachePairs,
		},
		Exclusions: ExclusionsConfig{
			GroupMultipole: g.Multipole, GroupDirect: g.Direct,
			GroupPolar: g.Polar, GroupMutual: g.Mutual,
		},
		Output: OutputConfig{ForceStep: mbpol.DefaultForceStep},
	}
}

// ReadConfig reads a run file on top of DefaultConfigWrapper.
func ReadConfig(file string) (*ConfigWrapper, error) {
	wrap := DefaultConfigWrapper()
	if err := gcfg.ReadFileInto(wrap, file); err != nil { return nil, err }
	return wrap, nil
}

// ParseConfig is ReadConfig for a config held in memory.
func ParseConfig(text string) (*ConfigWrapper, error) {
	wrap := DefaultConfigWrapper()
	if err := gcfg.ReadStringInto(wrap, text); err != nil { return nil, err }
	return wrap, nil
}

func (con *SystemConfig) ValidFile() bool {
	return con.File != ""
}
func (con *SystemConfig) ValidFormat() bool {
	_, err := ParseFormat(con.Format)
	return con.Format == "" || err == nil
}
func (con *SystemConfig) ValidLengthUnit() bool {
	_, err := units.ParseLength(con.LengthUnit)
	return err == nil
}

// SystemFormat returns the format of the system file.
func (con *SystemConfig) SystemFormat() Format {
	if con.Format != "" {
		f, _ := ParseFormat(con.Format)
		return f
	}
	switch strings.ToLower(filepath.Ext(con.File)) {
	case ".yaml", ".yml":
		return YAML
	}
	return Table
}

func (con *OutputConfig) ValidEnergyUnit() bool {
	_, err := units.ParseEnergy(con.EnergyUnit)
	return err == nil
}
func (con *OutputConfig) ValidFormat() bool {
	_, err := ParseFormat(con.Format)
	return con.Format == "" || err == nil
}
func (con *OutputConfig) ValidForceStep() bool {
	return con.ForceStep > 0
}
func (con *OutputConfig) ValidPlotFile() bool {
	return con.PlotFile != ""
}
func (con *OutputConfig) ValidMetricsFile() bool {
	return con.MetricsFile != ""
}
func (con *OutputConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *OutputConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}

// Validate checks every section and returns the first problem found.
func (wrap *ConfigWrapper) Validate() error {
	switch {
	case !wrap.System.ValidFile():
		return fmt.Errorf("Need to specify a system File in [System].")
	case !wrap.System.ValidFormat():
		return fmt.Errorf("Unrecognized system Format '%s'.", wrap.System.Format)
	case !wrap.System.ValidLengthUnit():
		return fmt.Errorf("Unrecognized LengthUnit '%s'.", wrap.System.LengthUnit)
	case !wrap.Output.ValidEnergyUnit():
		return fmt.Errorf("Unrecognized EnergyUnit '%s'.", wrap.Output.EnergyUnit)
	case !wrap.Output.ValidFormat():
		return fmt.Errorf("Unrecognized output Format '%s'.", wrap.Output.Format)
	case wrap.Output.Forces && !wrap.Output.ValidForceStep():
		return fmt.Errorf("ForceStep must be positive, but is %g.", wrap.Output.ForceStep)
	}

	if err := wrap.SolverConfig().Validate(); err != nil { return err }
	_, err := wrap.Exclusions.Pairs()
	return err
}

// SolverConfig converts the [Solver] section.
func (wrap *ConfigWrapper) SolverConfig() mbpol.SolverConfig {
	s := wrap.Solver
	return mbpol.SolverConfig{
		Epsilon: s.Epsilon, MaxIterations: s.MaxIterations, Mixing: s.Mixing,
		Workers: s.Workers, CachePairs: s.CachePairs,
	}
}

// GroupScale returns the intra-group scale.
func (con *ExclusionsConfig) GroupScale() mbpol.Scale {
	return mbpol.Scale{
		Multipole: con.GroupMultipole, Direct: con.GroupDirect,
		Polar: con.GroupPolar, Mutual: con.GroupMutual,
	}
}

// PairScale is one explicitly scaled pair.
type PairScale struct {
	I, J  int
	Scale mbpol.Scale
}

// Pairs parses the Pair lines.
func (con *ExclusionsConfig) Pairs() ([]PairScale, error) {
	out := make([]PairScale, 0, len(con.Pair))
	for _, line := range con.Pair {
		ps, err := parsePair(line)
		if err != nil { return nil, err }
		out = append(out, ps)
	}
	return out, nil
}

func parsePair(line string) (PairScale, error) {
	tok := strings.Fields(line)
	if len(tok) != 6 {
		return PairScale{}, fmt.Errorf(
			"Pair '%s' must have 6 fields: i j multipole direct polar mutual.", line,
		)
	}

	var ps PairScale
	var err error
	if ps.I, err = strconv.Atoi(tok[0]); err != nil { return ps, err }
	if ps.J, err = strconv.Atoi(tok[1]); err != nil { return ps, err }
	if ps.I == ps.J || ps.I < 0 || ps.J < 0 {
		return ps, fmt.Errorf("Pair '%s' does not name two particles.", line)
	}

	xs := make([]float64, 4)
	for k := range xs {
		if xs[k], err = strconv.ParseFloat(tok[k+2], 64); err != nil {
			return ps, err
		}
	}
	ps.Scale = mbpol.Scale{Multipole: xs[0], Direct: xs[1], Polar: xs[2], Mutual: xs[3]}
	return ps, nil
}

// Apply adds the configured rules to ex and returns it. A nil ex is
// replaced by mbpol.NewExclusions.
func (con *ExclusionsConfig) Apply(ex *mbpol.Exclusions) (*mbpol.Exclusions, error) {
	if ex == nil { ex = mbpol.NewExclusions() }
	ex.SetGroupScale(con.GroupScale())

	pairs, err := con.Pairs()
	if err != nil { return nil, err }
	for _, p := range pairs { ex.Set(p.I, p.J, p.Scale) }
	return ex, nil
}
