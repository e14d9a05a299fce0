package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mbpol "github.com/mqaisran/mbpol-openmm-plugin"
	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

// waterTable is one water molecule and a bare probe charge, in Angstroms.
const waterTable = `-1.516074336 -0.2023167650 1.454672917 -0.51966 0 0 0 0 0 0 0 0 0 0.4 1.310 1.310 0
-0.6218989773 -0.6009430735 1.572437625 0.25983 0 0 0 0 0 0 0 0 0 0.4 0.294 0.294 0
-2.017613812 -0.4190350349 2.239642849 0.25983 0 0 0 0 0 0 0 0 0 0.4 0.294 0.294 0
1.0 2.0 3.0 1.0 0.1 0 0 0.2 0 0 -0.1 0 -0.1 0 0 0 -1
`

const waterYAML = `particles:
  - position: [-1.516074336, -0.2023167650, 1.454672917]
    charge: -0.51966
    thole: 0.4
    damping: 1.310
    polarizability: 1.310
    group: 0
  - position: [-0.6218989773, -0.6009430735, 1.572437625]
    charge: 0.25983
    thole: 0.4
    damping: 0.294
    polarizability: 0.294
    group: 0
  - position: [-2.017613812, -0.4190350349, 2.239642849]
    charge: 0.25983
    thole: 0.4
    damping: 0.294
    polarizability: 0.294
    group: 0
  - position: [1.0, 2.0, 3.0]
    charge: 1.0
    dipole: [0.1, 0, 0]
    quadrupole: [0.2, 0, 0, -0.1, 0, -0.1]
exclusions:
  - pair: [0, 3]
    scale: {multipole: 1, direct: 0.5, polar: 0.5, mutual: 1}
`

func writeTemp(t *testing.T, name, text string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(file, []byte(text), 0644))
	return file
}

func TestReadTableAndYAMLAgree(t *testing.T) {
	fromTable, err := ReadTable(writeTemp(t, "water.txt", waterTable))
	require.NoError(t, err)
	fromYAML, pairs, err := ReadYAML(writeTemp(t, "water.yaml", waterYAML))
	require.NoError(t, err)

	require.Len(t, fromTable, 4)
	if diff := cmp.Diff(fromTable, fromYAML, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("table and YAML systems differ (-table +yaml):\n%s", diff)
	}
	assert.Equal(t, mbpol.NoGroup, fromYAML[3].Group)
	assert.Equal(t, geom.Quadrupole{0.2, 0, 0, -0.1, 0, -0.1}, fromTable[3].Quadrupole)
	assert.Equal(t, []PairScale{
		{0, 3, mbpol.Scale{Multipole: 1, Direct: 0.5, Polar: 0.5, Mutual: 1}},
	}, pairs)
}

func TestParseYAMLErrors(t *testing.T) {
	_, _, err := ParseYAML([]byte("particles: [1, 2"))
	assert.Error(t, err)

	_, _, err = ParseYAML([]byte("particles: []\nexclusions:\n  - pair: [2, 2]\n"))
	assert.Error(t, err)
}

func TestLoadSystem(t *testing.T) {
	for _, tc := range []struct{ name, text string }{
		{"water.txt", waterTable}, {"water.yaml", waterYAML},
	} {
		t.Run(tc.name, func(t *testing.T) {
			wrap := DefaultConfigWrapper()
			wrap.System.File = writeTemp(t, tc.name, tc.text)
			wrap.System.LengthUnit = "angstrom"
			wrap.Exclusions.Pair = []string{"1 2 0 0 0 1"}
			require.NoError(t, wrap.Validate())

			sys, err := LoadSystem(wrap)
			require.NoError(t, err)
			require.Equal(t, 4, sys.Len())

			o := sys.Particles[0]
			assert.InDelta(t, -0.1516074336, o.Position[0], 1e-12)
			assert.InDelta(t, 0.00131, o.Polarizability, 1e-15)
			assert.InDelta(t, 0.01, sys.Particles[3].Dipole[0], 1e-15)
			assert.InDelta(t, 0.002, sys.Particles[3].Quadrupole[geom.XX], 1e-15)

			ps := sys.Particles
			assert.Equal(t, mbpol.Scale{Mutual: 1}, sys.Exclusions.Scale(ps, 2, 1))
			assert.Equal(t, mbpol.DefaultGroupScale, sys.Exclusions.Scale(ps, 0, 1))
		})
	}
}

func TestLoadSystemErrors(t *testing.T) {
	wrap := DefaultConfigWrapper()
	wrap.System.File = writeTemp(t, "water.txt", waterTable)
	wrap.Exclusions.Pair = []string{"1 9 0 0 0 0"}
	_, err := LoadSystem(wrap)
	assert.ErrorIs(t, err, mbpol.ErrInvalidParticle)

	wrap = DefaultConfigWrapper()
	wrap.System.File = writeTemp(t, "bad.yaml",
		"particles:\n  - position: [0, 0, 0]\nexclusions:\n  - pair: [0, 5]\n")
	_, err = LoadSystem(wrap)
	assert.Error(t, err)

	wrap = DefaultConfigWrapper()
	wrap.System.File = filepath.Join(t.TempDir(), "missing.txt")
	_, err = LoadSystem(wrap)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, YAML, f)
	assert.Equal(t, "table", Table.String())
	_, err = ParseFormat("csv")
	assert.Error(t, err)
}
