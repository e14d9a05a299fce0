package mbpol

import (
	"fmt"
)

// Scale holds the multipliers applied to one pair of particles.
type Scale struct {
	// Multipole scales the permanent-permanent pair energy.
	Multipole float64
	// Direct scales the permanent field feeding the Direct track.
	Direct float64
	// Polar scales the permanent field feeding the Polar track.
	Polar float64
	// Mutual scales the field between induced dipoles.
	Mutual float64
}

var (
	// Unscaled is the Scale of an ordinary pair.
	Unscaled = Scale{1, 1, 1, 1}
	// Excluded is the Scale of a pair which does not interact at all.
	Excluded = Scale{}
	// DefaultGroupScale removes intra-group pairs from the Polar track only.
	DefaultGroupScale = Scale{Multipole: 1, Direct: 1, Polar: 0, Mutual: 1}
)

// IsZero returns true if the pair does not interact through any channel.
func (s Scale) IsZero() bool { return s == Excluded }

// Field returns the scale applied to the permanent field of track t.
func (s Scale) Field(t Track) float64 {
	if t == Direct { return s.Direct }
	return s.Polar
}

type pairKey struct{ i, j int }

func newPairKey(i, j int) pairKey {
	if i > j { i, j = j, i }
	return pairKey{i, j}
}

// Exclusions decides the Scale of every pair in a system. Pairs listed
// explicitly take precedence; otherwise two particles sharing a polarization
// group get the group scale and all other pairs are Unscaled.
type Exclusions struct {
	pairs      map[pairKey]Scale
	groupScale Scale
}

// NewExclusions returns an empty pair table which applies DefaultGroupScale
// inside polarization groups.
func NewExclusions() *Exclusions {
	return &Exclusions{
		pairs:      make(map[pairKey]Scale),
		groupScale: DefaultGroupScale,
	}
}

// SetGroupScale changes the scale applied to pairs in the same polarization
// group and returns ex.
func (ex *Exclusions) SetGroupScale(s Scale) *Exclusions {
	ex.groupScale = s
	return ex
}

// GroupScale returns the scale applied to pairs in the same polarization
// group.
func (ex *Exclusions) GroupScale() Scale { return ex.groupScale }

// Set assigns an explicit scale to the unordered pair (i, j).
func (ex *Exclusions) Set(i, j int, s Scale) {
	if i == j { panic(fmt.Sprintf("mbpol: self pair (%d, %d) excluded.", i, j)) }
	ex.pairs[newPairKey(i, j)] = s
}

// Len returns the number of explicitly scaled pairs.
func (ex *Exclusions) Len() int { return len(ex.pairs) }

// Scale returns the scale of the pair (i, j) in ps.
func (ex *Exclusions) Scale(ps []Particle, i, j int) Scale {
	if len(ex.pairs) > 0 {
		if s, ok := ex.pairs[newPairKey(i, j)]; ok { return s }
	}
	gi := ps[i].Group
	if gi != NoGroup && gi == ps[j].Group { return ex.groupScale }
	return Unscaled
}

func (ex *Exclusions) check(n int) error {
	for k, s := range ex.pairs {
		if k.i < 0 || k.j >= n {
			return fmt.Errorf(
				"%w: excluded pair (%d, %d) is outside a %d-particle system",
				ErrInvalidParticle, k.i, k.j, n,
			)
		}
		for _, x := range []float64{s.Multipole, s.Direct, s.Polar, s.Mutual} {
			if !isFinite(x) {
				return fmt.Errorf(
					"%w: pair (%d, %d) has a non-finite scale",
					ErrInvalidParticle, k.i, k.j,
				)
			}
		}
	}
	return nil
}
