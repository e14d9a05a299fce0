package mbpol

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mqaisran/mbpol-openmm-plugin/damping"
	"github.com/mqaisran/mbpol-openmm-plugin/geom"
)

// Every pairwise pass in this package is a set of independent row
// reductions: the value at particle i is a sum over all j in increasing
// order. Rows are split into contiguous blocks, one per workspace, and a
// worker writes only to the rows it owns. Because each row is summed in the
// same order no matter how the rows are split, results are bit-identical for
// any worker count.

// maxCachedPairs bounds the memory used by a pairCache (about 48 bytes per
// ordered pair).
const maxCachedPairs = 1 << 22

type workspace struct {
	id     int
	lo, hi int
}

// pool splits the rows of an n-particle pass across a fixed set of workers.
type pool struct {
	workspaces []workspace
}

// newPool creates a pool for n rows. workers <= 0 selects runtime.NumCPU().
func newPool(n, workers int) *pool {
	if workers <= 0 { workers = runtime.NumCPU() }
	if workers > n { workers = n }
	if workers < 1 { workers = 1 }

	p := &pool{workspaces: make([]workspace, workers)}
	chunk, rem := n/workers, n%workers
	lo := 0
	for id := range p.workspaces {
		hi := lo + chunk
		if id < rem { hi++ }
		p.workspaces[id] = workspace{id: id, lo: lo, hi: hi}
		lo = hi
	}
	return p
}

// Workers returns the number of workspaces in the pool.
func (p *pool) Workers() int { return len(p.workspaces) }

// run calls fn once per workspace and waits for all of them to finish. The
// return of run is a full barrier: every row has been written.
func (p *pool) run(fn func(w *workspace) error) error {
	if len(p.workspaces) == 1 { return fn(&p.workspaces[0]) }

	var g errgroup.Group
	for id := range p.workspaces {
		w := &p.workspaces[id]
		g.Go(func() error { return fn(w) })
	}
	return g.Wait()
}

// pairTerm is the iteration-invariant part of the mutual field between a
// target particle and one source j: the separation and the damped R3 and R5
// factors, already multiplied by the pair's mutual scale.
type pairTerm struct {
	j      int
	d      geom.Vec
	r3, r5 float64
}

// pairCache holds pairTerms for every interacting ordered pair. rows[i] is
// sorted by j.
type pairCache struct {
	rows [][]pairTerm
}

func cacheable(n int) bool { return n*(n-1) <= maxCachedPairs }

func newPairCache(sys *System, p *pool) *pairCache {
	n := sys.Len()
	pc := &pairCache{rows: make([][]pairTerm, n)}

	p.run(func(w *workspace) error {
		for i := w.lo; i < w.hi; i++ {
			row := make([]pairTerm, 0, n-1)
			for j := 0; j < n; j++ {
				if j == i { continue }
				term, ok := mutualTerm(sys, i, j)
				if ok { row = append(row, term) }
			}
			pc.rows[i] = row
		}
		return nil
	})
	return pc
}

// mutualTerm computes the pairTerm of (i, j). ok is false if the pair has no
// mutual coupling.
func mutualTerm(sys *System, i, j int) (term pairTerm, ok bool) {
	ps := sys.Particles
	s := sys.Exclusions.Scale(ps, i, j).Mutual
	if s == 0 { return term, false }

	pi, pj := &ps[i], &ps[j]
	d := pj.Position.Sub(pi.Position)
	_, rr := damping.InverseDistances(
		pi.DampingFactor, pj.DampingFactor, pi.Thole, pj.Thole, d.Norm(), false,
	)
	return pairTerm{j: j, d: d, r3: s * rr.R3, r5: s * rr.R5}, true
}
