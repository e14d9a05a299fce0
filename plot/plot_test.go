package plot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvergenceSeries(t *testing.T) {
	iters, rs := ConvergenceSeries([]float64{1e-2, 1e-4, 0, math.Inf(1), 1e-8})
	assert.Equal(t, []float64{1, 2, 5}, iters)
	assert.Equal(t, []float64{1e-2, 1e-4, 1e-8}, rs)

	iters, rs = ConvergenceSeries(nil)
	assert.Empty(t, iters)
	assert.Empty(t, rs)
}

func TestYLimits(t *testing.T) {
	lo, hi := YLimits([]float64{3e-2, 4e-6}, 2e-7)
	assert.InEpsilon(t, 1e-8, lo, 1e-12)
	assert.InEpsilon(t, 1, hi, 1e-12)

	lo, hi = YLimits(nil, 2e-7)
	assert.InEpsilon(t, 1e-8, lo, 1e-12)
	assert.InEpsilon(t, 1e-5, hi, 1e-12)
}

func TestConvergence(t *testing.T) {
	Reset()
	defer Reset()

	assert.Error(t, Convergence("empty.png", "empty", []float64{0}, 1e-7))
	assert.NoError(t, Convergence("conv.png", "trimer", []float64{1e-2, 1e-5, 1e-8}, 1e-7))
}
