/*package plot draws diagnostic plots of SCF runs with matplotlib, through
github.com/phil-mansfield/pyplot. Plots are queued by the functions in this
package and only drawn when Execute is called, which requires python and
matplotlib.
*/
package plot

import (
	"fmt"
	"math"

	plt "github.com/phil-mansfield/pyplot"
	"gonum.org/v1/gonum/floats"
)

// ConvergenceSeries returns the points of a residual history: iteration
// numbers starting at 1 and the residuals, with non-positive residuals
// dropped because they cannot be drawn on a log axis.
func ConvergenceSeries(history []float64) (iters, residuals []float64) {
	for i, r := range history {
		if !(r > 0) || math.IsInf(r, 0) { continue }
		iters = append(iters, float64(i+1))
		residuals = append(residuals, r)
	}
	return iters, residuals
}

// YLimits returns log-axis limits covering every residual and epsilon, one
// decade wider on each side.
func YLimits(residuals []float64, epsilon float64) (lo, hi float64) {
	lo, hi = epsilon, epsilon
	if len(residuals) > 0 {
		lo = math.Min(lo, floats.Min(residuals))
		hi = math.Max(hi, floats.Max(residuals))
	}
	return math.Pow(10, math.Floor(math.Log10(lo))-1),
		math.Pow(10, math.Ceil(math.Log10(hi))+1)
}

// Convergence queues a plot of history against the convergence threshold
// epsilon, saved to fname. It returns an error if there is nothing to draw.
func Convergence(fname, title string, history []float64, epsilon float64) error {
	iters, residuals := ConvergenceSeries(history)
	if len(iters) == 0 {
		return fmt.Errorf("No positive residuals to plot in %s.", fname)
	}
	lo, hi := YLimits(residuals, epsilon)

	plt.Figure()
	plt.Plot(iters, residuals, "o-", plt.LW(2), plt.C("b"))
	plt.Plot([]float64{0, iters[len(iters)-1] + 1}, []float64{epsilon, epsilon},
		"--", plt.C("k"))
	plt.Title(title)
	plt.XLabel("Iteration", plt.FontSize(16))
	plt.YLabel(`RMS $\Delta\mu$ [$e\,{\rm nm}$]`, plt.FontSize(16))
	plt.YScale("log")
	plt.YLim(lo, hi)
	plt.XLim(0, iters[len(iters)-1]+1)
	plt.Grid(plt.Axis("y"), plt.Which("both"))
	plt.SaveFig(fname)
	return nil
}

// Execute draws every queued plot.
func Execute() { plt.Execute() }

// Reset discards every queued plot.
func Reset() { plt.Reset() }
