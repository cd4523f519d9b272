package opt

import (
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
	window   int
	tol      float64
}

// NewMayfly creates a new Mayfly optimizer adapter. The search stops early
// once the best cost improves by less than tol over window consecutive
// evaluations; window <= 0 runs every iteration.
func NewMayfly(maxIters, popSize int, seed int64, window int, tol float64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
		window:   window,
		tol:      tol,
	}
}

// Minimize executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Minimize(eval func(float64) float64, lower, upper float64) (float64, float64, int) {
	conv := newConvergenceTracker(m.window, m.tol)

	evals := 0
	bestArg := math.NaN()
	bestCost := math.Inf(1)

	// The library has no early-stop hook. Once the tracker declares
	// convergence the wrapper stops running the objective and hands the
	// remaining iterations the tracked best.
	wrapped := func(x []float64) float64 {
		if conv.Done() {
			return bestCost
		}
		cost := eval(x[0])
		evals++
		if cost < bestCost {
			bestCost = cost
			bestArg = x[0]
		}
		conv.Observe(bestCost)
		return cost
	}

	// Create config for external Mayfly library
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = wrapped
	config.ProblemSize = 1
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = lower
	config.UpperBound = upper

	// Set random seed for reproducibility
	config.Rand = rand.New(rand.NewSource(m.seed))

	if _, err := mayfly.Optimize(config); err != nil {
		// Fall back to the interval midpoint if the library rejects the setup
		mid := (lower + upper) / 2
		return mid, eval(mid), evals + 1
	}

	if math.IsNaN(bestArg) {
		mid := (lower + upper) / 2
		return mid, eval(mid), evals + 1
	}

	return bestArg, bestCost, evals
}
