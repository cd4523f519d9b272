package opt

// Optimizer defines a bounded scalar minimization interface
type Optimizer interface {
	// Minimize executes the search
	// eval: objective function to minimize
	// lower, upper: interval bounds
	// Returns: best argument, best cost, and the number of objective
	// evaluations spent
	Minimize(eval func(float64) float64, lower, upper float64) (float64, float64, int)
}
