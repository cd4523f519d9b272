package opt

// convergenceTracker watches a best-so-far cost series and reports when it
// has stopped improving. A window of w requires w consecutive observations
// without an improvement larger than tol. w <= 0 disables the tracker.
type convergenceTracker struct {
	window int
	tol    float64

	best   float64
	primed bool
	stale  int
	done   bool
}

func newConvergenceTracker(window int, tol float64) *convergenceTracker {
	return &convergenceTracker{window: window, tol: tol}
}

// Observe feeds the current best cost into the tracker.
func (c *convergenceTracker) Observe(best float64) {
	if c.window <= 0 || c.done {
		return
	}
	if !c.primed {
		c.best = best
		c.primed = true
		return
	}
	if c.best-best > c.tol {
		c.best = best
		c.stale = 0
		return
	}
	c.stale++
	if c.stale >= c.window {
		c.done = true
	}
}

// Done reports whether the series has converged.
func (c *convergenceTracker) Done() bool {
	return c.done
}
