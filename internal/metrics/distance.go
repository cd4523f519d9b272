package metrics

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/cwbudde/imgdist/internal/diffmap"
	"github.com/cwbudde/imgdist/internal/imagef"
	"github.com/cwbudde/imgdist/internal/mem"
)

// scratchAlloc provides the scratch memory for the vector power-sum kernel.
// Replaceable so tests can exercise allocation failure.
var scratchAlloc mem.Allocator = mem.System()

// SetAllocator replaces the scratch allocator used by the reduction kernels
// and returns the previous one so tests can restore it. A nil allocator
// restores the system default.
func SetAllocator(a mem.Allocator) mem.Allocator {
	prev := scratchAlloc
	if a == nil {
		a = mem.System()
	}
	scratchAlloc = a
	return prev
}

// slowNormWarned guards the one-time diagnostic for the generic norm path.
var slowNormWarned atomic.Bool

// ComputeDistanceP reduces a distortion map to a single score: the mean of
// three stacked p-norm terms,
//
//	v = ( ((1/N) * sum d^p)^(1/p)
//	    + ((1/N) * sum d^2p)^(1/(2p))
//	    + ((1/N) * sum d^4p)^(1/(4p)) ) / 3
//
// where N is the pixel count. Blending the doubled and quadrupled
// exponents rewards concentrated distortion more than the plain p-norm
// would.
//
// p == 3 (within 1e-6) takes the dispatched fast path, whose only
// allocation is the vector variant's lane scratch; failure of that
// allocation is returned as an error. Other exponents use a generic
// math.Pow loop and log a one-time warning, since that path is an order of
// magnitude slower. The comparison parameters do not affect the reduction;
// they are carried so callers can thread one parameter set through map
// generation and scoring.
//
// An empty map scores 0.
func ComputeDistanceP(distmap *imagef.Map, params diffmap.Params, p float64) (float64, error) {
	_ = params
	if distmap == nil || distmap.Width() == 0 || distmap.Height() == 0 {
		return 0, nil
	}
	if p <= 0 {
		return 0, fmt.Errorf("norm exponent must be positive, got %g", p)
	}
	onePerPixels := 1.0 / float64(distmap.Width()*distmap.Height())

	if math.Abs(p-3.0) < 1e-6 {
		sums, err := powerSums(distmap, scratchAlloc)
		if err != nil {
			return 0, fmt.Errorf("allocating reduction scratch: %w", err)
		}
		v := math.Pow(onePerPixels*sums[0], 1.0/(p*1.0)) +
			math.Pow(onePerPixels*sums[1], 1.0/(p*2.0)) +
			math.Pow(onePerPixels*sums[2], 1.0/(p*4.0))
		return v / 3.0, nil
	}

	if slowNormWarned.CompareAndSwap(false, true) {
		slog.Warn("using slow ComputeDistanceP", "p", p)
	}
	var sums [3]float64
	for y := 0; y < distmap.Height(); y++ {
		for _, val := range distmap.RowSlice(y) {
			d2 := math.Pow(float64(val), p)
			sums[0] += d2
			d2 *= d2
			sums[1] += d2
			d2 *= d2
			sums[2] += d2
		}
	}
	v := 0.0
	for i := 0; i < 3; i++ {
		v += math.Pow(onePerPixels*sums[i], 1.0/(p*float64(uint(1)<<i)))
	}
	return v / 3.0, nil
}
