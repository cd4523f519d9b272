package metrics

import (
	"log/slog"

	"github.com/ajroetker/go-highway/hwy"
	"golang.org/x/sys/cpu"

	"github.com/cwbudde/imgdist/internal/imagef"
	"github.com/cwbudde/imgdist/internal/mem"
)

// Runtime dispatch for the reduction kernels.
//
// The two hot reductions (power-sum accumulation for ComputeDistanceP and
// per-row opponent-difference accumulation for ComputeSumOfSquares) have
// several functionally equivalent variants. The best one for the host CPU
// is bound once from init(), before any reduction can run, and the binding
// stays fixed for the process lifetime. Selection never fails: hosts
// without vector support fall back to a scalar baseline.
//
// Variant classes:
//   - vector:   highway lanes; float32 rows promoted to float64 accumulators
//   - unrolled: straight-line scalar with manual unrolling
//   - scalar:   plain reference implementation (validation baseline)
//
// The sum-of-squares kernel has no vector variant, so its dispatch only
// chooses between the two scalar classes.

// KernelBackend identifies the implementation class a kernel was bound to.
type KernelBackend int

const (
	KernelScalar   KernelBackend = iota // plain scalar reference
	KernelUnrolled                      // unrolled scalar
	KernelVector                        // highway vector lanes
)

func (b KernelBackend) String() string {
	switch b {
	case KernelScalar:
		return "scalar"
	case KernelUnrolled:
		return "unrolled"
	case KernelVector:
		return "vector"
	default:
		return "unknown"
	}
}

// ActiveNormBackend reports which power-sum variant was selected at
// initialization.
var ActiveNormBackend KernelBackend

// ActiveSumSquaresBackend reports which sum-of-squares variant was selected
// at initialization.
var ActiveSumSquaresBackend KernelBackend

// powerSums is the function pointer for the runtime-dispatched power-sum
// reduction. It computes the raw sums of d^3, d^6 and d^12 over an entire
// distortion map. Set by init() based on CPU feature detection.
var powerSums func(m *imagef.Map, alloc mem.Allocator) ([3]float64, error)

// sumSquaresRow is the function pointer for the runtime-dispatched
// sum-of-squares row kernel. Set by init().
var sumSquaresRow func(a, b [3][]float32, sums *[3]float64)

func init() {
	// Detect CPU features and select the best kernel variants.
	switch {
	case hwy.NoSimdEnv():
		setNormBackend(KernelScalar)
		setSumSquaresBackend(KernelScalar)
		slog.Debug("reduction kernels initialized", "norm", "scalar",
			"sumsquares", "scalar", "reason", "HWY_NO_SIMD")
	case cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD || hwy.CurrentLevel() > hwy.DispatchScalar:
		setNormBackend(KernelVector)
		setSumSquaresBackend(KernelUnrolled)
		slog.Debug("reduction kernels initialized", "norm", "vector",
			"sumsquares", "unrolled", "level", hwy.CurrentLevel().String(),
			"lanes", hwy.MaxLanes[float64]())
	default:
		setNormBackend(KernelUnrolled)
		setSumSquaresBackend(KernelUnrolled)
		slog.Debug("reduction kernels initialized", "norm", "unrolled",
			"sumsquares", "unrolled", "reason", "no vector support")
	}
}

// SetNormBackend forces a specific power-sum variant. Production code relies
// on the init() binding; this exists for equivalence tests and benchmarks.
func SetNormBackend(b KernelBackend) {
	setNormBackend(b)
}

func setNormBackend(b KernelBackend) {
	switch b {
	case KernelVector:
		powerSums = powerSumsVector
	case KernelUnrolled:
		powerSums = powerSumsUnrolled
	default:
		b = KernelScalar
		powerSums = powerSumsScalar
	}
	ActiveNormBackend = b
}

// SetSumSquaresBackend forces a specific sum-of-squares variant. Requesting
// the vector class binds the unrolled scalar variant, the widest one this
// kernel has.
func SetSumSquaresBackend(b KernelBackend) {
	setSumSquaresBackend(b)
}

func setSumSquaresBackend(b KernelBackend) {
	switch b {
	case KernelVector, KernelUnrolled:
		b = KernelUnrolled
		sumSquaresRow = sumSquaresRowUnrolled
	default:
		b = KernelScalar
		sumSquaresRow = sumSquaresRowScalar
	}
	ActiveSumSquaresBackend = b
}

// ---------------------- Testing and Validation Utilities ----------------------

// ComparePowerSumImplementations validates the active power-sum backend
// against the scalar reference.
//
// It recomputes the three raw power sums of m with both implementations and
// reports whether every sum agrees within the given relative tolerance.
// Accumulation order differs between variants, so bit-exact equality is not
// expected for non-trivial maps.
//
// Example usage in tests:
//
//	if !ComparePowerSumImplementations(m, 1e-9) {
//		t.Error("active backend differs from scalar reference")
//	}
func ComparePowerSumImplementations(m *imagef.Map, tolerance float64) bool {
	ref, err := powerSumsScalar(m, mem.System())
	if err != nil {
		return false
	}
	active, err := powerSums(m, mem.System())
	if err != nil {
		return false
	}
	for i := 0; i < 3; i++ {
		diff := ref[i] - active[i]
		if diff < 0 {
			diff = -diff
		}
		scale := ref[i]
		if scale < 1 {
			scale = 1
		}
		if diff/scale > tolerance {
			return false
		}
	}
	return true
}
