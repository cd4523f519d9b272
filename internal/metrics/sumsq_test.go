package metrics

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/cwbudde/imgdist/internal/colorspace"
	"github.com/cwbudde/imgdist/internal/imagef"
)

// ---------------------- Test Utilities ----------------------

// solidImage creates an image with each channel held at a constant value
func solidImage(width, height int, enc colorspace.Encoding, r, g, b float32) *imagef.Image {
	im := imagef.New(width, height, enc)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			im.Set(x, y, r, g, b)
		}
	}
	return im
}

// randomImage creates a color image with deterministic noise in [0, 1)
func randomImage(width, height int, enc colorspace.Encoding, seed int64) *imagef.Image {
	rng := rand.New(rand.NewSource(seed))
	im := imagef.New(width, height, enc)
	for y := 0; y < height; y++ {
		for c := 0; c < 3; c++ {
			row := im.PlaneRow(c, y)
			for x := range row {
				row[x] = rng.Float32()
			}
		}
	}
	return im
}

// ---------------------- Correctness Tests ----------------------

// TestComputeSumOfSquares_IdenticalImages verifies identical inputs sum to
// exactly zero on every channel
func TestComputeSumOfSquares_IdenticalImages(t *testing.T) {
	a := randomImage(31, 14, colorspace.SRGB(false), 42)

	sums, err := ComputeSumOfSquares(a, a, nil)
	if err != nil {
		t.Fatalf("ComputeSumOfSquares failed: %v", err)
	}
	for c, s := range sums {
		if s != 0 {
			t.Errorf("channel %d sum should be 0.0, got %g", c, s)
		}
	}
}

// TestComputeSumOfSquares_Symmetry verifies the sums are direction-free:
// each squared difference is identical under argument swap
func TestComputeSumOfSquares_Symmetry(t *testing.T) {
	a := randomImage(19, 11, colorspace.SRGB(false), 5)
	b := randomImage(19, 11, colorspace.SRGB(false), 6)

	ab, err := ComputeSumOfSquares(a, b, nil)
	if err != nil {
		t.Fatalf("ComputeSumOfSquares(a, b) failed: %v", err)
	}
	ba, err := ComputeSumOfSquares(b, a, nil)
	if err != nil {
		t.Fatalf("ComputeSumOfSquares(b, a) failed: %v", err)
	}
	for c := 0; c < 3; c++ {
		if ab[c] != ba[c] {
			t.Errorf("channel %d not symmetric: a,b=%g b,a=%g", c, ab[c], ba[c])
		}
	}
}

// TestComputeSumOfSquares_KnownDelta checks a green-only difference against
// the closed form
func TestComputeSumOfSquares_KnownDelta(t *testing.T) {
	// With a difference d only in the green channel, the rotated
	// differences per pixel are
	//   luma = 0.587*d,  u = -0.28886*d,  v = -0.51499*d
	// so each channel sum is pixels * (weight*d)^2.
	var g0, g1 float32 = 0.3, 0.4
	a := solidImage(8, 6, colorspace.SRGB(false), 0.2, g0, 0.7)
	b := solidImage(8, 6, colorspace.SRGB(false), 0.2, g1, 0.7)

	sums, err := ComputeSumOfSquares(a, b, nil)
	if err != nil {
		t.Fatalf("ComputeSumOfSquares failed: %v", err)
	}

	d := float64(g1) - float64(g0)
	n := 8.0 * 6.0
	want := [3]float64{
		n * (0.587 * d) * (0.587 * d),
		n * (0.28886 * d) * (0.28886 * d),
		n * (0.51499 * d) * (0.51499 * d),
	}
	for c := 0; c < 3; c++ {
		if !approxEqual(sums[c], want[c], 1e-12) {
			t.Errorf("channel %d mismatch: got %.15g, want %.15g", c, sums[c], want[c])
		}
	}
}

// TestComputeSumOfSquares_GrayDeltaIsPureLuma verifies that differences
// between gray images land on the luma channel only
func TestComputeSumOfSquares_GrayDeltaIsPureLuma(t *testing.T) {
	a := imagef.New(4, 4, colorspace.SRGB(true))
	b := imagef.New(4, 4, colorspace.SRGB(true))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			a.SetGray(x, y, 0.25)
			b.SetGray(x, y, 0.5)
		}
	}

	sums, err := ComputeSumOfSquares(a, b, nil)
	if err != nil {
		t.Fatalf("ComputeSumOfSquares failed: %v", err)
	}

	// d = 0.25 on all three planes: luma weights sum to 1, the chroma
	// rows of the basis sum to roughly zero.
	if sums[0] < 0.9 {
		t.Errorf("luma sum too small for a 0.25 gray delta: got %g", sums[0])
	}
	if sums[1]+sums[2] > 1e-6 {
		t.Errorf("chroma sums should vanish for gray inputs, got %g and %g", sums[1], sums[2])
	}
}

// TestComputeSumOfSquares_NormalizesEncoding verifies linear input is
// brought into nonlinear sRGB before differencing, without mutating the
// caller's image
func TestComputeSumOfSquares_NormalizesEncoding(t *testing.T) {
	const lin float32 = 0.21404114
	srgb := colorspace.LinearToSRGB(lin)

	a := solidImage(4, 4, colorspace.LinearSRGB(false), lin, lin, lin)
	b := solidImage(4, 4, colorspace.SRGB(false), srgb, srgb, srgb)

	sums, err := ComputeSumOfSquares(a, b, nil)
	if err != nil {
		t.Fatalf("ComputeSumOfSquares failed: %v", err)
	}
	for c, s := range sums {
		if s != 0 {
			t.Errorf("channel %d sum should be 0.0 after normalization, got %g", c, s)
		}
	}

	if a.Color() != colorspace.LinearSRGB(false) {
		t.Errorf("input encoding mutated: got %s", a.Color())
	}
	if r, _, _ := a.At(0, 0); r != lin {
		t.Errorf("input samples mutated: got %g, want %g", r, lin)
	}
}

// ---------------------- Failure Tests ----------------------

// TestComputeSumOfSquares_Mismatch verifies the shared precondition checks
func TestComputeSumOfSquares_Mismatch(t *testing.T) {
	color4 := solidImage(4, 4, colorspace.SRGB(false), 0.5, 0.5, 0.5)
	color5 := solidImage(5, 4, colorspace.SRGB(false), 0.5, 0.5, 0.5)
	gray4 := imagef.New(4, 4, colorspace.SRGB(true))

	if _, err := ComputeSumOfSquares(color4, color5, nil); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("size mismatch: got err %v, want ErrSizeMismatch", err)
	}
	if _, err := ComputeSumOfSquares(color4, gray4, nil); !errors.Is(err, ErrChannelMismatch) {
		t.Errorf("channel mismatch: got err %v, want ErrChannelMismatch", err)
	}
	if _, err := ComputeSumOfSquares(nil, color4, nil); err == nil {
		t.Error("nil image should be rejected")
	}
}

// TestComputeSumOfSquares_TransformerFailure verifies conversion errors
// propagate instead of being swallowed
func TestComputeSumOfSquares_TransformerFailure(t *testing.T) {
	boom := errors.New("color engine unavailable")
	failing := func(*imagef.Image, colorspace.Encoding, float32, *workerpool.Pool) error {
		return boom
	}

	a := solidImage(4, 4, colorspace.LinearSRGB(false), 0.2, 0.2, 0.2)
	b := solidImage(4, 4, colorspace.SRGB(false), 0.2, 0.2, 0.2)

	if _, err := ComputeSumOfSquares(a, b, failing); !errors.Is(err, boom) {
		t.Errorf("transformer failure: got err %v, want wrapped cause", err)
	}
}

// ---------------------- Backend Equivalence Tests ----------------------

// TestSumSquaresRowVariants_Agree verifies both row kernels produce the
// same sums within accumulation-order tolerance
func TestSumSquaresRowVariants_Agree(t *testing.T) {
	a := randomImage(33, 9, colorspace.SRGB(false), 11)
	b := randomImage(33, 9, colorspace.SRGB(false), 12)

	prev := ActiveSumSquaresBackend
	defer SetSumSquaresBackend(prev)

	SetSumSquaresBackend(KernelScalar)
	ref, err := ComputeSumOfSquares(a, b, nil)
	if err != nil {
		t.Fatalf("scalar sums failed: %v", err)
	}

	SetSumSquaresBackend(KernelUnrolled)
	got, err := ComputeSumOfSquares(a, b, nil)
	if err != nil {
		t.Fatalf("unrolled sums failed: %v", err)
	}

	for c := 0; c < 3; c++ {
		if !approxEqual(got[c], ref[c], 1e-12) {
			t.Errorf("channel %d mismatch: got %.15g, want %.15g", c, got[c], ref[c])
		}
	}
}
