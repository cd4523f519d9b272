package metrics

import (
	"errors"
	"fmt"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/cwbudde/imgdist/internal/colorspace"
	"github.com/cwbudde/imgdist/internal/imagef"
)

// Sentinel errors shared by the comparison entry points.
var (
	// ErrSizeMismatch reports images whose pixel dimensions differ.
	ErrSizeMismatch = errors.New("images must have the same size")

	// ErrChannelMismatch reports a gray image compared against a color one.
	ErrChannelMismatch = errors.New("grayscale vs RGB comparison not supported")
)

// validateComparable checks the preconditions shared by every two-image
// comparison: both present, equal geometry, equal channel class.
func validateComparable(a, b *imagef.Image, metric string) error {
	if a == nil || b == nil {
		return fmt.Errorf("nil image for %s", metric)
	}
	if !a.SameSize(b) {
		return fmt.Errorf("%w for %s", ErrSizeMismatch, metric)
	}
	if a.IsGray() != b.IsGray() {
		return ErrChannelMismatch
	}
	return nil
}

// Transformer normalizes an image in place to a target color encoding at a
// target display intensity. ComputeSumOfSquares uses it to bring both
// inputs into nonlinear sRGB before differencing; injecting a failing
// transformer lets tests drive the conversion error path.
type Transformer func(im *imagef.Image, target colorspace.Encoding, targetNits float32, pool *workerpool.Pool) error

// DefaultTransformer applies the built-in color conversion.
func DefaultTransformer(im *imagef.Image, target colorspace.Encoding, targetNits float32, pool *workerpool.Pool) error {
	return im.TransformTo(target, targetNits, pool)
}

// ComputeSumOfSquares accumulates, per opponent channel, the squared
// per-pixel differences between two images of equal geometry.
//
// Both images are first brought into nonlinear sRGB (gray inputs into the
// gray variant). Inputs already in that encoding are read in place; others
// are cloned before conversion, so callers never observe mutation.
// Per-pixel RGB differences are rotated into a luma/chroma basis before
// squaring: sums[0] carries luminance error, sums[1] and sums[2] the two
// chroma directions.
func ComputeSumOfSquares(a, b *imagef.Image, tx Transformer) ([3]float64, error) {
	var sums [3]float64
	if err := validateComparable(a, b, "sum of squares"); err != nil {
		return sums, err
	}
	if tx == nil {
		tx = DefaultTransformer
	}
	desired := colorspace.SRGB(a.IsGray())
	srgbA, err := inEncoding(a, desired, tx)
	if err != nil {
		return sums, fmt.Errorf("converting first image: %w", err)
	}
	srgbB, err := inEncoding(b, desired, tx)
	if err != nil {
		return sums, fmt.Errorf("converting second image: %w", err)
	}
	for y := 0; y < a.Height(); y++ {
		rowsA := [3][]float32{srgbA.PlaneRow(0, y), srgbA.PlaneRow(1, y), srgbA.PlaneRow(2, y)}
		rowsB := [3][]float32{srgbB.PlaneRow(0, y), srgbB.PlaneRow(1, y), srgbB.PlaneRow(2, y)}
		sumSquaresRow(rowsA, rowsB, &sums)
	}
	return sums, nil
}

// inEncoding returns im unchanged when it already carries the desired
// encoding, or a converted clone otherwise.
func inEncoding(im *imagef.Image, desired colorspace.Encoding, tx Transformer) (*imagef.Image, error) {
	if im.Color() == desired {
		return im, nil
	}
	converted := im.Clone()
	if err := tx(converted, desired, imagef.DefaultIntensityTarget, nil); err != nil {
		return nil, err
	}
	return converted, nil
}
