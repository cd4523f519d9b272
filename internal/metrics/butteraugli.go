package metrics

import (
	"fmt"
	"math"
	"os"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/cwbudde/imgdist/internal/colorspace"
	"github.com/cwbudde/imgdist/internal/diffmap"
	"github.com/cwbudde/imgdist/internal/imagef"
)

// comparatorFactory builds the distortion-map generator for the perceptual
// distance path. Swappable so tests and experiments can substitute
// generators without touching the entry points.
var comparatorFactory diffmap.Factory = diffmap.New

// SetComparatorFactory replaces the distortion-map generator and returns
// the previous factory so tests can restore it. A nil factory restores the
// built-in opponent-space generator.
func SetComparatorFactory(f diffmap.Factory) diffmap.Factory {
	prev := comparatorFactory
	if f == nil {
		f = diffmap.New
	}
	comparatorFactory = f
	return prev
}

// ScoreFromDiffmap reduces a distortion map to the reported perceptual
// distance: the maximum per-pixel distortion.
func ScoreFromDiffmap(m *imagef.Map) float32 {
	var score float32
	for y := 0; y < m.Height(); y++ {
		for _, v := range m.RowSlice(y) {
			if v > score {
				score = v
			}
		}
	}
	return score
}

// ButteraugliDistance computes the perceptual distance between a reference
// and a distorted image, returning the score together with the per-pixel
// distortion map it was reduced from.
//
// Both images are brought into linear sRGB at params.IntensityTarget nits
// before comparison; inputs already there are read in place, others are
// cloned and converted. The comparison is directional: the reference seeds
// the comparator and the distorted image is mapped against it, so swapping
// the arguments changes the score whenever params.HFAsymmetry is not 1.
//
// ignoreAlpha is accepted for decoder compatibility; alpha is resolved
// during decoding and no longer present here.
func ButteraugliDistance(ref, dist *imagef.Image, params diffmap.Params, pool *workerpool.Pool, ignoreAlpha bool) (float32, *imagef.Map, error) {
	_ = ignoreAlpha
	if err := validateComparable(ref, dist, "butteraugli"); err != nil {
		return 0, nil, err
	}
	nits := params.IntensityTarget
	if nits <= 0 {
		nits = diffmap.DefaultParams().IntensityTarget
	}
	desired := colorspace.LinearSRGB(ref.IsGray())
	linRef, err := inLinear(ref, desired, nits, pool)
	if err != nil {
		return 0, nil, fmt.Errorf("converting reference: %w", err)
	}
	linDist, err := inLinear(dist, desired, nits, pool)
	if err != nil {
		return 0, nil, fmt.Errorf("converting distorted image: %w", err)
	}

	cmp, err := comparatorFactory(linRef, params)
	if err != nil {
		return 0, nil, fmt.Errorf("creating comparator: %w", err)
	}
	dmap, err := cmp.Diffmap(linDist)
	if err != nil {
		return 0, nil, fmt.Errorf("computing distortion map: %w", err)
	}
	return ScoreFromDiffmap(dmap), dmap, nil
}

// inLinear returns im unchanged when it is already linear sRGB at the
// requested intensity, or a converted clone otherwise.
func inLinear(im *imagef.Image, desired colorspace.Encoding, nits float32, pool *workerpool.Pool) (*imagef.Image, error) {
	if im.Color() == desired && im.IntensityTarget() == nits {
		return im, nil
	}
	converted := im.Clone()
	if err := converted.TransformTo(desired, nits, pool); err != nil {
		return nil, err
	}
	return converted, nil
}

// ButteraugliDistanceOrMax is the forgiving form of ButteraugliDistance:
// failures are reported on stderr and scored math.MaxFloat32, which no
// real comparison can reach. Convenient in scoring loops that treat a
// broken comparison as maximally distorted.
func ButteraugliDistanceOrMax(ref, dist *imagef.Image, params diffmap.Params, pool *workerpool.Pool) float32 {
	score, _, err := ButteraugliDistance(ref, dist, params, pool, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "butteraugli distance failed: %v\n", err)
		return math.MaxFloat32
	}
	return score
}

// Butteraugli3Norm computes the perceptual distance with default parameters
// and reduces the distortion map with the 3-norm instead of the maximum.
// The 3-norm responds to the distortion mass of the whole image where the
// plain score only sees the worst pixel.
func Butteraugli3Norm(ref, dist *imagef.Image, pool *workerpool.Pool) (float64, error) {
	params := diffmap.DefaultParams()
	_, dmap, err := ButteraugliDistance(ref, dist, params, pool, false)
	if err != nil {
		return 0, err
	}
	return ComputeDistanceP(dmap, params, 3)
}
