// Package diffmap produces per-pixel distortion maps between a reference
// image and distorted candidates.
//
// The Comparator interface is the boundary the metric façade consumes: a
// comparator is built once per reference and can then score any number of
// distorted candidates of the same size. The built-in comparator implemented
// here is an opponent-space two-band error model. It is deliberately not a
// full perceptual metric; systems that need one bind their own Factory into
// the façade.
package diffmap

import (
	"fmt"

	"github.com/cwbudde/imgdist/internal/imagef"
)

// Params configures distortion-map generation. The reducers treat it as
// opaque and thread it through unmodified.
type Params struct {
	// HFAsymmetry penalizes introduced high-frequency artifacts more than
	// smoothed-away detail. Values below 1 amplify introduced detail by the
	// reciprocal.
	HFAsymmetry float32

	// XMul scales the weight of the red-green opponent channel.
	XMul float32

	// IntensityTarget is the viewing-condition display peak in nits.
	IntensityTarget float32
}

// DefaultParams returns the standard comparison parameters.
func DefaultParams() Params {
	return Params{
		HFAsymmetry:     0.8,
		XMul:            1.0,
		IntensityTarget: 80,
	}
}

// Comparator scores distorted candidates against one fixed reference.
type Comparator interface {
	// Diffmap returns the per-pixel distortion of distorted against the
	// reference. The caller owns the returned map.
	Diffmap(distorted *imagef.Image) (*imagef.Map, error)
}

// Factory builds a Comparator bound to a reference image. The reference is
// expected in linear sRGB.
type Factory func(ref *imagef.Image, params Params) (Comparator, error)

// Opponent channel weights: red-green differences dominate perception,
// blue-yellow the least.
var opponentWeights = [3]float32{1.4, 1.0, 0.4}

type opponentComparator struct {
	params Params
	width  int
	height int
	low    [3]*imagef.Map
	high   [3]*imagef.Map
}

// New builds the built-in comparator: the reference is split into opponent
// channels (r-g, r+g, b), each separated into a Gaussian low band and the
// residual high band.
func New(ref *imagef.Image, params Params) (Comparator, error) {
	if ref == nil {
		return nil, fmt.Errorf("diffmap: nil reference image")
	}
	if params.HFAsymmetry <= 0 {
		return nil, fmt.Errorf("diffmap: HF asymmetry must be positive, got %f", params.HFAsymmetry)
	}
	c := &opponentComparator{
		params: params,
		width:  ref.Width(),
		height: ref.Height(),
	}
	c.low, c.high = splitBands(ref)
	return c, nil
}

func (c *opponentComparator) Diffmap(distorted *imagef.Image) (*imagef.Map, error) {
	if distorted == nil {
		return nil, fmt.Errorf("diffmap: nil distorted image")
	}
	if distorted.Width() != c.width || distorted.Height() != c.height {
		return nil, fmt.Errorf("diffmap: distorted image is %dx%d, reference is %dx%d",
			distorted.Width(), distorted.Height(), c.width, c.height)
	}

	out := imagef.NewMap(c.width, c.height)
	if c.width == 0 || c.height == 0 {
		return out, nil
	}

	low, high := splitBands(distorted)
	amplify := 1 / c.params.HFAsymmetry
	for y := 0; y < c.height; y++ {
		dst := out.RowSlice(y)
		for x := 0; x < c.width; x++ {
			var sum float32
			for ch := 0; ch < 3; ch++ {
				dl := c.low[ch].At(x, y) - low[ch].At(x, y)
				rh := c.high[ch].At(x, y)
				dh := rh - high[ch].At(x, y)
				// Detail the distortion added is worse than detail it
				// removed.
				if abs32(high[ch].At(x, y)) > abs32(rh) {
					dh *= amplify
				} else {
					dh *= c.params.HFAsymmetry
				}
				w := opponentWeights[ch]
				if ch == 0 {
					w *= c.params.XMul
				}
				sum += w * (dl*dl + dh*dh)
			}
			dst[x] = sqrt32(sum)
		}
	}
	return out, nil
}

// splitBands converts an image to opponent channels and separates each into
// a blurred low band and the residual high band.
func splitBands(im *imagef.Image) (low, high [3]*imagef.Map) {
	w, h := im.Width(), im.Height()
	var opp [3]*imagef.Map
	for ch := 0; ch < 3; ch++ {
		opp[ch] = imagef.NewMap(w, h)
	}
	for y := 0; y < h; y++ {
		r0 := im.PlaneRow(0, y)
		r1 := im.PlaneRow(1, y)
		r2 := im.PlaneRow(2, y)
		o0 := opp[0].RowSlice(y)
		o1 := opp[1].RowSlice(y)
		o2 := opp[2].RowSlice(y)
		for x := 0; x < w; x++ {
			o0[x] = r0[x] - r1[x]
			o1[x] = r0[x] + r1[x]
			o2[x] = r2[x]
		}
	}
	for ch := 0; ch < 3; ch++ {
		low[ch] = blur5(opp[ch])
		high[ch] = imagef.NewMap(w, h)
		for y := 0; y < h; y++ {
			src := opp[ch].RowSlice(y)
			lo := low[ch].RowSlice(y)
			hi := high[ch].RowSlice(y)
			for x := 0; x < w; x++ {
				hi[x] = src[x] - lo[x]
			}
		}
	}
	return low, high
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
