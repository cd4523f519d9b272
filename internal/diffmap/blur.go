package diffmap

import (
	"math"

	himage "github.com/ajroetker/go-highway/hwy/contrib/image"

	"github.com/cwbudde/imgdist/internal/imagef"
)

// Binomial 5-tap kernel, a close Gaussian approximation at sigma ~1.
var blurKernel = [5]float32{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// blur5 returns a low-pass copy of src using a separable 5-tap binomial
// filter with mirrored borders.
func blur5(src *imagef.Map) *imagef.Map {
	w, h := src.Width(), src.Height()
	tmp := imagef.NewMap(w, h)
	out := imagef.NewMap(w, h)
	if w == 0 || h == 0 {
		return out
	}

	// Horizontal pass.
	for y := 0; y < h; y++ {
		in := src.RowSlice(y)
		dst := tmp.RowSlice(y)
		for x := 0; x < w; x++ {
			var acc float32
			for k := -2; k <= 2; k++ {
				acc += blurKernel[k+2] * in[himage.Mirror(x+k, w)]
			}
			dst[x] = acc
		}
	}

	// Vertical pass.
	for y := 0; y < h; y++ {
		dst := out.RowSlice(y)
		for x := 0; x < w; x++ {
			var acc float32
			for k := -2; k <= 2; k++ {
				acc += blurKernel[k+2] * tmp.At(x, himage.Mirror(y+k, h))
			}
			dst[x] = acc
		}
	}
	return out
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
