package imagef

import (
	"fmt"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/cwbudde/imgdist/internal/colorspace"
)

// ForEachRow runs fn for every row index in [0, rows). A nil pool runs on
// the calling goroutine; otherwise rows are partitioned across the pool.
func ForEachRow(pool *workerpool.Pool, rows int, fn func(y int)) {
	if pool == nil {
		for y := 0; y < rows; y++ {
			fn(y)
		}
		return
	}
	pool.ParallelFor(rows, func(start, end int) {
		for y := start; y < end; y++ {
			fn(y)
		}
	})
}

// TransformTo converts the image in place to the target encoding and
// intensity target. Samples pass through linear light: the source transfer
// curve is inverted, linear values are scaled by the ratio of source to
// destination intensity when the targets differ, and the destination curve
// is applied. Converting between the gray and color classes is not
// supported here; that belongs to decoding.
func (im *Image) TransformTo(target colorspace.Encoding, targetNits float32, pool *workerpool.Pool) error {
	if targetNits <= 0 {
		targetNits = DefaultIntensityTarget
	}
	if im.color.IsGray() != target.IsGray() {
		return fmt.Errorf("cannot transform %s image to %s", im.color, target)
	}
	if im.color == target && im.intensity == targetNits {
		return nil
	}

	linearize := im.color.Transfer == colorspace.TransferSRGB
	delinearize := target.Transfer == colorspace.TransferSRGB
	scale := float32(1)
	if im.intensity != targetNits {
		scale = im.intensity / targetNits
	}

	ForEachRow(pool, im.Height(), func(y int) {
		for c := 0; c < 3; c++ {
			row := im.PlaneRow(c, y)
			for x := range row {
				v := row[x]
				if linearize {
					v = colorspace.SRGBToLinear(v)
				}
				v *= scale
				if delinearize {
					v = colorspace.LinearToSRGB(v)
				}
				row[x] = v
			}
		}
	})

	im.color = target
	im.intensity = targetNits
	return nil
}
