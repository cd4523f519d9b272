// Package imagef carries planar float32 images through the metrics engine.
//
// Pixel storage builds on the highway contrib image types: a distortion Map
// is a single plane, a color Image is three planes plus color metadata.
// Gray images keep their sample replicated across all three planes so the
// per-pixel loops never branch on channel count; the gray/color class lives
// in the color encoding.
package imagef

import (
	himage "github.com/ajroetker/go-highway/hwy/contrib/image"

	"github.com/cwbudde/imgdist/internal/colorspace"
)

// Map is a single-channel distortion map.
type Map = himage.Image[float32]

// NewMap allocates a zeroed w by h map.
func NewMap(w, h int) *Map {
	return himage.NewImage[float32](w, h)
}

// DefaultIntensityTarget is the assumed display peak in nits for images
// that do not declare one.
const DefaultIntensityTarget = 255.0

// Image is a three-plane float32 image with its color encoding and the
// display intensity its samples are mastered for.
type Image struct {
	pix       *himage.Image3[float32]
	color     colorspace.Encoding
	intensity float32 // nits
}

// New allocates a zeroed w by h image in the given encoding.
func New(w, h int, enc colorspace.Encoding) *Image {
	return &Image{
		pix:       himage.NewImage3[float32](w, h),
		color:     enc,
		intensity: DefaultIntensityTarget,
	}
}

// Width returns the image width in pixels.
func (im *Image) Width() int {
	return im.pix.Width()
}

// Height returns the image height in pixels.
func (im *Image) Height() int {
	return im.pix.Height()
}

// Color returns the current color encoding.
func (im *Image) Color() colorspace.Encoding {
	return im.color
}

// IsGray reports whether the image is single-channel by encoding.
func (im *Image) IsGray() bool {
	return im.color.IsGray()
}

// IntensityTarget returns the display peak the samples are mastered for.
func (im *Image) IntensityTarget() float32 {
	return im.intensity
}

// SetIntensityTarget overrides the display peak in nits.
func (im *Image) SetIntensityTarget(nits float32) {
	if nits > 0 {
		im.intensity = nits
	}
}

// Plane returns channel c as a single-plane image.
func (im *Image) Plane(c int) *himage.Image[float32] {
	return im.pix.Plane(c)
}

// PlaneRow returns row y of channel c, excluding any stride padding.
func (im *Image) PlaneRow(c, y int) []float32 {
	return im.pix.Plane(c).RowSlice(y)
}

// At returns the three channel values at (x, y).
func (im *Image) At(x, y int) (r, g, b float32) {
	return im.pix.Plane(0).At(x, y), im.pix.Plane(1).At(x, y), im.pix.Plane(2).At(x, y)
}

// Set writes the three channel values at (x, y).
func (im *Image) Set(x, y int, r, g, b float32) {
	im.pix.Plane(0).Set(x, y, r)
	im.pix.Plane(1).Set(x, y, g)
	im.pix.Plane(2).Set(x, y, b)
}

// SetGray writes one sample replicated across all three planes.
func (im *Image) SetGray(x, y int, v float32) {
	im.Set(x, y, v, v, v)
}

// SameSize reports whether both images have identical dimensions.
func (im *Image) SameSize(o *Image) bool {
	return im.Width() == o.Width() && im.Height() == o.Height()
}

// Clone returns a deep copy, metadata included.
func (im *Image) Clone() *Image {
	out := New(im.Width(), im.Height(), im.color)
	out.intensity = im.intensity
	for c := 0; c < 3; c++ {
		for y := 0; y < im.Height(); y++ {
			copy(out.PlaneRow(c, y), im.PlaneRow(c, y))
		}
	}
	return out
}
