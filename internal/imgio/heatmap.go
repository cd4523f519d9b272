package imgio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/disintegration/imaging"

	"github.com/cwbudde/imgdist/internal/imagef"
)

// HeatmapImage renders a distortion map as an 8-bit image on a cool-to-hot
// ramp: black through blue for low distortion, then yellow to red as
// values approach maxValue. A non-positive maxValue scales against the
// map's own maximum.
func HeatmapImage(m *imagef.Map, maxValue float32) *image.NRGBA {
	if maxValue <= 0 {
		for y := 0; y < m.Height(); y++ {
			for _, v := range m.RowSlice(y) {
				if v > maxValue {
					maxValue = v
				}
			}
		}
		if maxValue <= 0 {
			maxValue = 1
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, m.Width(), m.Height()))
	for y := 0; y < m.Height(); y++ {
		for x, v := range m.RowSlice(y) {
			out.SetNRGBA(x, y, rampColor(v/maxValue))
		}
	}
	return out
}

// rampColor maps t in [0, 1] onto the heat ramp, clamping out-of-range
// values.
func rampColor(t float32) color.NRGBA {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	switch {
	case t < 1.0/3:
		s := t * 3
		return color.NRGBA{B: uint8(s*255 + 0.5), A: 255}
	case t < 2.0/3:
		s := (t - 1.0/3) * 3
		return color.NRGBA{
			R: uint8(s*255 + 0.5),
			G: uint8(s*255 + 0.5),
			B: uint8((1-s)*255 + 0.5),
			A: 255,
		}
	default:
		s := (t - 2.0/3) * 3
		return color.NRGBA{R: 255, G: uint8((1 - s) * 255), A: 255}
	}
}

// WriteHeatmap renders m and writes it to path, choosing the format from
// the file extension. The special path "-" writes PNG to standard output.
func WriteHeatmap(path string, m *imagef.Map, maxValue float32) error {
	img := HeatmapImage(m, maxValue)
	if path == StdioPath {
		if err := png.Encode(os.Stdout, img); err != nil {
			return fmt.Errorf("encode heatmap: %w", err)
		}
		return nil
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
