package imgio

import (
	"fmt"
	"image"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/cwbudde/imgdist/internal/colorspace"
	"github.com/cwbudde/imgdist/internal/imagef"
)

// StdioPath is the pseudo path that reads from standard input or writes to
// standard output.
const StdioPath = "-"

// ReadImage decodes the image at path into the planar float representation
// the comparison packages work on. The special path "-" reads from
// standard input.
//
// PNG, JPEG, GIF, BMP, TIFF and WebP are recognized. Gray sources keep the
// single-channel class with the gray sample replicated across planes;
// everything else is treated as color. Alpha is resolved here, by
// compositing onto black, so the comparison packages never see it.
func ReadImage(path string) (*imagef.Image, error) {
	img, err := decode(path)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// ReadImageFit decodes like ReadImage and resizes to width x height with
// Lanczos resampling when the source dimensions differ.
func ReadImageFit(path string, width, height int) (*imagef.Image, error) {
	img, err := decode(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	return FromImage(img), nil
}

func decode(path string) (image.Image, error) {
	var r io.Reader
	if path == StdioPath {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// FromImage converts a decoded standard-library image to planar float
// samples in nonlinear sRGB.
func FromImage(img image.Image) *imagef.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	gray := false
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		gray = true
	}

	im := imagef.New(width, height, colorspace.SRGB(gray))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if gray {
				im.SetGray(x, y, float32(r)/65535)
				continue
			}
			im.Set(x, y, float32(r)/65535, float32(g)/65535, float32(b)/65535)
		}
	}
	return im
}
