// Package colorspace describes the color encodings the metrics engine can
// normalize between and provides the scalar sRGB transfer curves.
//
// Encodings are named by compact description strings in the form
// "RGB_D65_SRG_Rel_SRG" (color) or "Gra_D65_Rel_Lin" (gray, primaries
// omitted): color space, white point, primaries, rendering intent,
// transfer function.
package colorspace

import (
	"fmt"
	"math"
	"strings"
)

// Space identifies the channel interpretation of an image
type Space int

const (
	SpaceRGB Space = iota
	SpaceGray
)

// WhitePoint identifies the reference white of an encoding
type WhitePoint int

const (
	WhitePointD65 WhitePoint = iota
)

// Primaries identifies the RGB gamut of a color encoding
type Primaries int

const (
	PrimariesSRGB Primaries = iota
)

// TransferFunction maps stored sample values to linear light
type TransferFunction int

const (
	TransferSRGB TransferFunction = iota
	TransferLinear
)

// RenderingIntent selects the gamut mapping strategy
type RenderingIntent int

const (
	IntentRelative RenderingIntent = iota
)

// Encoding is a complete color encoding description. The zero value is
// color sRGB. Encodings are compared by value; two images are in the same
// encoding iff their Encoding fields are equal.
type Encoding struct {
	Space      Space
	WhitePoint WhitePoint
	Primaries  Primaries // ignored when Space is SpaceGray
	Intent     RenderingIntent
	Transfer   TransferFunction
}

// SRGB returns the standard sRGB encoding, gray or color.
func SRGB(gray bool) Encoding {
	e := Encoding{Transfer: TransferSRGB}
	if gray {
		e.Space = SpaceGray
	}
	return e
}

// LinearSRGB returns sRGB with a linear transfer function, gray or color.
func LinearSRGB(gray bool) Encoding {
	e := SRGB(gray)
	e.Transfer = TransferLinear
	return e
}

// IsGray reports whether the encoding describes single-channel images.
func (e Encoding) IsGray() bool {
	return e.Space == SpaceGray
}

// String returns the canonical description, e.g. "RGB_D65_SRG_Rel_Lin".
func (e Encoding) String() string {
	tokens := make([]string, 0, 5)
	if e.IsGray() {
		tokens = append(tokens, "Gra")
	} else {
		tokens = append(tokens, "RGB")
	}
	tokens = append(tokens, "D65")
	if !e.IsGray() {
		tokens = append(tokens, "SRG")
	}
	tokens = append(tokens, "Rel")
	switch e.Transfer {
	case TransferLinear:
		tokens = append(tokens, "Lin")
	default:
		tokens = append(tokens, "SRG")
	}
	return strings.Join(tokens, "_")
}

// ParseDescription parses a description string back into an Encoding.
// Color descriptions have five tokens, gray descriptions four.
func ParseDescription(desc string) (Encoding, error) {
	var e Encoding
	tokens := strings.Split(desc, "_")
	switch len(tokens) {
	case 5:
		e.Space = SpaceRGB
	case 4:
		e.Space = SpaceGray
	default:
		return e, fmt.Errorf("color description %q: expected 4 or 5 tokens, got %d", desc, len(tokens))
	}
	if e.Space == SpaceRGB && tokens[0] != "RGB" {
		return e, fmt.Errorf("color description %q: unsupported color space %q", desc, tokens[0])
	}
	if e.Space == SpaceGray && tokens[0] != "Gra" {
		return e, fmt.Errorf("color description %q: unsupported color space %q", desc, tokens[0])
	}
	tokens = tokens[1:]
	if tokens[0] != "D65" {
		return e, fmt.Errorf("color description %q: unsupported white point %q", desc, tokens[0])
	}
	tokens = tokens[1:]
	if e.Space == SpaceRGB {
		if tokens[0] != "SRG" {
			return e, fmt.Errorf("color description %q: unsupported primaries %q", desc, tokens[0])
		}
		tokens = tokens[1:]
	}
	if tokens[0] != "Rel" {
		return e, fmt.Errorf("color description %q: unsupported rendering intent %q", desc, tokens[0])
	}
	switch tokens[1] {
	case "SRG":
		e.Transfer = TransferSRGB
	case "Lin":
		e.Transfer = TransferLinear
	default:
		return e, fmt.Errorf("color description %q: unsupported transfer function %q", desc, tokens[1])
	}
	return e, nil
}

// SRGBToLinear applies the inverse sRGB transfer curve to one sample.
func SRGBToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow((float64(v)+0.055)/1.055, 2.4))
}

// LinearToSRGB applies the forward sRGB transfer curve to one sample.
func LinearToSRGB(v float32) float32 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return float32(1.055*math.Pow(float64(v), 1/2.4) - 0.055)
}
