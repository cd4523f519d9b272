package main

import (
	"testing"

	"github.com/cwbudde/imgdist/internal/colorspace"
	"github.com/cwbudde/imgdist/internal/diffmap"
	"github.com/cwbudde/imgdist/internal/imagef"
	"github.com/cwbudde/imgdist/internal/metrics"
)

func TestNoiseField_Deterministic(t *testing.T) {
	a := noiseField(16, 16, 42)
	b := noiseField(16, 16, 42)

	if len(a) != len(b) {
		t.Fatalf("Field lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Fields differ at index %d: %v vs %v", i, a[i], b[i])
		}
	}

	c := noiseField(16, 16, 43)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Expected a different seed to produce a different field")
	}
}

func TestNoiseField_Range(t *testing.T) {
	w, h := 8, 6
	field := noiseField(w, h, 1)

	if len(field) != 3*w*h {
		t.Fatalf("Expected %d samples, got %d", 3*w*h, len(field))
	}

	for i, v := range field {
		if v < -1 || v > 1 {
			t.Fatalf("Sample %d out of range [-1, 1]: %v", i, v)
		}
	}
}

func TestApplyNoise_ZeroAmplitude(t *testing.T) {
	im := imagef.New(8, 8, colorspace.SRGB(false))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			im.Set(x, y, 0.2, 0.5, 0.8)
		}
	}

	field := noiseField(8, 8, 42)
	out := applyNoise(im, field, 0)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			r, g, b := out.At(x, y)
			if r != 0.2 || g != 0.5 || b != 0.8 {
				t.Fatalf("Pixel (%d,%d) changed at zero amplitude: %v %v %v", x, y, r, g, b)
			}
		}
	}
}

func TestApplyNoise_Clamping(t *testing.T) {
	im := imagef.New(8, 8, colorspace.SRGB(false))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				im.Set(x, y, 0, 0, 0)
			} else {
				im.Set(x, y, 1, 1, 1)
			}
		}
	}

	field := noiseField(8, 8, 7)
	out := applyNoise(im, field, 5)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			r, g, b := out.At(x, y)
			for _, v := range []float32{r, g, b} {
				if v < 0 || v > 1 {
					t.Fatalf("Pixel (%d,%d) escaped [0, 1]: %v", x, y, v)
				}
			}
		}
	}
}

func TestApplyNoise_LeavesInputUntouched(t *testing.T) {
	im := imagef.New(4, 4, colorspace.SRGB(false))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			im.Set(x, y, 0.5, 0.5, 0.5)
		}
	}

	field := noiseField(4, 4, 3)
	applyNoise(im, field, 0.25)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			r, g, b := im.At(x, y)
			if r != 0.5 || g != 0.5 || b != 0.5 {
				t.Fatalf("Input pixel (%d,%d) mutated: %v %v %v", x, y, r, g, b)
			}
		}
	}
}

func TestNoiseDistance_GrowsWithAmplitude(t *testing.T) {
	ref := imagef.New(32, 32, colorspace.SRGB(false))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			ref.Set(x, y, 0.5, 0.5, 0.5)
		}
	}

	params := diffmap.DefaultParams()
	field := noiseField(32, 32, 42)

	zero := metrics.ButteraugliDistanceOrMax(ref, applyNoise(ref, field, 0), params, nil)
	if zero != 0 {
		t.Errorf("Expected zero distance at zero amplitude, got %v", zero)
	}

	small := metrics.ButteraugliDistanceOrMax(ref, applyNoise(ref, field, 0.1), params, nil)
	large := metrics.ButteraugliDistanceOrMax(ref, applyNoise(ref, field, 0.4), params, nil)

	if small <= 0 {
		t.Fatalf("Expected positive distance at amplitude 0.1, got %v", small)
	}
	if large <= small {
		t.Errorf("Expected distance to grow with amplitude: %v at 0.1, %v at 0.4", small, large)
	}
}

func TestApplyNoise_GrayStaysReplicated(t *testing.T) {
	im := imagef.New(8, 8, colorspace.SRGB(true))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			im.SetGray(x, y, float32(x)/8)
		}
	}

	field := noiseField(8, 8, 11)
	out := applyNoise(im, field, 0.2)

	if !out.IsGray() {
		t.Fatal("Expected output to stay gray")
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			r, g, b := out.At(x, y)
			if r != g || g != b {
				t.Fatalf("Gray pixel (%d,%d) diverged across planes: %v %v %v", x, y, r, g, b)
			}
		}
	}
}
