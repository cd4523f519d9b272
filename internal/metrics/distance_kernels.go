package metrics

import (
	"github.com/ajroetker/go-highway/hwy"

	"github.com/cwbudde/imgdist/internal/imagef"
	"github.com/cwbudde/imgdist/internal/mem"
)

// Power-sum kernel variants for ComputeDistanceP's fast path.
//
// Each variant walks a distortion map once and returns the raw sums of
// d^3, d^6 and d^12 per pixel in float64. The cube is computed first and
// the higher powers by repeated squaring, so each pixel costs three
// multiplies regardless of variant. Only the vector variant allocates:
// it needs a small scratch block for its persistent lane accumulators.

// powerSumsVector accumulates the power sums with highway vector lanes.
//
// Rows are float32; each batch of lanes is promoted to float64 before
// accumulation so precision matches the scalar variants. Per-row vector
// sums start at zero and are folded into persistent lane totals after each
// row, which keeps the accumulation chains short. Pixels past the last
// full batch go through a scalar remainder.
func powerSumsVector(m *imagef.Map, alloc mem.Allocator) ([3]float64, error) {
	lanes := hwy.MaxLanes[float64]()
	scratch, err := alloc.Float64s(3 * lanes)
	if err != nil {
		return [3]float64{}, err
	}
	totals0 := scratch[:lanes]
	totals1 := scratch[lanes : 2*lanes]
	totals2 := scratch[2*lanes:]

	var rem [3]float64
	width := m.Width()
	for y := 0; y < m.Height(); y++ {
		row := m.RowSlice(y)
		sums0 := hwy.Zero[float64]()
		sums1 := hwy.Zero[float64]()
		sums2 := hwy.Zero[float64]()
		x := 0
		for ; x+lanes <= width; x += lanes {
			d1 := hwy.PromoteF32ToF64(hwy.Load(row[x : x+lanes]))
			d2 := hwy.Mul(d1, hwy.Mul(d1, d1))
			sums0 = hwy.Add(sums0, d2)
			d3 := hwy.Mul(d2, d2)
			sums1 = hwy.Add(sums1, d3)
			d4 := hwy.Mul(d3, d3)
			sums2 = hwy.Add(sums2, d4)
		}
		hwy.Store(hwy.Add(sums0, hwy.Load(totals0)), totals0)
		hwy.Store(hwy.Add(sums1, hwy.Load(totals1)), totals1)
		hwy.Store(hwy.Add(sums2, hwy.Load(totals2)), totals2)
		for ; x < width; x++ {
			d1 := float64(row[x])
			d2 := d1 * d1 * d1
			rem[0] += d2
			d2 *= d2
			rem[1] += d2
			d2 *= d2
			rem[2] += d2
		}
	}
	return [3]float64{
		rem[0] + hwy.ReduceSum(hwy.Load(totals0)),
		rem[1] + hwy.ReduceSum(hwy.Load(totals1)),
		rem[2] + hwy.ReduceSum(hwy.Load(totals2)),
	}, nil
}

// powerSumsUnrolled is the 4-way unrolled scalar variant.
//
// Computing four pixels' powers before folding them into the running sums
// breaks the add dependency chain and gives the compiler independent
// multiply streams. Roughly 1.3x faster than the naive variant on amd64.
func powerSumsUnrolled(m *imagef.Map, _ mem.Allocator) ([3]float64, error) {
	var sums [3]float64
	width := m.Width()
	unrollWidth := (width / 4) * 4
	for y := 0; y < m.Height(); y++ {
		row := m.RowSlice(y)
		x := 0
		for ; x < unrollWidth; x += 4 {
			a := float64(row[x])
			b := float64(row[x+1])
			c := float64(row[x+2])
			d := float64(row[x+3])

			a3 := a * a * a
			b3 := b * b * b
			c3 := c * c * c
			d3 := d * d * d
			a6 := a3 * a3
			b6 := b3 * b3
			c6 := c3 * c3
			d6 := d3 * d3
			a12 := a6 * a6
			b12 := b6 * b6
			c12 := c6 * c6
			d12 := d6 * d6

			sums[0] += a3 + b3 + c3 + d3
			sums[1] += a6 + b6 + c6 + d6
			sums[2] += a12 + b12 + c12 + d12
		}
		for ; x < width; x++ {
			d1 := float64(row[x])
			d2 := d1 * d1 * d1
			sums[0] += d2
			d2 *= d2
			sums[1] += d2
			d2 *= d2
			sums[2] += d2
		}
	}
	return sums, nil
}

// powerSumsScalar is the plain reference implementation used for
// validation and as the HWY_NO_SIMD fallback.
func powerSumsScalar(m *imagef.Map, _ mem.Allocator) ([3]float64, error) {
	var sums [3]float64
	for y := 0; y < m.Height(); y++ {
		for _, v := range m.RowSlice(y) {
			d1 := float64(v)
			d2 := d1 * d1 * d1
			sums[0] += d2
			d2 *= d2
			sums[1] += d2
			d2 *= d2
			sums[2] += d2
		}
	}
	return sums, nil
}
