package metrics

import (
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/imgdist/internal/imagef"
)

// psnrChannelWeights blends the per-channel PSNR values into one score.
// Luma dominates; the two chroma channels share the remainder.
var psnrChannelWeights = [3]float64{6.0 / 8, 1.0 / 8, 1.0 / 8}

// ComputePSNR returns the weighted peak signal-to-noise ratio between two
// images in decibels, blending luma and chroma 6:1:1. Samples are treated
// as nominally in [0, 1], so the peak is 1.0.
//
// It never fails: precondition violations and conversion errors are
// reported on stderr and scored 0, and a channel with zero error is capped
// at 99.99 dB. Use it for reporting, not validation.
func ComputePSNR(a, b *imagef.Image, tx Transformer) float64 {
	psnr, _ := ComputePSNRChannels(a, b, tx)
	return psnr
}

// ComputePSNRChannels is ComputePSNR plus the unblended per-channel
// values, in opponent-channel order. On failure all channels are 0.
func ComputePSNRChannels(a, b *imagef.Image, tx Transformer) (float64, [3]float64) {
	var channels [3]float64
	if err := validateComparable(a, b, "PSNR"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 0.0, channels
	}
	sums, err := ComputeSumOfSquares(a, b, tx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "computing sum of squares failed: %v\n", err)
		return 0.0, channels
	}
	pixels := float64(a.Width() * a.Height())
	psnr := 0.0
	for c := 0; c < 3; c++ {
		if sums[c] == 0 {
			channels[c] = 99.99
		} else {
			rmse := math.Sqrt(sums[c] / pixels)
			channels[c] = 20 * math.Log10(1/rmse)
		}
		psnr += psnrChannelWeights[c] * channels[c]
	}
	return psnr, channels
}
