package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/spf13/cobra"

	"github.com/cwbudde/imgdist/internal/diffmap"
	"github.com/cwbudde/imgdist/internal/imgio"
	"github.com/cwbudde/imgdist/internal/metrics"
)

var (
	compareHeatmapPath string
	compareGood        float64
	compareBad         float64
	comparePNorm       float64
	compareHFAsymmetry float32
	compareXMul        float32
	compareIntensity   float32
	compareIgnoreAlpha bool
	compareWorkers     int
	compareJSON        bool
)

var compareCmd = &cobra.Command{
	Use:   "compare REFERENCE DISTORTED",
	Short: "Compare two images and report distortion metrics",
	Long: `Compares a distorted image against its reference and reports the
perceptual distance, a p-norm over the distortion map, and PSNR.

With --good and --bad thresholds the exit status classifies the pair:
0 below good, 1 between, 2 at or above bad.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	defaults := diffmap.DefaultParams()

	compareCmd.Flags().StringVar(&compareHeatmapPath, "heatmap", "", "Write the distortion map as an image to this path")
	compareCmd.Flags().Float64Var(&compareGood, "good", 0, "Distance below this is considered good (0 = no threshold)")
	compareCmd.Flags().Float64Var(&compareBad, "bad", 0, "Distance at or above this is considered bad (0 = no threshold)")
	compareCmd.Flags().Float64Var(&comparePNorm, "p", 3, "Exponent of the norm over the distortion map")
	compareCmd.Flags().Float32Var(&compareHFAsymmetry, "hf-asymmetry", defaults.HFAsymmetry, "Weight of new high-frequency artifacts relative to blurring")
	compareCmd.Flags().Float32Var(&compareXMul, "xmul", defaults.XMul, "Extra weight on the red-green opponent channel")
	compareCmd.Flags().Float32Var(&compareIntensity, "intensity", defaults.IntensityTarget, "Viewing intensity target in nits")
	compareCmd.Flags().BoolVar(&compareIgnoreAlpha, "ignore-alpha", false, "Skip blending images against the gray background")
	compareCmd.Flags().IntVar(&compareWorkers, "workers", 0, "Worker threads for the comparison (0 = one per CPU)")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "Print the metrics as JSON")

	rootCmd.AddCommand(compareCmd)
}

type compareOutput struct {
	Distance float64   `json:"distance"`
	PNorm    float64   `json:"pnorm"`
	P        float64   `json:"p"`
	PSNR     float64   `json:"psnr"`
	Channels []float64 `json:"channelPsnr"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Backend  string    `json:"backend"`
	Millis   int64     `json:"elapsedMillis"`
}

func runCompare(cmd *cobra.Command, args []string) error {
	ref, err := imgio.ReadImage(args[0])
	if err != nil {
		return fmt.Errorf("failed to read reference: %w", err)
	}
	dist, err := imgio.ReadImage(args[1])
	if err != nil {
		return fmt.Errorf("failed to read distorted: %w", err)
	}

	params := diffmap.Params{
		HFAsymmetry:     compareHFAsymmetry,
		XMul:            compareXMul,
		IntensityTarget: compareIntensity,
	}

	pool := workerpool.New(compareWorkers)
	defer pool.Close()

	start := time.Now()
	score, dmap, err := metrics.ButteraugliDistance(ref, dist, params, pool, compareIgnoreAlpha)
	if err != nil {
		return fmt.Errorf("failed to compare images: %w", err)
	}
	norm, err := metrics.ComputeDistanceP(dmap, params, comparePNorm)
	if err != nil {
		return fmt.Errorf("failed to reduce distortion map: %w", err)
	}
	psnr, channels := metrics.ComputePSNRChannels(ref, dist, nil)
	elapsed := time.Since(start)

	if compareHeatmapPath != "" {
		if err := imgio.WriteHeatmap(compareHeatmapPath, dmap, 0); err != nil {
			return fmt.Errorf("failed to write heatmap: %w", err)
		}
		slog.Info("Wrote heatmap", "path", compareHeatmapPath)
	}

	if compareJSON {
		out := compareOutput{
			Distance: float64(score),
			PNorm:    norm,
			P:        comparePNorm,
			PSNR:     psnr,
			Channels: channels[:],
			Width:    ref.Width(),
			Height:   ref.Height(),
			Backend:  metrics.ActiveNormBackend.String(),
			Millis:   elapsed.Milliseconds(),
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("distance: %.6f\n", score)
		fmt.Printf("%g-norm:   %.6f\n", comparePNorm, norm)
		fmt.Printf("psnr:     %.2f dB (X %.2f, Y %.2f, B %.2f)\n", psnr, channels[0], channels[1], channels[2])
	}

	slog.Debug("Comparison complete",
		"distance", score, "backend", metrics.ActiveNormBackend, "elapsed", elapsed)

	// Classify against the thresholds through the exit status
	switch {
	case compareBad > 0 && float64(score) >= compareBad:
		os.Exit(2)
	case compareGood > 0 && float64(score) >= compareGood:
		os.Exit(1)
	}
	return nil
}
