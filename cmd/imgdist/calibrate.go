package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/spf13/cobra"

	"github.com/cwbudde/imgdist/internal/diffmap"
	"github.com/cwbudde/imgdist/internal/imagef"
	"github.com/cwbudde/imgdist/internal/imgio"
	"github.com/cwbudde/imgdist/internal/metrics"
	"github.com/cwbudde/imgdist/internal/opt"
)

var (
	calibrateTarget float64
	calibrateIters  int
	calibratePop    int
	calibrateSeed   int64
	calibrateWindow int
	calibrateTol    float64
	calibrateMaxAmp float64
	calibrateJSON   bool
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate REFERENCE",
	Short: "Find the noise amplitude that hits a target distance",
	Long: `Searches for the uniform-noise amplitude that, added to the
reference image, produces the requested perceptual distance. Useful for
sanity-checking metric sensitivity on new content: an image that needs an
unusually large or small amplitude to reach distance 1.0 behaves
differently from typical photographs.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().Float64Var(&calibrateTarget, "target", 1.0, "Perceptual distance to aim for")
	calibrateCmd.Flags().IntVar(&calibrateIters, "iters", 60, "Max optimizer iterations")
	calibrateCmd.Flags().IntVar(&calibratePop, "pop", 20, "Optimizer population size")
	calibrateCmd.Flags().Int64Var(&calibrateSeed, "seed", 42, "Random seed for the noise field and the optimizer")
	calibrateCmd.Flags().IntVar(&calibrateWindow, "window", 8, "Stop after this many stalled improvements (0 = run all iterations)")
	calibrateCmd.Flags().Float64Var(&calibrateTol, "tol", 1e-4, "Improvement below this counts as stalled")
	calibrateCmd.Flags().Float64Var(&calibrateMaxAmp, "max-amplitude", 0.5, "Upper bound of the amplitude search")
	calibrateCmd.Flags().BoolVar(&calibrateJSON, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(calibrateCmd)
}

type calibrateOutput struct {
	Amplitude   float64 `json:"amplitude"`
	Distance    float64 `json:"distance"`
	Target      float64 `json:"target"`
	Evaluations int     `json:"evaluations"`
	Millis      int64   `json:"elapsedMillis"`
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	ref, err := imgio.ReadImage(args[0])
	if err != nil {
		return fmt.Errorf("failed to read reference: %w", err)
	}

	params := diffmap.DefaultParams()
	pool := workerpool.New(0)
	defer pool.Close()

	// One fixed noise field scaled by the amplitude keeps the objective
	// smooth; fresh noise per evaluation would make it jitter.
	field := noiseField(ref.Width(), ref.Height(), calibrateSeed)

	eval := func(amplitude float64) float64 {
		noisy := applyNoise(ref, field, float32(amplitude))
		d := metrics.ButteraugliDistanceOrMax(ref, noisy, params, pool)
		return math.Abs(float64(d) - calibrateTarget)
	}

	slog.Info("Calibrating noise amplitude", "ref", args[0],
		"target", calibrateTarget, "iters", calibrateIters, "seed", calibrateSeed)

	start := time.Now()
	optimizer := opt.NewMayfly(calibrateIters, calibratePop, calibrateSeed, calibrateWindow, calibrateTol)
	amplitude, _, evals := optimizer.Minimize(eval, 0, calibrateMaxAmp)

	noisy := applyNoise(ref, field, float32(amplitude))
	achieved := float64(metrics.ButteraugliDistanceOrMax(ref, noisy, params, pool))
	elapsed := time.Since(start)

	if calibrateJSON {
		out := calibrateOutput{
			Amplitude:   amplitude,
			Distance:    achieved,
			Target:      calibrateTarget,
			Evaluations: evals,
			Millis:      elapsed.Milliseconds(),
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("amplitude: %.6f\n", amplitude)
		fmt.Printf("distance:  %.6f (target %.6f)\n", achieved, calibrateTarget)
		fmt.Printf("evals:     %d in %s\n", evals, elapsed.Round(time.Millisecond))
	}

	slog.Info("Calibration complete", "amplitude", amplitude,
		"distance", achieved, "evals", evals, "elapsed", elapsed)
	return nil
}

// noiseField returns a deterministic field of uniform samples in [-1, 1],
// one per channel sample of a w by h image.
func noiseField(w, h int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	field := make([]float32, 3*w*h)
	for i := range field {
		field[i] = float32(rng.Float64()*2 - 1)
	}
	return field
}

// applyNoise returns a copy of im with the scaled field added to every
// channel sample, clamped to the displayable range. Gray images reuse
// the first plane's field so their planes stay replicated.
func applyNoise(im *imagef.Image, field []float32, amplitude float32) *imagef.Image {
	out := im.Clone()
	w, h := out.Width(), out.Height()
	for c := 0; c < 3; c++ {
		planeOffset := c * h
		if out.IsGray() {
			planeOffset = 0
		}
		for y := 0; y < h; y++ {
			row := out.PlaneRow(c, y)
			base := (planeOffset + y) * w
			for x := 0; x < w; x++ {
				v := row[x] + amplitude*field[base+x]
				if v < 0 {
					v = 0
				} else if v > 1 {
					v = 1
				}
				row[x] = v
			}
		}
	}
	return out
}
