package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/imgdist/internal/diffmap"
	"github.com/cwbudde/imgdist/internal/pipeline"
	"github.com/cwbudde/imgdist/internal/store"
)

var (
	runManifestPath string
	runDataDir      string
	runTraceID      string
	runWorkers      int
	runResume       bool
	runHeatmaps     bool
	runHFAsymmetry  float32
	runXMul         float32
	runIntensity    float32
	runJSON         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score every image pair in a manifest",
	Long: `Runs a batch of comparisons from a manifest file, persisting each
result under a key derived from the input checksums and parameters. A
trace of every pair lands beside the results. With --resume, pairs whose
stored result still matches its inputs are reused instead of recomputed.`,
	RunE: runBatch,
}

func init() {
	defaults := diffmap.DefaultParams()

	runCmd.Flags().StringVar(&runManifestPath, "manifest", "", "Manifest file listing image pairs (required)")
	runCmd.Flags().StringVar(&runDataDir, "data", "./data", "Base directory for result storage")
	runCmd.Flags().StringVar(&runTraceID, "run-id", "", "Trace identifier for this run (default: UTC timestamp)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent pairs (0 = one per CPU)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Reuse stored results with matching checksums and parameters")
	runCmd.Flags().BoolVar(&runHeatmaps, "heatmaps", false, "Store a rendered distortion map beside every result")
	runCmd.Flags().Float32Var(&runHFAsymmetry, "hf-asymmetry", defaults.HFAsymmetry, "Weight of new high-frequency artifacts relative to blurring")
	runCmd.Flags().Float32Var(&runXMul, "xmul", defaults.XMul, "Extra weight on the red-green opponent channel")
	runCmd.Flags().Float32Var(&runIntensity, "intensity", defaults.IntensityTarget, "Viewing intensity target in nits")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the summary as JSON")

	runCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest, err := pipeline.LoadManifest(runManifestPath)
	if err != nil {
		return err
	}

	st, err := store.NewFSStore(runDataDir)
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}

	traceID := runTraceID
	if traceID == "" {
		traceID = time.Now().UTC().Format("20060102-150405")
	}

	// Append when resuming so reruns extend the same trace
	trace, err := store.NewTraceWriter(runDataDir, traceID, runResume)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer trace.Close()

	runner := pipeline.NewRunner(st, trace, pipeline.Options{
		Workers:  runWorkers,
		Resume:   runResume,
		Heatmaps: runHeatmaps,
		Params: diffmap.Params{
			HFAsymmetry:     runHFAsymmetry,
			XMul:            runXMul,
			IntensityTarget: runIntensity,
		},
	})

	summary, err := runner.Run(manifest)
	if err != nil {
		return fmt.Errorf("batch run failed: %w", err)
	}

	if runJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("Pairs:     %d\n", summary.Pairs)
		fmt.Printf("Completed: %d\n", summary.Completed)
		fmt.Printf("Skipped:   %d\n", summary.Skipped)
		fmt.Printf("Failed:    %d\n", summary.Failed)
		if summary.Completed+summary.Skipped > 0 {
			fmt.Printf("Mean distance:  %.6f\n", summary.MeanDistance)
			fmt.Printf("Worst distance: %.6f (%s vs %s)\n",
				summary.WorstDistance, summary.WorstRef, summary.WorstDist)
		}
		fmt.Printf("Trace: %s\n", trace.Path())
	}

	slog.Info("Batch finished", "pairs", summary.Pairs,
		"completed", summary.Completed, "skipped", summary.Skipped, "failed", summary.Failed)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d pairs failed", summary.Failed, summary.Pairs)
	}
	return nil
}
