package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/imgdist/internal/server"
)

var statusServerURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server jobs",
	Long: `Queries a running imgdist server for job information.
If no job-id is provided, lists all jobs.
If a job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServerURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(fmt.Sprintf("%s/api/jobs", statusServerURL))
	}
	return getJobStatus(fmt.Sprintf("%s/api/jobs/%s", statusServerURL, args[0]), args[0])
}

func listJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []server.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job.ID)
		fmt.Printf("  State: %s\n", job.State)
		fmt.Printf("  Pair: %s vs %s\n",
			filepath.Base(job.Request.Ref), filepath.Base(job.Request.Dist))
		if job.Result != nil {
			fmt.Printf("  Distance: %.4f\n", job.Result.Distance)
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var job server.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("State: %s\n", job.State)
	fmt.Println()

	fmt.Println("Inputs:")
	fmt.Printf("  Reference: %s\n", job.Request.Ref)
	fmt.Printf("  Distorted: %s\n", job.Request.Dist)
	if job.Request.HFAsymmetry != 0 {
		fmt.Printf("  HF asymmetry: %g\n", job.Request.HFAsymmetry)
	}
	if job.Request.IntensityTarget != 0 {
		fmt.Printf("  Intensity target: %g nits\n", job.Request.IntensityTarget)
	}

	if job.Result != nil {
		fmt.Println()
		fmt.Println("Scores:")
		fmt.Printf("  Distance: %.6f\n", job.Result.Distance)
		fmt.Printf("  3-norm:   %.6f\n", job.Result.Norm3)
		fmt.Printf("  PSNR:     %.2f dB\n", job.Result.PSNR)
		fmt.Printf("  Size:     %dx%d\n", job.Result.Width, job.Result.Height)
		if job.Result.ElapsedMillis > 0 {
			elapsed := time.Duration(job.Result.ElapsedMillis) * time.Millisecond
			fmt.Printf("  Elapsed:  %s\n", elapsed)
		}
	}

	if job.EndTime != nil {
		fmt.Printf("\nFinished: %s\n", job.EndTime.Format(time.RFC3339))
	}

	if job.Error != "" {
		fmt.Printf("\nError: %s\n", job.Error)
	}

	return nil
}
