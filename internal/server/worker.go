package server

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"time"

	"github.com/cwbudde/imgdist/internal/diffmap"
	"github.com/cwbudde/imgdist/internal/imgio"
	"github.com/cwbudde/imgdist/internal/metrics"
	"github.com/cwbudde/imgdist/internal/store"
)

// heatmapArtifact is the store artifact name for a job's distortion map
const heatmapArtifact = "heatmap.png"

// runCompareJob executes a comparison job. It waits for a worker slot,
// scores the pair, persists the result and heatmap, and finalizes the job
// state. Cancellation is honored between stages.
func runCompareJob(ctx context.Context, jm *JobManager, st *store.FSStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job %s not found", jobID)
	}

	if err := jm.acquireSlot(ctx); err != nil {
		return markJobCancelled(jm, jobID)
	}
	defer jm.releaseSlot()

	if ctx.Err() != nil {
		return markJobCancelled(jm, jobID)
	}

	// Mark job as running
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	jm.publish(jobID)
	slog.Info("Comparison job started", "jobId", jobID, "ref", job.Request.Ref, "dist", job.Request.Dist)

	started := time.Now()

	// Hash the inputs so the stored result can be matched to its images
	refSum, err := imgio.Checksum(job.Request.Ref)
	if err != nil {
		return markJobFailed(jm, jobID, fmt.Errorf("failed to checksum reference: %w", err))
	}
	distSum, err := imgio.Checksum(job.Request.Dist)
	if err != nil {
		return markJobFailed(jm, jobID, fmt.Errorf("failed to checksum distorted: %w", err))
	}

	ref, err := imgio.ReadImage(job.Request.Ref)
	if err != nil {
		return markJobFailed(jm, jobID, fmt.Errorf("failed to read reference: %w", err))
	}
	dist, err := imgio.ReadImage(job.Request.Dist)
	if err != nil {
		return markJobFailed(jm, jobID, fmt.Errorf("failed to read distorted: %w", err))
	}

	if ctx.Err() != nil {
		return markJobCancelled(jm, jobID)
	}

	params := compareParams(job.Request)
	score, dmap, err := metrics.ButteraugliDistance(ref, dist, params, nil, false)
	if err != nil {
		return markJobFailed(jm, jobID, fmt.Errorf("failed to compare images: %w", err))
	}
	norm3, err := metrics.ComputeDistanceP(dmap, params, 3)
	if err != nil {
		return markJobFailed(jm, jobID, fmt.Errorf("failed to reduce distortion map: %w", err))
	}
	psnr, channels := metrics.ComputePSNRChannels(ref, dist, nil)

	if ctx.Err() != nil {
		return markJobCancelled(jm, jobID)
	}

	result := &store.Result{
		ID:           jobID,
		RefPath:      job.Request.Ref,
		DistPath:     job.Request.Dist,
		RefChecksum:  refSum,
		DistChecksum: distSum,
		Width:        ref.Width(),
		Height:       ref.Height(),
		Distance:     float64(score),
		Norm3:        norm3,
		PSNR:         psnr,
		ChannelPSNR:  channels[:],
		Params: store.CompareParams{
			HFAsymmetry:     params.HFAsymmetry,
			XMul:            params.XMul,
			IntensityTarget: params.IntensityTarget,
		},
		Backend:       metrics.ActiveNormBackend.String(),
		ElapsedMillis: time.Since(started).Milliseconds(),
		Timestamp:     time.Now(),
	}
	if err := result.Validate(); err != nil {
		return markJobFailed(jm, jobID, fmt.Errorf("failed to validate result: %w", err))
	}
	if err := st.SaveResult(jobID, result); err != nil {
		return markJobFailed(jm, jobID, fmt.Errorf("failed to save result: %w", err))
	}

	// The heatmap is best effort; the job still completes without it
	var buf bytes.Buffer
	if err := png.Encode(&buf, imgio.HeatmapImage(dmap, 0)); err != nil {
		slog.Warn("Failed to encode heatmap", "jobId", jobID, "error", err)
	} else if err := st.SaveArtifact(jobID, heatmapArtifact, buf.Bytes()); err != nil {
		slog.Warn("Failed to save heatmap", "jobId", jobID, "error", err)
	}

	// Mark job as completed
	now := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Result = result
		j.EndTime = &now
	})
	jm.releaseCancel(jobID)
	jm.publish(jobID)

	slog.Info("Comparison job completed", "jobId", jobID,
		"distance", result.Distance, "psnr", result.PSNR, "elapsed", time.Since(started))
	return nil
}

// compareParams merges request overrides onto the engine defaults
func compareParams(req CompareRequest) diffmap.Params {
	params := diffmap.DefaultParams()
	if req.HFAsymmetry != 0 {
		params.HFAsymmetry = req.HFAsymmetry
	}
	if req.XMul != 0 {
		params.XMul = req.XMul
	}
	if req.IntensityTarget != 0 {
		params.IntensityTarget = req.IntensityTarget
	}
	return params
}

// markJobFailed finalizes a job with an error and notifies subscribers
func markJobFailed(jm *JobManager, jobID string, cause error) error {
	now := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = cause.Error()
		j.EndTime = &now
	})
	jm.releaseCancel(jobID)
	jm.publish(jobID)
	slog.Warn("Comparison job failed", "jobId", jobID, "error", cause)
	return cause
}

// markJobCancelled finalizes a job that was stopped before completion
func markJobCancelled(jm *JobManager, jobID string) error {
	now := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &now
	})
	jm.releaseCancel(jobID)
	jm.publish(jobID)
	slog.Info("Comparison job cancelled", "jobId", jobID)
	return context.Canceled
}
