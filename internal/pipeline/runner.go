package pipeline

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"
	"time"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/cwbudde/imgdist/internal/diffmap"
	"github.com/cwbudde/imgdist/internal/imagef"
	"github.com/cwbudde/imgdist/internal/imgio"
	"github.com/cwbudde/imgdist/internal/metrics"
	"github.com/cwbudde/imgdist/internal/store"
)

// Options configure a batch run.
type Options struct {
	// Workers sets the pair-level parallelism. Zero uses GOMAXPROCS.
	Workers int

	// Resume reuses stored results whose input checksums and parameters
	// match instead of recomputing the pair.
	Resume bool

	// Heatmaps stores a rendered distortion map beside every computed
	// result.
	Heatmaps bool

	// Params are the comparison parameters applied to every pair.
	Params diffmap.Params
}

// Runner scores manifest pairs into a result store, tracing each outcome.
type Runner struct {
	store *store.FSStore
	trace *store.TraceWriter
	opts  Options
}

// NewRunner creates a batch runner. The caller owns the trace writer and
// closes it after Run returns.
func NewRunner(st *store.FSStore, trace *store.TraceWriter, opts Options) *Runner {
	return &Runner{store: st, trace: trace, opts: opts}
}

// Summary aggregates a finished batch run. Mean and worst cover every pair
// that has scores, reused ones included.
type Summary struct {
	Pairs     int `json:"pairs"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	MeanDistance  float64 `json:"meanDistance"`
	WorstDistance float64 `json:"worstDistance"`
	WorstRef      string  `json:"worstRef,omitempty"`
	WorstDist     string  `json:"worstDist,omitempty"`
}

// Run scores every manifest pair. A failed pair records its error and the
// run continues; only setup problems abort the whole run.
func (r *Runner) Run(manifest *Manifest) (*Summary, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	if r.opts.Params == (diffmap.Params{}) {
		r.opts.Params = diffmap.DefaultParams()
	}

	n := len(manifest.Pairs)
	slog.Info("Starting batch run",
		"pairs", n, "workers", r.opts.Workers, "resume", r.opts.Resume)

	pool := workerpool.New(r.opts.Workers)
	defer pool.Close()

	results := make([]*store.Result, n)
	reused := make([]bool, n)

	// Pair cost varies with image size, so hand pairs out by work
	// stealing. Each pair runs its comparison sequentially; parallelism
	// comes from the fan-out.
	pool.ParallelForAtomic(n, func(i int) {
		results[i], reused[i] = r.runPair(i, manifest.Pairs[i])
	})

	if err := r.trace.Flush(); err != nil {
		return nil, fmt.Errorf("flushing trace: %w", err)
	}

	summary := summarize(manifest, results, reused)
	slog.Info("Batch run complete",
		"completed", summary.Completed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"worst_distance", summary.WorstDistance)
	return summary, nil
}

// runPair scores one pair. The returned result is nil when the failure
// happened before the inputs could be identified.
func (r *Runner) runPair(index int, pair PairSpec) (*store.Result, bool) {
	started := time.Now()
	entry := store.TraceEntry{Index: index, Ref: pair.Ref, Dist: pair.Dist}

	refSum, err := imgio.Checksum(pair.Ref)
	if err != nil {
		return r.recordFailure(entry, "", "", "", err), false
	}
	distSum, err := imgio.Checksum(pair.Dist)
	if err != nil {
		return r.recordFailure(entry, "", "", "", err), false
	}
	p := pair.P
	if p == 0 {
		p = 3
	}
	key := resultKey(refSum, distSum, paramsSnapshot(r.opts.Params), p)

	if r.opts.Resume {
		if existing, err := r.store.LoadResult(key); err == nil && existing.Error == "" {
			if existing.IsCompatible(refSum, distSum, paramsSnapshot(r.opts.Params)) == nil {
				entry.Distance = existing.Distance
				entry.Norm3 = existing.Norm3
				entry.PSNR = existing.PSNR
				entry.Skipped = true
				entry.Timestamp = time.Now()
				r.writeTrace(entry)
				slog.Debug("Pair reused from store", "index", index, "id", key)
				return existing, true
			}
		}
	}

	result, err := r.comparePair(key, pair, refSum, distSum, p)
	if err != nil {
		return r.recordFailure(entry, key, refSum, distSum, err), false
	}
	result.ElapsedMillis = time.Since(started).Milliseconds()

	if err := r.store.SaveResult(key, result); err != nil {
		return r.recordFailure(entry, "", "", "", err), false
	}

	entry.Distance = result.Distance
	entry.Norm3 = result.Norm3
	entry.PSNR = result.PSNR
	entry.Timestamp = time.Now()
	r.writeTrace(entry)
	return result, false
}

// comparePair reads both inputs and computes the three scores.
func (r *Runner) comparePair(key string, pair PairSpec, refSum, distSum string, p float64) (*store.Result, error) {
	ref, err := imgio.ReadImage(pair.Ref)
	if err != nil {
		return nil, err
	}
	dist, err := imgio.ReadImage(pair.Dist)
	if err != nil {
		return nil, err
	}

	score, dmap, err := metrics.ButteraugliDistance(ref, dist, r.opts.Params, nil, false)
	if err != nil {
		return nil, err
	}
	norm, err := metrics.ComputeDistanceP(dmap, r.opts.Params, p)
	if err != nil {
		return nil, err
	}
	psnr, channels := metrics.ComputePSNRChannels(ref, dist, nil)

	result := &store.Result{
		ID:           key,
		RefPath:      pair.Ref,
		DistPath:     pair.Dist,
		RefChecksum:  refSum,
		DistChecksum: distSum,
		Width:        ref.Width(),
		Height:       ref.Height(),
		Distance:     float64(score),
		Norm3:        norm,
		PSNR:         psnr,
		ChannelPSNR:  channels[:],
		Params:       paramsSnapshot(r.opts.Params),
		Backend:      metrics.ActiveNormBackend.String(),
		Timestamp:    time.Now(),
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	if r.opts.Heatmaps {
		if err := r.storeHeatmap(key, dmap); err != nil {
			slog.Warn("Failed to store heatmap", "id", key, "error", err)
		}
	}
	return result, nil
}

// recordFailure traces a failed pair and, when the inputs were identified,
// persists a failure document so listings show the broken pair.
func (r *Runner) recordFailure(entry store.TraceEntry, key, refSum, distSum string, cause error) *store.Result {
	slog.Warn("Pair comparison failed",
		"index", entry.Index, "ref", entry.Ref, "dist", entry.Dist, "error", cause)

	entry.Error = cause.Error()
	entry.Timestamp = time.Now()
	r.writeTrace(entry)

	if key == "" {
		return nil
	}
	result := &store.Result{
		ID:           key,
		RefPath:      entry.Ref,
		DistPath:     entry.Dist,
		RefChecksum:  refSum,
		DistChecksum: distSum,
		Params:       paramsSnapshot(r.opts.Params),
		Error:        cause.Error(),
		Timestamp:    time.Now(),
	}
	if err := r.store.SaveResult(key, result); err != nil {
		slog.Warn("Failed to store failure result", "id", key, "error", err)
	}
	return result
}

func (r *Runner) storeHeatmap(key string, dmap *imagef.Map) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, imgio.HeatmapImage(dmap, 0)); err != nil {
		return err
	}
	return r.store.SaveArtifact(key, "heatmap.png", buf.Bytes())
}

func (r *Runner) writeTrace(entry store.TraceEntry) {
	if err := r.trace.Write(entry); err != nil {
		slog.Warn("Failed to write trace entry", "index", entry.Index, "error", err)
	}
}

// resultKey derives the deterministic store key of a pair from its input
// checksums and effective parameters. Same inputs under different settings
// get distinct documents.
func resultKey(refSum, distSum string, params store.CompareParams, p float64) string {
	material := fmt.Sprintf("%s|%s|%g|%g|%g|%g",
		refSum, distSum, params.HFAsymmetry, params.XMul, params.IntensityTarget, p)
	return imgio.ChecksumBytes([]byte(material))
}

func paramsSnapshot(p diffmap.Params) store.CompareParams {
	return store.CompareParams{
		HFAsymmetry:     p.HFAsymmetry,
		XMul:            p.XMul,
		IntensityTarget: p.IntensityTarget,
	}
}

func summarize(manifest *Manifest, results []*store.Result, reused []bool) *Summary {
	s := &Summary{Pairs: len(results)}
	sum := 0.0
	scored := 0
	for i, result := range results {
		if result == nil || result.Error != "" {
			s.Failed++
			continue
		}
		if reused[i] {
			s.Skipped++
		} else {
			s.Completed++
		}
		sum += result.Distance
		if scored == 0 || result.Distance > s.WorstDistance {
			s.WorstDistance = result.Distance
			s.WorstRef = manifest.Pairs[i].Ref
			s.WorstDist = manifest.Pairs[i].Dist
		}
		scored++
	}
	if scored > 0 {
		s.MeanDistance = sum / float64(scored)
	}
	return s
}
