package store

import (
	"fmt"
	"time"
)

// CompareParams is the persisted snapshot of the comparison knobs a result
// was computed with. Stored alongside every result so resumed batch runs
// can tell whether a cached score is still valid.
type CompareParams struct {
	HFAsymmetry     float32 `json:"hfAsymmetry"`
	XMul            float32 `json:"xmul"`
	IntensityTarget float32 `json:"intensityTarget"`
}

// Result is one persisted image comparison. All fields serialize to JSON.
//
// A result captures everything needed to report the comparison without
// re-reading the input images: the scores, the geometry, the parameter
// snapshot, and content checksums of both inputs. The checksums double as
// cache keys: a batch run resumes by looking up the checksum pair and
// skipping pairs whose stored result matches the current parameters.
type Result struct {
	// ID uniquely identifies this result (a UUID for server jobs, a
	// checksum-pair key for batch entries).
	ID string `json:"id"`

	// RefPath and DistPath are the input locations as given by the caller.
	RefPath  string `json:"refPath"`
	DistPath string `json:"distPath"`

	// RefChecksum and DistChecksum are xxHash64 content keys of the
	// inputs, empty when the inputs were not files (stdin).
	RefChecksum  string `json:"refChecksum,omitempty"`
	DistChecksum string `json:"distChecksum,omitempty"`

	// Width and Height are the compared geometry in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Distance is the peak perceptual score (maximum of the distortion
	// map), Norm3 the 3-norm reduction of the same map, PSNR the weighted
	// peak signal-to-noise ratio in decibels.
	Distance float64 `json:"distance"`
	Norm3    float64 `json:"norm3"`
	PSNR     float64 `json:"psnr"`

	// ChannelPSNR holds the unblended per-channel PSNR values, in
	// opponent-channel order.
	ChannelPSNR []float64 `json:"channelPsnr,omitempty"`

	// Params is the comparison parameter snapshot.
	Params CompareParams `json:"params"`

	// Backend names the reduction kernel class that produced the scores.
	Backend string `json:"backend,omitempty"`

	// ElapsedMillis is the wall time of the comparison.
	ElapsedMillis int64 `json:"elapsedMillis,omitempty"`

	// Error carries the failure message for pairs that could not be
	// compared. Scores are zero when set.
	Error string `json:"error,omitempty"`

	// Timestamp records when this result was created.
	Timestamp time.Time `json:"timestamp"`
}

// ResultInfo contains result metadata without the full document. Used for
// listings.
type ResultInfo struct {
	ID        string    `json:"id"`
	RefPath   string    `json:"refPath"`
	DistPath  string    `json:"distPath"`
	Distance  float64   `json:"distance"`
	PSNR      float64   `json:"psnr"`
	Timestamp time.Time `json:"timestamp"`
}

// ToInfo converts a full Result to its listing metadata.
func (r *Result) ToInfo() ResultInfo {
	return ResultInfo{
		ID:        r.ID,
		RefPath:   r.RefPath,
		DistPath:  r.DistPath,
		Distance:  r.Distance,
		PSNR:      r.PSNR,
		Timestamp: r.Timestamp,
	}
}

// Validate checks that the result carries consistent data.
func (r *Result) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.RefPath == "" {
		return &ValidationError{Field: "RefPath", Reason: "cannot be empty"}
	}
	if r.DistPath == "" {
		return &ValidationError{Field: "DistPath", Reason: "cannot be empty"}
	}
	if r.Width < 0 || r.Height < 0 {
		return &ValidationError{Field: "Width/Height", Reason: "cannot be negative"}
	}
	if r.Distance < 0 {
		return &ValidationError{Field: "Distance", Reason: "cannot be negative"}
	}
	if r.Norm3 < 0 {
		return &ValidationError{Field: "Norm3", Reason: "cannot be negative"}
	}
	if r.PSNR < 0 {
		return &ValidationError{Field: "PSNR", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a result validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible reports whether this stored result can stand in for a
// comparison of the given inputs under the given parameters. Batch resume
// uses it to decide between reusing and recomputing.
func (r *Result) IsCompatible(refChecksum, distChecksum string, params CompareParams) error {
	if r.RefChecksum != refChecksum {
		return &CompatibilityError{
			Field:    "RefChecksum",
			Expected: r.RefChecksum,
			Actual:   refChecksum,
		}
	}
	if r.DistChecksum != distChecksum {
		return &CompatibilityError{
			Field:    "DistChecksum",
			Expected: r.DistChecksum,
			Actual:   distChecksum,
		}
	}
	if r.Params != params {
		return &CompatibilityError{
			Field:    "Params",
			Expected: fmt.Sprintf("%+v", r.Params),
			Actual:   fmt.Sprintf("%+v", params),
		}
	}
	return nil
}

// CompatibilityError represents a cached result that does not match the
// requested comparison.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
