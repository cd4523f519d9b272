package store

// Store defines the interface for comparison-result persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the result doesn't exist (for Load/Delete)
//   - Return descriptive errors for I/O, serialization, or validation failures
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveResult atomically saves a comparison result under the given ID,
	// overwriting any previous result with that ID. Implementations should
	// use atomic write strategies (temp file + rename) so a crash never
	// leaves a half-written document behind.
	SaveResult(id string, result *Result) error

	// LoadResult retrieves the result with the given ID.
	// Returns ErrNotFound if no such result exists.
	LoadResult(id string) (*Result, error)

	// ListResults returns metadata for all stored results. The returned
	// slice may be empty. Corrupted documents are skipped, not fatal.
	ListResults() ([]ResultInfo, error)

	// DeleteResult removes the result and all artifacts stored alongside
	// it (heatmap images, traces). Returns ErrNotFound if no result
	// exists under the ID.
	DeleteResult(id string) error
}

// ErrNotFound is returned when a requested result does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing result.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "result not found: " + e.ID
	}
	return "result not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
