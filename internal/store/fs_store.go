package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements the Store interface on the filesystem. Results live
// in a directory structure: <baseDir>/results/<id>/ with result.json next
// to any artifacts (heatmap.png and the like).
//
// Thread-safety: writes go through temp file + rename, so no locks are
// needed and concurrent goroutines can call methods safely.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-backed store rooted at baseDir, creating
// the directory if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// ResultDir returns the directory holding a result document and its
// artifacts.
func (fs *FSStore) ResultDir(id string) string {
	return filepath.Join(fs.baseDir, "results", id)
}

func (fs *FSStore) resultPath(id string) string {
	return filepath.Join(fs.ResultDir(id), "result.json")
}

// SaveResult atomically saves a result document using the temp file +
// rename pattern.
func (fs *FSStore) SaveResult(id string, result *Result) error {
	if id == "" {
		return fmt.Errorf("result ID cannot be empty")
	}
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	dir := fs.ResultDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	tempPath := fs.resultPath(id) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp result file: %w", err)
	}

	finalPath := fs.resultPath(id)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename result file: %w", err)
	}

	slog.Debug("Result saved", "id", id, "path", finalPath)
	return nil
}

// LoadResult retrieves the result with the given ID.
func (fs *FSStore) LoadResult(id string) (*Result, error) {
	if id == "" {
		return nil, fmt.Errorf("result ID cannot be empty")
	}

	path := fs.resultPath(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat result file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize result: %w", err)
	}

	slog.Debug("Result loaded", "id", id, "path", path)
	return &result, nil
}

// ListResults returns metadata for all stored results, skipping documents
// that fail to load.
func (fs *FSStore) ListResults() ([]ResultInfo, error) {
	resultsDir := filepath.Join(fs.baseDir, "results")

	if _, err := os.Stat(resultsDir); os.IsNotExist(err) {
		return []ResultInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat results directory: %w", err)
	}

	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var infos []ResultInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		if _, err := os.Stat(fs.resultPath(id)); os.IsNotExist(err) {
			continue
		}

		result, err := fs.LoadResult(id)
		if err != nil {
			slog.Warn("Failed to load result for listing", "id", id, "error", err)
			continue
		}
		infos = append(infos, result.ToInfo())
	}

	slog.Debug("Listed results", "count", len(infos))
	return infos, nil
}

// DeleteResult removes the result document and every artifact stored with
// it.
func (fs *FSStore) DeleteResult(id string) error {
	if id == "" {
		return fmt.Errorf("result ID cannot be empty")
	}

	dir := fs.ResultDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat result directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove result directory: %w", err)
	}

	slog.Debug("Result deleted", "id", id, "path", dir)
	return nil
}

// SaveArtifact writes a file (heatmap image, report) into the result's
// directory. The result does not need to exist yet.
func (fs *FSStore) SaveArtifact(id, name string, data []byte) error {
	if id == "" {
		return fmt.Errorf("result ID cannot be empty")
	}
	dir := fs.ResultDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads a file stored alongside a result. Returns ErrNotFound
// when the artifact does not exist.
func (fs *FSStore) LoadArtifact(id, name string) ([]byte, error) {
	path := filepath.Join(fs.ResultDir(id), name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}
