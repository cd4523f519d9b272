package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// writeJSON serializes v to the response with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeJSONError sends an error payload in the API's standard shape
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolveImagePath joins p with the configured image root and rejects paths
// that escape it. The file must exist so bad requests fail before a job is
// created.
func (s *Server) resolveImagePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is required")
	}

	full := filepath.Join(s.cfg.ImageRoot, p)
	rel, err := filepath.Rel(s.cfg.ImageRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the image root", p)
	}

	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("failed to stat image: %w", err)
	}
	return full, nil
}
