package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwbudde/imgdist/internal/store"
)

// Config holds the server settings
type Config struct {
	// Addr is the listen address, for example ":8080".
	Addr string
	// DataDir is the base directory of the result store.
	DataDir string
	// ImageRoot is the directory comparison requests may reference images
	// under. Defaults to the working directory.
	ImageRoot string
	// MaxWorkers bounds concurrent comparison jobs. Zero means one per CPU.
	MaxWorkers int
}

// Server exposes the comparison engine over a JSON API
type Server struct {
	cfg        Config
	store      *store.FSStore
	jobManager *JobManager
	server     *http.Server
}

// NewServer wires the API around a result store rooted at cfg.DataDir
func NewServer(cfg Config) (*Server, error) {
	if cfg.ImageRoot == "" {
		cfg.ImageRoot = "."
	}
	root, err := filepath.Abs(cfg.ImageRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image root: %w", err)
	}
	cfg.ImageRoot = root

	st, err := store.NewFSStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	return &Server{
		cfg:        cfg,
		store:      st,
		jobManager: NewJobManager(cfg.MaxWorkers),
	}, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.routes(),
	}

	slog.Info("Starting HTTP server", "addr", s.cfg.Addr, "imageRoot", s.cfg.ImageRoot)
	return s.server.ListenAndServe()
}

// routes builds the handler stack served by Start
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Register UI routes
	mux.HandleFunc("/", s.handleIndex)

	// Register API routes
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/compare", s.handleCompare)
	mux.HandleFunc("/api/jobs", s.handleListJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/events", s.handleEvents)

	// Wrap with middleware
	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCompare handles POST /api/compare
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	// Resolve both paths before committing to a job
	refPath, err := s.resolveImagePath(req.Ref)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("ref: %v", err))
		return
	}
	distPath, err := s.resolveImagePath(req.Dist)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("dist: %v", err))
		return
	}
	req.Ref = refPath
	req.Dist = distPath

	// Create job
	ctx, cancel := context.WithCancel(context.Background())
	job := s.jobManager.CreateJob(req, cancel)

	// Start worker in background
	go func() {
		defer cancel()
		if err := runCompareJob(ctx, s.jobManager, s.store, job.ID); err != nil {
			slog.Debug("Comparison job finished with error", "jobId", job.ID, "error", err)
		}
	}()

	slog.Info("Comparison job created", "jobId", job.ID, "ref", req.Ref, "dist", req.Dist)
	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleJobsWithID handles /api/jobs/:id and /api/jobs/:id/heatmap
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	// Parse job ID from path
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONError(w, http.StatusBadRequest, "job ID required")
		return
	}

	jobID := parts[0]

	// Route based on subpath
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetJob(w, r, jobID)
		case http.MethodDelete:
			s.handleCancelJob(w, r, jobID)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if parts[1] == "heatmap" && r.Method == http.MethodGet {
		s.handleGetHeatmap(w, r, jobID)
		return
	}

	writeJSONError(w, http.StatusNotFound, "not found")
}

// handleGetJob handles GET /api/jobs/:id
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelJob handles DELETE /api/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}

	if err := s.jobManager.CancelJob(jobID); err != nil {
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	}

	slog.Info("Comparison job cancel requested", "jobId", jobID)

	// The worker finalizes the state asynchronously
	job, _ := s.jobManager.GetJob(jobID)
	writeJSON(w, http.StatusAccepted, job)
}

// handleGetHeatmap handles GET /api/jobs/:id/heatmap
func (s *Server) handleGetHeatmap(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}

	if job.State != StateCompleted {
		writeJSONError(w, http.StatusConflict, fmt.Sprintf("job is %s", job.State))
		return
	}

	data, err := s.store.LoadArtifact(jobID, heatmapArtifact)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "heatmap not available")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write heatmap", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
