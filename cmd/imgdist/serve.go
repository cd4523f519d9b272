package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/imgdist/internal/server"
)

var (
	serveListen    string
	serveDataDir   string
	serveImageRoot string
	serveWorkers   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the comparison HTTP server",
	Long: `Starts an HTTP server exposing the comparison API. Jobs are submitted
with POST /api/compare, observed with GET /api/jobs and the /api/events
stream, and their heatmaps fetched once complete. Image paths in requests
resolve against --image-root and may not escape it.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data", "./data", "Base directory for result storage")
	serveCmd.Flags().StringVar(&serveImageRoot, "image-root", ".", "Directory request image paths resolve against")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Maximum concurrent comparison jobs (0 = NumCPU)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := server.NewServer(server.Config{
		Addr:       serveListen,
		DataDir:    serveDataDir,
		ImageRoot:  serveImageRoot,
		MaxWorkers: serveWorkers,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
