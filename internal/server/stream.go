package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// JobEvent is one item on the /api/events stream. An event is emitted for
// every job state transition.
type JobEvent struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	Distance  float64   `json:"distance,omitempty"`
	PSNR      float64   `json:"psnr,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBroadcaster fans job transitions out to any number of SSE clients
type EventBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan JobEvent]bool
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[chan JobEvent]bool),
	}
}

// Subscribe registers a new listener for job transitions
func (eb *EventBroadcaster) Subscribe() chan JobEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan JobEvent, 10)
	eb.clients[ch] = true
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (eb *EventBroadcaster) Unsubscribe(ch chan JobEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, exists := eb.clients[ch]; exists {
		delete(eb.clients, ch)
		close(ch)
	}
}

// Broadcast delivers an event to all listeners. A client that has fallen a
// full buffer behind is skipped rather than blocking the worker.
func (eb *EventBroadcaster) Broadcast(event JobEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for ch := range eb.clients {
		select {
		case ch <- event:
		default:
			slog.Debug("Skipping slow stream client", "jobId", event.JobID)
		}
	}
}

// handleEvents handles GET /api/events as a server-sent event stream of
// job state transitions.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.jobManager.broadcaster.Subscribe()
	defer s.jobManager.broadcaster.Unsubscribe(events)

	// Confirm the stream before the first transition arrives
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	// Ping to keep the connection alive through idle stretches
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, flusher, event); err != nil {
				slog.Debug("Stream client went away", "error", err)
				return
			}
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single event in SSE wire format
func writeSSEEvent(w io.Writer, flusher http.Flusher, event JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
