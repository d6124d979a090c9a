// Package server exposes the agent over HTTP: a state ingest endpoint for
// robots that push their own state, a snapshot endpoint, a health check,
// and a WebSocket stream of live robot state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fieldrover/rovermon/internal/telemetry"
	"github.com/fieldrover/rovermon/pkg/models"
	"github.com/gorilla/websocket"
)

// SnapshotReader provides the latest telemetry snapshot.
type SnapshotReader interface {
	Read() (*models.Snapshot, error)
}

// Server is the agent's HTTP surface.
type Server struct {
	addr      string
	hub       *telemetry.StateHub
	snapshots SnapshotReader
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// New creates a Server listening on addr. snapshots may be nil, disabling
// the snapshot endpoint.
func New(addr string, hub *telemetry.StateHub, snapshots SnapshotReader) (*Server, error) {
	if hub == nil {
		return nil, fmt.Errorf("server requires a state hub")
	}
	return &Server{
		addr:      addr,
		hub:       hub,
		snapshots: snapshots,
		conns:     make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Handler returns the HTTP handler, exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/state", s.handleIngest)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /ws/telemetry", s.handleStream)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", s.addr, err)
	}
}

// handleIngest accepts a RobotState JSON document and feeds it to the hub.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var state models.RobotState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		http.Error(w, fmt.Sprintf("invalid state: %v", err), http.StatusBadRequest)
		return
	}
	if state.Time.IsZero() {
		state.Time = time.Now().UTC()
	}
	if state.Source == "" {
		state.Source = "ingest"
	}
	s.hub.Update(state)
	w.WriteHeader(http.StatusAccepted)
}

// handleSnapshot serves the latest persisted snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		http.Error(w, "snapshots disabled", http.StatusNotFound)
		return
	}
	snapshot, err := s.snapshots.Read()
	if err != nil {
		http.Error(w, fmt.Sprintf("reading snapshot: %v", err), http.StatusInternalServerError)
		return
	}
	if snapshot == nil {
		http.Error(w, "no snapshot yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// handleStream upgrades to a WebSocket and forwards every state update
// until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	updates, cancel := s.hub.Subscribe()
	defer cancel()

	// Send the current state immediately so clients do not wait a full
	// sample interval for their first frame.
	if state, ok := s.hub.Current(); ok {
		if err := conn.WriteJSON(state); err != nil {
			return
		}
	}

	// Drain client messages to detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case state := <-updates:
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		}
	}
}
