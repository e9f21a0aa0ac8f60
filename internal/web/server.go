// Package web serves the trader status, the cycle log stream and metrics over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/storage/cycles"
)

const (
	cyclePollInterval = 2 * time.Second
	heartbeatInterval = 30 * time.Second
)

// CycleReader reads cycle records appended after a WAL index.
type CycleReader interface {
	RecordsAfter(index uint64) ([]cycles.Entry, error)
}

// Status is the JSON body of the status endpoint.
type Status struct {
	State          string `json:"state"`
	Cycles         int    `json:"cycles"`
	Succeeded      int    `json:"succeeded"`
	Skipped        int    `json:"skipped"`
	Failed         int    `json:"failed"`
	Orders         int    `json:"orders"`
	PortfolioValue string `json:"portfolio_value,omitempty"`
}

// Server exposes the status endpoint, an SSE stream of cycle records and /metrics.
type Server struct {
	Addr    string
	Status  func() Status
	Cycles  CycleReader
	Metrics http.Handler

	logger *zap.Logger
}

// NewServer creates a server. cycles and metrics may be nil, their endpoints
// then answer 503.
func NewServer(addr string, status func() Status, cycles CycleReader, metrics http.Handler, logger *zap.Logger) *Server {
	return &Server{Addr: addr, Status: status, Cycles: cycles, Metrics: metrics, logger: logger}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /cycles/stream", s.handleCycleStream)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("status server shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("serving status", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st Status
	if s.Status != nil {
		st = s.Status()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Warn("write status", zap.Error(err))
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.Metrics == nil {
		http.Error(w, "metrics not available", http.StatusServiceUnavailable)
		return
	}
	s.Metrics.ServeHTTP(w, r)
}

func (s *Server) handleCycleStream(w http.ResponseWriter, r *http.Request) {
	if s.Cycles == nil {
		http.Error(w, "cycle log is not streamable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	poll := time.NewTicker(cyclePollInterval)
	defer poll.Stop()

	lastIndex := uint64(0)
	send := func() error {
		entries, err := s.Cycles.RecordsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, e := range entries {
			payload, err := json.Marshal(e.Record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", e.Index)
			fmt.Fprintf(w, "event: cycle\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			lastIndex = e.Index
		}
		if len(entries) > 0 {
			flusher.Flush()
		}
		return nil
	}

	if err := send(); err != nil {
		http.Error(w, "failed to load cycles", http.StatusInternalServerError)
		s.logger.Error("cycle stream initial load", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			if err := send(); err != nil {
				s.logger.Warn("cycle stream poll", zap.Error(err))
			}
		}
	}
}
