package httpapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// HealthFunc reports whether persistence is currently degraded.
type HealthFunc func() (degraded bool)

// Server is the pull-based query interface a dashboard polls. It only reads
// ring buffer snapshots and is safe to use concurrently with the sampler.
type Server struct {
	buffer   ports.ReadingBuffer
	degraded HealthFunc
	metrics  http.Handler
	mux      *http.ServeMux
}

// NewServer registers every route. metrics and degraded may be nil.
func NewServer(buf ports.ReadingBuffer, degraded HealthFunc, metrics http.Handler) *Server {
	s := &Server{
		buffer:   buf,
		degraded: degraded,
		metrics:  metrics,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/v1/channels", s.handleChannels)
	// /api/v1/channels/{id}/readings, parsed by hand.
	s.mux.HandleFunc("/api/v1/channels/", s.handleChannelReadings)
	s.mux.HandleFunc("/api/v1/readings", s.handleAllReadings)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.degraded != nil && s.degraded() {
		http.Error(w, "degraded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleChannels implements:
//
//	GET /api/v1/channels
//
// Response: 200 JSON array of channel ids in configured order.
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.buffer.Channels())
}

// handleChannelReadings implements:
//
//	GET /api/v1/channels/{id}/readings?limit=N
//
// Readings are oldest first; limit keeps only the newest N.
func (s *Server) handleChannelReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/channels/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "readings" || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	if !slices.Contains(s.buffer.Channels(), id) {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, "invalid limit, must be a positive integer", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, tail(s.buffer.Snapshot(id), limit))
}

// handleAllReadings implements:
//
//	GET /api/v1/readings?limit=N
//
// Response: JSON object keyed by channel id.
func (s *Server) handleAllReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, "invalid limit, must be a positive integer", http.StatusBadRequest)
		return
	}
	all := s.buffer.SnapshotAll()
	for ch, readings := range all {
		all[ch] = tail(readings, limit)
	}
	writeJSON(w, http.StatusOK, all)
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func tail(readings []domain.Reading, limit int) []domain.Reading {
	if readings == nil {
		return []domain.Reading{}
	}
	if limit > 0 && len(readings) > limit {
		return readings[len(readings)-limit:]
	}
	return readings
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
