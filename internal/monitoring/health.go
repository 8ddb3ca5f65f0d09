package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

// HealthChecker tracks coarse client health for the /healthz endpoint
type HealthChecker struct {
	mu              sync.RWMutex
	streamConnected bool
	authenticated   bool
	lastPoll        time.Time
	lastCandle      time.Time
}

// HealthStatus is the /healthz response body
type HealthStatus struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Authenticated   bool      `json:"authenticated"`
	StreamConnected bool      `json:"stream_connected"`
	LastPoll        time.Time `json:"last_poll"`
	LastCandle      time.Time `json:"last_candle"`
	Uptime          string    `json:"uptime"`
}

// NewHealthChecker creates a health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// SetStreamConnected updates stream connectivity
func (h *HealthChecker) SetStreamConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streamConnected = connected
}

// SetAuthenticated updates session state
func (h *HealthChecker) SetAuthenticated(authed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authenticated = authed
}

// MarkPoll records a successful position poll
func (h *HealthChecker) MarkPoll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPoll = time.Now()
}

// MarkCandle records a merged candle update
func (h *HealthChecker) MarkCandle() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCandle = time.Now()
}

// ServeHTTP serves the health endpoint. Degraded when unauthenticated or
// when the stream is down; the client keeps running either way.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.authenticated || !h.streamConnected {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	health := HealthStatus{
		Status:          status,
		Timestamp:       time.Now(),
		Authenticated:   h.authenticated,
		StreamConnected: h.streamConnected,
		LastPoll:        h.lastPoll,
		LastCandle:      h.lastCandle,
		Uptime:          time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// Serve exposes /metrics and /healthz on the given port
func Serve(port int, health *HealthChecker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go srv.ListenAndServe()
	return srv
}
