// Package api serves the local status endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"trafficviewer/pkg/version"
)

// NewServer creates and configures the HTTP server.
func NewServer(addr string, status *StatusHandler, traffic *TrafficHandler) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.Handle("GET /api/status", status)
	mux.HandleFunc("GET /api/traffic", traffic.HandleTraffic)
	mux.HandleFunc("GET /api/traffic/ws", traffic.HandleStream)

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the traffic stream is long-lived and sets its own deadlines.
		IdleTimeout: 60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
