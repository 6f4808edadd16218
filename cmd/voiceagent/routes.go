package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lattice-voice/voiceagent/internal/gateway"
)

// registerRoutes wires the two HTTP surfaces this service exposes: the
// media WebSocket endpoint and operational health/metrics checks. Every
// ops-console, model-management, and GPU route the teacher exposed is out
// of scope for a telephony voice agent and is not carried forward.
func registerRoutes(mux *http.ServeMux, h *gateway.Handler) {
	mux.Handle("/ws/call", h)
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
