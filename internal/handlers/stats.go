package handlers

import (
	"net/http"

	"github.com/tunnelpanel/tunnelpanel/internal/stats"
)

// Stats is set from main.go during init.
var Stats *stats.Collector

// ServerStats handles GET /api/stats/server.
func ServerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Stats.ServerStats(r.Context()))
}

// PortStats handles GET /api/stats/ports.
func PortStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Stats.PortConnections(r.Context()))
}
