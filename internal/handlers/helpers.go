package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tunnelpanel/tunnelpanel/internal/orchestrator"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeOpError maps an orchestrator failure kind to its HTTP status. The
// message is already caller-safe; raw store or command errors never reach
// this layer.
func writeOpError(w http.ResponseWriter, opErr *orchestrator.OpError) {
	status := http.StatusInternalServerError
	switch opErr.Kind {
	case orchestrator.KindInvalidInput:
		status = http.StatusBadRequest
	case orchestrator.KindAlreadyInitialized:
		status = http.StatusForbidden
	case orchestrator.KindNotFound:
		status = http.StatusNotFound
	case orchestrator.KindDuplicateIdentifier:
		status = http.StatusConflict
	}
	writeError(w, status, opErr.Message)
}
