package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelpanel/tunnelpanel/internal/config"
	"github.com/tunnelpanel/tunnelpanel/internal/orchestrator"
)

// Services and Catalog are set from main.go during init.
var (
	Services *orchestrator.ServiceToggleOrchestrator
	Catalog  config.ServiceCatalog
)

// servicePort resolves the port for a toggle request: an explicit body port
// wins, otherwise the catalog default for the kind.
func servicePort(kind string, bodyPort int) int {
	if bodyPort != 0 {
		return bodyPort
	}
	if spec, ok := Catalog.Lookup(kind); ok {
		return spec.Port
	}
	return 0
}

// ServiceStatus handles GET /api/services/{kind}/status.
func ServiceStatus(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	status, opErr := Services.Status(r.Context(), kind)
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": kind,
		"status":  string(status),
	})
}

type serviceToggleBody struct {
	Port        int  `json:"port"`
	RestoreSSHD bool `json:"restore_sshd"`
}

func decodeToggleBody(r *http.Request) serviceToggleBody {
	var body serviceToggleBody
	// An empty body means catalog defaults.
	json.NewDecoder(r.Body).Decode(&body)
	return body
}

// EnableService handles POST /api/services/{kind}/enable.
func EnableService(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	body := decodeToggleBody(r)

	if opErr := Services.Enable(r.Context(), kind, servicePort(kind, body.Port)); opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": kind,
		"status":  "enabled",
	})
}

// DisableService handles POST /api/services/{kind}/disable.
func DisableService(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	body := decodeToggleBody(r)

	if opErr := Services.Disable(r.Context(), kind, servicePort(kind, body.Port), body.RestoreSSHD); opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": kind,
		"status":  "disabled",
	})
}
