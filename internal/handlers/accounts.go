package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelpanel/tunnelpanel/internal/middleware"
	"github.com/tunnelpanel/tunnelpanel/internal/orchestrator"
)

// Accounts is set from main.go during init.
var Accounts *orchestrator.AccountOrchestrator

// ListAccounts handles GET /api/ssh/accounts. Each row carries its live
// session count.
func ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, opErr := Accounts.ListEnriched(r.Context())
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	if accounts == nil {
		accounts = []orchestrator.EnrichedAccount{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// CreateAccount handles POST /api/ssh/accounts.
func CreateAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username   string    `json:"username"`
		Password   string    `json:"password"`
		ExpiryDate time.Time `json:"expiry_date"`
		MaxLogin   int       `json:"max_login"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	acct, opErr := Accounts.Create(r.Context(), orchestrator.CreateAccountInput{
		Username:   body.Username,
		Password:   body.Password,
		ExpiryDate: body.ExpiryDate,
		MaxLogin:   body.MaxLogin,
		OwnerID:    user.ID,
	})
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}

	writeJSON(w, http.StatusCreated, acct)
}

// ToggleAccount handles PATCH /api/ssh/accounts/{username}/toggle.
func ToggleAccount(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	acct, opErr := Accounts.Toggle(r.Context(), username)
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// DeleteAccount handles DELETE /api/ssh/accounts/{username}.
func DeleteAccount(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if opErr := Accounts.Delete(r.Context(), username); opErr != nil {
		writeOpError(w, opErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
