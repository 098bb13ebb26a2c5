package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tunnelpanel/tunnelpanel/internal/auth"
	"github.com/tunnelpanel/tunnelpanel/internal/config"
	"github.com/tunnelpanel/tunnelpanel/internal/database"
	"github.com/tunnelpanel/tunnelpanel/internal/middleware"
	"github.com/tunnelpanel/tunnelpanel/internal/orchestrator"
)

// Gate is set from main.go during init.
var Gate *orchestrator.AdministratorGate

// RegisterAdmin handles POST /api/auth/register-admin. Registration is open
// only until the first admin exists.
func RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var body orchestrator.RegisterAdminInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, opErr := Gate.Register(body)
	if opErr != nil {
		writeOpError(w, opErr)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

// Login handles POST /api/auth/login and returns a 7-day bearer token.
func Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := database.GetUserByUsername(body.Username)
	if err != nil || !auth.CheckPassword(body.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := auth.IssueToken(config.Cfg.JWTSecret, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"isAdmin":  user.IsAdmin,
		},
	})
}

// GetCurrentUser handles GET /api/auth/me.
func GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"isAdmin":  user.IsAdmin,
	})
}
