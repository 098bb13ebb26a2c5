package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelpanel/tunnelpanel/internal/auth"
	"github.com/tunnelpanel/tunnelpanel/internal/config"
	"github.com/tunnelpanel/tunnelpanel/internal/database"
	"github.com/tunnelpanel/tunnelpanel/internal/middleware"
)

func logsRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/auth/register-admin", RegisterAdmin)
	r.Post("/api/auth/login", Login)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(config.Cfg.JWTSecret))
		r.Use(middleware.RequireAdmin)
		r.Get("/api/logs", GetServerLogs)
		r.Delete("/api/logs", ClearServerLogs)
	})
	return r
}

func setupLogFile(t *testing.T, lines []string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	prev := config.Cfg.LogPath
	config.Cfg.LogPath = path
	t.Cleanup(func() { config.Cfg.LogPath = prev })
}

func TestGetServerLogsTail(t *testing.T) {
	setupTest(t)
	setupLogFile(t, []string{"line 1", "line 2", "line 3"})
	h := logsRouter()
	token := registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/logs?lines=2", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["logs"] != "line 2\nline 3" {
		t.Errorf("logs = %q", body["logs"])
	}
}

func TestClearServerLogs(t *testing.T) {
	setupTest(t)
	setupLogFile(t, []string{"line 1"})
	h := logsRouter()
	token := registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodDelete, "/api/logs", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	data, err := os.ReadFile(config.Cfg.LogPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("log file not truncated: %q", data)
	}
}

func TestServerLogsRequireAdmin(t *testing.T) {
	setupTest(t)
	setupLogFile(t, []string{"line 1"})
	h := logsRouter()
	registerAndLogin(t, h)

	hash, err := auth.HashPassword("viewerpw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := database.CreateUser(&database.User{
		Username: "viewer", Email: "viewer@example.com", PasswordHash: hash,
	}); err != nil {
		t.Fatalf("create viewer: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "viewer", "password": "viewerpw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer login: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	rec = doJSON(t, h, http.MethodGet, "/api/logs", resp.Token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
}
