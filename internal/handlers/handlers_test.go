package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelpanel/tunnelpanel/internal/auth"
	"github.com/tunnelpanel/tunnelpanel/internal/config"
	"github.com/tunnelpanel/tunnelpanel/internal/database"
	"github.com/tunnelpanel/tunnelpanel/internal/middleware"
	"github.com/tunnelpanel/tunnelpanel/internal/orchestrator"
	"github.com/tunnelpanel/tunnelpanel/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeSystem is a SystemAccountManager that always succeeds unless told
// otherwise.
type fakeSystem struct {
	createOK bool
	deleteOK bool
	lockOK   bool
}

func (f *fakeSystem) CreateAccount(context.Context, string, string) bool { return f.createOK }
func (f *fakeSystem) DeleteAccount(context.Context, string) bool         { return f.deleteOK }
func (f *fakeSystem) SetLocked(context.Context, string, bool) bool       { return f.lockOK }
func (f *fakeSystem) CountActiveSessions(context.Context, string) int    { return 0 }

type fakeServiceManager struct {
	status     services.Status
	enableErr  error
	disableErr error
}

func (f *fakeServiceManager) Enable(context.Context, string, int) error { return f.enableErr }
func (f *fakeServiceManager) Disable(context.Context, string, int, bool) error {
	return f.disableErr
}
func (f *fakeServiceManager) Status(context.Context, string) (services.Status, error) {
	return f.status, nil
}

// setupTest wires the handler package vars against a fresh in-memory store
// and fully-faked system side.
func setupTest(t *testing.T) *fakeSystem {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.SSHAccount{}, &database.Setting{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	prevDB := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prevDB })

	config.Cfg.JWTSecret = "test-secret"
	config.Cfg.AuthDisabled = false

	system := &fakeSystem{createOK: true, deleteOK: true, lockOK: true}
	Accounts = orchestrator.NewAccountOrchestrator(database.NewAccountStore(db), system)
	Gate = orchestrator.NewAdministratorGate(database.NewUserStore(db))
	Services = orchestrator.NewServiceToggleOrchestrator(&fakeServiceManager{status: services.StatusActive})
	Catalog = config.DefaultCatalog(443, 2222)
	return system
}

func testRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/auth/register-admin", RegisterAdmin)
	r.Post("/api/auth/login", Login)
	r.Get("/health", HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(config.Cfg.JWTSecret))
		r.Get("/api/auth/me", GetCurrentUser)
		r.Get("/api/ssh/accounts", ListAccounts)
		r.Post("/api/ssh/accounts", CreateAccount)
		r.Patch("/api/ssh/accounts/{username}/toggle", ToggleAccount)
		r.Delete("/api/ssh/accounts/{username}", DeleteAccount)
		r.Get("/api/services/{kind}/status", ServiceStatus)
		r.Post("/api/services/{kind}/enable", EnableService)
		r.Post("/api/services/{kind}/disable", DisableService)
	})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// registerAndLogin bootstraps the admin and returns a bearer token.
func registerAndLogin(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/auth/register-admin", "", map[string]string{
		"username": "admin", "email": "admin@example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	return resp.Token
}

func TestRegisterAdminOnceOnly(t *testing.T) {
	setupTest(t)
	h := testRouter()

	registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register-admin", "", map[string]string{
		"username": "second", "email": "second@example.com", "password": "pw",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	setupTest(t)
	h := testRouter()
	registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginTokenLastsSevenDays(t *testing.T) {
	setupTest(t)
	h := testRouter()
	token := registerAndLogin(t, h)

	claims, err := auth.VerifyToken(config.Cfg.JWTSecret, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < 7*24*time.Hour-time.Minute || ttl > 7*24*time.Hour {
		t.Errorf("token ttl = %v, want ~7 days", ttl)
	}
}

func TestGetCurrentUser(t *testing.T) {
	setupTest(t)
	h := testRouter()
	token := registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["username"] != "admin" || body["isAdmin"] != true {
		t.Errorf("unexpected body: %v", body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func accountPayload(username string) map[string]interface{} {
	return map[string]interface{}{
		"username":    username,
		"password":    "s3cret",
		"expiry_date": time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		"max_login":   2,
	}
}

func TestAccountLifecycle(t *testing.T) {
	setupTest(t)
	h := testRouter()
	token := registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/ssh/accounts", token, accountPayload("alice"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("s3cret")) {
		t.Error("plaintext password leaked into the create response")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/ssh/accounts", token, accountPayload("alice"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/ssh/accounts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 1 || list[0]["username"] != "alice" {
		t.Fatalf("unexpected list: %v", list)
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/ssh/accounts/alice/toggle", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var toggled map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &toggled)
	if toggled["is_active"] != false {
		t.Errorf("account should be inactive after toggle: %v", toggled)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/ssh/accounts/alice", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/ssh/accounts/alice", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: expected 404, got %d", rec.Code)
	}
}

func TestCreateAccountSystemFailure(t *testing.T) {
	system := setupTest(t)
	system.createOK = false
	h := testRouter()
	token := registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/ssh/accounts", token, accountPayload("alice"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/ssh/accounts", token, nil)
	var list []map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Errorf("no row should exist after a failed create: %v", list)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	setupTest(t)
	h := testRouter()
	token := registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/ssh/accounts", token, map[string]string{"username": "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServiceEndpoints(t *testing.T) {
	setupTest(t)
	h := testRouter()
	token := registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/services/stunnel/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "active" {
		t.Errorf("status = %q, want active", body["status"])
	}

	rec = doJSON(t, h, http.MethodPost, "/api/services/dropbear/enable", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("enable: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/services/openvpn/enable", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServiceEnableFailure(t *testing.T) {
	setupTest(t)
	Services = orchestrator.NewServiceToggleOrchestrator(&fakeServiceManager{
		enableErr: context.DeadlineExceeded,
	})
	h := testRouter()
	token := registerAndLogin(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/services/stunnel/enable", token, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	setupTest(t)
	h := testRouter()

	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "healthy" || body["database"] != "connected" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestAccountsRequireAuth(t *testing.T) {
	setupTest(t)
	h := testRouter()

	rec := doJSON(t, h, http.MethodGet, "/api/ssh/accounts", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
