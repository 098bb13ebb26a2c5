package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tunnelpanel/tunnelpanel/internal/auth"
	"github.com/tunnelpanel/tunnelpanel/internal/config"
	"github.com/tunnelpanel/tunnelpanel/internal/database"
	"github.com/tunnelpanel/tunnelpanel/internal/expiry"
	"github.com/tunnelpanel/tunnelpanel/internal/handlers"
	"github.com/tunnelpanel/tunnelpanel/internal/logging"
	"github.com/tunnelpanel/tunnelpanel/internal/middleware"
	"github.com/tunnelpanel/tunnelpanel/internal/orchestrator"
	"github.com/tunnelpanel/tunnelpanel/internal/services"
	"github.com/tunnelpanel/tunnelpanel/internal/stats"
	"github.com/tunnelpanel/tunnelpanel/internal/sysuser"
)

func main() {
	// Handle CLI commands before starting the server
	if len(os.Args) > 1 && os.Args[1] == "--create-admin" {
		runCreateAdmin()
		return
	}

	config.Load()
	logging.Init()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	jwtSecret := config.Cfg.JWTSecret
	if jwtSecret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatalf("Generate JWT secret: %v", err)
		}
		jwtSecret = hex.EncodeToString(buf)
		config.Cfg.JWTSecret = jwtSecret
		log.Println("WARNING: no JWT secret configured, generated an ephemeral one; tokens will not survive a restart")
	}

	catalog, err := config.LoadCatalog(config.Cfg.ServiceCatalogPath,
		config.DefaultCatalog(config.Cfg.StunnelPort, config.Cfg.DropbearPort))
	if err != nil {
		log.Fatalf("Service catalog: %v", err)
	}

	cmdTimeout, err := time.ParseDuration(config.Cfg.CommandTimeout)
	if err != nil {
		cmdTimeout = 30 * time.Second
	}
	runner := sysuser.NewExecRunner(cmdTimeout, config.Cfg.UseSudo)

	systemMgr := sysuser.NewManager(runner)
	serviceMgr := services.NewManager(runner, catalog)
	accountStore := database.NewAccountStore(database.DB)
	userStore := database.NewUserStore(database.DB)

	handlers.Accounts = orchestrator.NewAccountOrchestrator(accountStore, systemMgr)
	handlers.Services = orchestrator.NewServiceToggleOrchestrator(serviceMgr)
	handlers.Gate = orchestrator.NewAdministratorGate(userStore)
	handlers.Stats = stats.NewCollector(runner)
	handlers.Catalog = catalog

	sweeper := expiry.NewSweeper(accountStore, handlers.Accounts)
	if err := sweeper.Start(config.Cfg.ExpirySweepSchedule); err != nil {
		log.Fatalf("Expiry sweep: %v", err)
	}
	defer sweeper.Stop()

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Health (no auth)
	r.Get("/health", handlers.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Auth endpoints (no auth required)
		r.Post("/auth/register-admin", handlers.RegisterAdmin)
		r.Post("/auth/login", handlers.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtSecret))

			r.Get("/auth/me", handlers.GetCurrentUser)

			r.Get("/ssh/accounts", handlers.ListAccounts)
			r.Post("/ssh/accounts", handlers.CreateAccount)
			r.Patch("/ssh/accounts/{username}/toggle", handlers.ToggleAccount)
			r.Delete("/ssh/accounts/{username}", handlers.DeleteAccount)

			r.Get("/services/{kind}/status", handlers.ServiceStatus)
			r.Post("/services/{kind}/enable", handlers.EnableService)
			r.Post("/services/{kind}/disable", handlers.DisableService)

			r.Get("/stats/server", handlers.ServerStats)
			r.Get("/stats/ports", handlers.PortStats)

			r.Get("/console", handlers.ConsoleWS)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/logs", handlers.GetServerLogs)
				r.Delete("/logs", handlers.ClearServerLogs)
			})
		})
	})

	// Dashboard static files
	if info, err := os.Stat(config.Cfg.PublicDir); err == nil && info.IsDir() {
		fileServer := http.FileServer(http.Dir(config.Cfg.PublicDir))
		r.NotFound(fileServer.ServeHTTP)
	}

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func runCreateAdmin() {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email")
	password := fs.String("password", "", "Password")
	fs.Parse(os.Args[2:])

	if *username == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "Usage: tunnelpanel --create-admin --username <user> --email <email> --password <pass>")
		os.Exit(1)
	}

	config.Load()
	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := &database.User{
		Username:     *username,
		Email:        *email,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := database.CreateUser(user); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	fmt.Printf("Admin user '%s' created successfully.\n", *username)
}
