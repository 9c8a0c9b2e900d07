// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/millennialcircuit/launch-rsvp/internal/config"
	"github.com/millennialcircuit/launch-rsvp/internal/database"
	"github.com/millennialcircuit/launch-rsvp/internal/handler"
	"github.com/millennialcircuit/launch-rsvp/internal/logger"
	"github.com/millennialcircuit/launch-rsvp/internal/repository"
	"github.com/millennialcircuit/launch-rsvp/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger)
	slog.SetDefault(log)

	// ── 1. Connect to PostgreSQL and migrate ─────────────────────────────
	pool, err := database.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Error("database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.Migrate(pool); err != nil {
		log.Error("migrate", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres", "host", cfg.DB.Host, "db", cfg.DB.Name)

	// ── 2. Wire up layers ────────────────────────────────────────────────
	rsvpRepo := repository.NewRSVPRepository(pool, cfg.DB.QueryTimeout)
	ticketRepo := repository.NewTicketRepository(pool, cfg.DB.QueryTimeout)
	issuanceSvc := service.NewIssuanceService(rsvpRepo, ticketRepo, log, cfg.PublicBaseURL)
	rsvpHandler := handler.NewRSVPHandler(issuanceSvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.AccessLog(log))  // structured access log
	r.Use(handler.CORS)            // the SPA may be served from another origin

	r.Get("/health", handler.HealthCheck)
	r.Post("/api/rsvp", rsvpHandler.SubmitRSVP)
	r.Get("/ticket/{number}", rsvpHandler.GetTicket)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
