// Insurance onboarding chat server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/onboard-chat/internal/api"
	"github.com/ashureev/onboard-chat/internal/app"
	"github.com/ashureev/onboard-chat/internal/config"
	"github.com/ashureev/onboard-chat/internal/middleware"
	"github.com/ashureev/onboard-chat/internal/retention"
	"github.com/ashureev/onboard-chat/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "llm_provider", cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("Failed to close service", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "path", cfg.DBPath)

	if svc.ProviderName == "none" {
		slog.Warn("No LLM provider configured, replies will use fixed prompts")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	// Initialize handlers.
	handler := api.NewHandler(svc.Orchestrator, logger)
	healthHandler := api.NewHealthHandler(svc.Store, 5*time.Second)
	wsHandler := api.NewWebSocketHandler(svc.Orchestrator, cfg.CORSOrigins, cfg.IsDevelopment(), logger).
		LimitMessages(limiter)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	healthHandler.RegisterHealth(r)
	handler.RegisterRoutes(r, middleware.RateLimit(limiter))
	r.With(middleware.RateLimit(limiter)).Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve the embedded browser client.
	r.Handle("/chat", http.RedirectHandler("/chat/", http.StatusMovedPermanently))
	r.Handle("/chat/*", web.ChatHandler("/chat"))

	// WebSocket chats are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start retention worker.
	var retentionDone <-chan struct{}
	if cfg.Retention.TTL > 0 {
		worker := retention.NewWorker(svc.Orchestrator, cfg.Retention.TTL, cfg.Retention.Interval, logger)
		retentionDone = worker.Start(ctx)
	} else {
		slog.Info("Retention worker disabled (RETENTION_TTL not set)")
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if retentionDone != nil {
		<-retentionDone
	}

	slog.Info("Server stopped successfully")
}
