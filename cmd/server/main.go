// Siteline - Luminova Studio marketing site backend
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

	"github.com/luminova-studio/siteline/internal/api"
	"github.com/luminova-studio/siteline/internal/chat"
	"github.com/luminova-studio/siteline/internal/config"
	"github.com/luminova-studio/siteline/internal/conversation"
	"github.com/luminova-studio/siteline/internal/game"
	"github.com/luminova-studio/siteline/internal/identity"
	"github.com/luminova-studio/siteline/internal/middleware"
	"github.com/luminova-studio/siteline/internal/oracle"
	"github.com/luminova-studio/siteline/internal/store"
	"github.com/luminova-studio/siteline/internal/submit"
	"github.com/luminova-studio/siteline/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize services.
	completionOracle := oracle.NewOpenAIOracle(cfg.Oracle)
	if cfg.Oracle.APIKey == "" {
		slog.Info("Completion oracle disabled (OPENAI_API_KEY not set), fallback replies only")
	}

	submitter := submit.NewService(cfg.Relay, repo)

	engine := conversation.NewEngine(completionOracle, submitter, cfg.SupportEmail)
	chatMgr := conversation.NewManager(engine, repo, cfg.IdleNudgeDelay)
	gameMgr := game.NewManager(repo)

	registry := chat.NewRegistry()
	wsHandler := chat.NewWebSocketHandler(repo, chatMgr, registry, cfg.FrontendURL, cfg.IsDevelopment())
	chatMgr.SetNotifier(wsHandler.Notifier())

	// Initialize handlers.
	rateLimiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	chatHandler := api.NewChatHandler(chatMgr, rateLimiter)
	gameHandler := api.NewGameHandler(gameMgr)
	scheduleHandler := api.NewScheduleHandler(submitter)
	meHandler := api.NewMeHandler(repo)
	healthHandler := api.NewHealthHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{cfg.FrontendURL}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// All routes use identity middleware (no auth needed).
	meHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)
	gameHandler.RegisterRoutes(r)
	scheduleHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	// Start session sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conversation.StartSweeper(ctx, repo, chatMgr, cfg.ChatSessionTTL, gameMgr)
	slog.Info("Session sweeper started", "session_ttl", cfg.ChatSessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
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
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
