package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatrelay/relay/backend/internal/config"
	"github.com/chatrelay/relay/backend/internal/handlers"
	"github.com/chatrelay/relay/backend/internal/logger"
	"github.com/chatrelay/relay/backend/internal/metrics"
	"github.com/chatrelay/relay/backend/internal/services"
	"github.com/chatrelay/relay/backend/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration from .env, CONFIG_FILE and the environment
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	m := metrics.New()

	// The hub owns all chat state; everything else talks to it
	hub := websocket.NewHub(websocket.HubConfig{
		MaxHistory:       cfg.MaxHistory,
		NotificationIcon: cfg.NotificationIcon,
	}, m)
	go hub.Run()

	// Start background history sweeper
	cleanupService, err := services.NewCleanupService(hub, cfg.SweepCron, cfg.HistoryMaxAge)
	if err != nil {
		slog.Error("cleanup service not started", "error", err)
		os.Exit(1)
	}
	go cleanupService.Start()

	// Initialize handlers
	wsHandler := websocket.NewHandler(hub, websocket.ClientOptions{
		MaxFrameBytes:  cfg.MaxFrameBytes,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	messageHandler := handlers.NewMessageHandler(hub)
	userHandler := handlers.NewUserHandler(hub)

	r := newRouter(cfg, wsHandler, messageHandler, userHandler, m)

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("chat relay starting", "addr", addr, "maxHistory", cfg.MaxHistory, "corsOrigins", cfg.CORSOrigins)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt, then drain in reverse order of startup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	slog.Info("shutting down", "signal", sig.String())

	cleanupService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		slog.Warn("hub shutdown incomplete", "error", err)
	}
	slog.Info("chat relay stopped")
}

// newRouter wires the middleware stack and routes.
func newRouter(
	cfg *config.Config,
	wsHandler *websocket.Handler,
	messageHandler *handlers.MessageHandler,
	userHandler *handlers.UserHandler,
	m *metrics.Metrics,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS configuration - reads from CORS_ORIGINS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", handlers.HealthCheck)

	// Live chat
	r.Get("/ws", wsHandler.ServeWS)

	// Read-only API for polling clients
	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", messageHandler.GetMessages)
		r.Get("/users", userHandler.ListUsers)
	})

	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}
