// Chatflow - real-time chat relay server
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

	"github.com/ashureev/chatflow/internal/api"
	"github.com/ashureev/chatflow/internal/config"
	"github.com/ashureev/chatflow/internal/hub"
	"github.com/ashureev/chatflow/internal/middleware"
	"github.com/ashureev/chatflow/internal/relay"
	"github.com/ashureev/chatflow/internal/responder"
	"github.com/ashureev/chatflow/internal/scheduler"
	"github.com/ashureev/chatflow/internal/store"
	"github.com/ashureev/chatflow/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

const streamKeepalive = 10 * time.Second

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
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
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

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
	slog.Info("Database connected", "path", cfg.DBPath)

	// Relay pipeline.
	clients := hub.New(cfg.SendBuffer, logger)
	sched := scheduler.New(cfg.ReplyDelayMin, cfg.ReplyDelayMax, logger)
	rl := relay.New(repo, clients, sched, responder.New(), relay.Config{
		BotSender:    cfg.BotSender,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
	})
	clients.OnInbound(rl.HandleInbound)

	// Handlers.
	messagesHandler := api.NewMessagesHandler(repo)
	healthHandler := api.NewHealthHandler(repo, clients, cfg.StoreTimeout)
	wsHandler := hub.NewWebSocketHandler(clients, cfg.FrontendURL, cfg.IsDevelopment())
	streamHandler := hub.NewStreamHandler(clients, streamKeepalive)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterHealth(r)
	messagesHandler.RegisterRoutes(r)
	r.Get("/api/stream", streamHandler.ServeHTTP)
	r.Get("/ws", wsHandler.ServeHTTP)

	r.Handle("/*", web.SPAHandler())

	// Streaming connections need no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	clients.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Pending replies still need the database.
	if err := sched.Wait(shutdownCtx); err != nil {
		slog.Warn("Pending replies abandoned", "pending", sched.Pending(), "error", err)
	}

	slog.Info("Server stopped successfully")
}
