// Command orchestrator runs the session wave scheduler and its HTTP API,
// grounded in the teacher's cmd/tarsy/main.go wiring order: load env, load
// config, connect the database, construct services bottom-up, start the
// worker pool, then serve HTTP until signalled to stop.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/sessionwave/orchestrator/internal/aigen"
	"github.com/sessionwave/orchestrator/internal/api"
	"github.com/sessionwave/orchestrator/internal/config"
	"github.com/sessionwave/orchestrator/internal/events"
	"github.com/sessionwave/orchestrator/internal/modeltier"
	"github.com/sessionwave/orchestrator/internal/store"
	"github.com/sessionwave/orchestrator/internal/storedb"
	"github.com/sessionwave/orchestrator/internal/versionstore"
	"github.com/sessionwave/orchestrator/internal/wave"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, continuing with existing environment")
	}

	logHandler := newLogHandler()
	log := slog.New(logHandler)
	slog.SetDefault(log)

	gin.SetMode(getEnv("GIN_MODE", "release"))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storedb.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Error("connect database", "error", err)
		os.Exit(2)
	}
	defer db.Close()
	log.Info("connected to database and applied migrations")

	sessions := store.NewSessionRepo(db.DB)
	patients := store.NewPatientRepo(db.DB)
	logs := store.NewProcessingLogRepo(db.DB)
	costs := store.NewCostRepo(db.DB)
	eventRepo := store.NewEventRepo(db.DB)
	versions := versionstore.New(db.DB)

	publisher := events.NewPublisher(eventRepo, log)
	sseHandler := events.NewSSEHandler(eventRepo, log, cfg.Events.PollInterval, cfg.Events.KeepAliveInterval)
	sweeper := events.NewSweeper(eventRepo, log, cfg.Events.SweepInterval, cfg.Events.SweepTTL)
	go sweeper.Run(ctx)

	resolver := modeltier.New(cfg.Tier, cfg.Models)
	transport := aigen.NewHTTPTransport(cfg.AIGatewayURL, cfg.AIGatewayAPIKey)
	genBase := aigen.NewBase(transport, resolver, wave.NewCostRecorder(costs))

	orchestrator := wave.NewOrchestrator(sessions, logs, publisher, genBase, versions, cfg.Queue, cfg.Compaction, log)
	pool := wave.NewWorkerPool(sessions, orchestrator, cfg.Queue, db, log)
	pool.Start(ctx)

	server := api.New(db, sessions, patients, logs, eventRepo, versions, pool, sseHandler, publisher,
		cfg.Queue.GracefulShutdownTimeout, log)

	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", "error", err)
	}
	pool.Stop()
	log.Info("shutdown complete")
}

// newLogHandler selects JSON logging in production and text logging in
// development, the way the teacher selects Gin's mode from GIN_MODE
// (SPEC_FULL §2 ambient logging section).
func newLogHandler() slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if getEnv("GIN_MODE", "release") == "release" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
