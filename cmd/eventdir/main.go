package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gatherhub/eventdir/config"
	"github.com/gatherhub/eventdir/internal/api"
	"github.com/gatherhub/eventdir/internal/database"
	"github.com/gatherhub/eventdir/internal/logger"
	"github.com/gatherhub/eventdir/internal/metrics"
	middlewares "github.com/gatherhub/eventdir/internal/middleware"
	"github.com/gatherhub/eventdir/internal/pipeline"
	"github.com/gatherhub/eventdir/internal/platform"
	"github.com/gatherhub/eventdir/internal/snapshot"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting eventdir aggregation service",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
		"groups", len(cfg.Groups),
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database (optional snapshot persistence tier)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	// Initialize snapshot store with the configured durable backend
	backend, err := snapshot.NewBackend(ctx, db, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize snapshot backend", "error", err)
	}
	store := snapshot.New(backend)
	if err := store.Restore(ctx); err != nil {
		logger.Warn("Failed to restore snapshot from backend", "error", err)
	}

	// Initialize the aggregation pipeline
	registry := platform.NewRegistry(cfg.Platforms, cfg.Pipeline)
	orchestrator := pipeline.NewOrchestrator(registry, cfg.Pipeline)
	runner := pipeline.NewRunner(orchestrator, store, cfg.Groups)
	scheduler := pipeline.NewScheduler(runner, cfg.Pipeline.SyncInterval)

	// Start scheduler in background
	go func() {
		if err := scheduler.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("Scheduler error", "error", err)
		}
	}()

	// Setup HTTP server
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)

	// Initialize API handlers
	apiHandler := api.NewHandler(store, scheduler, registry.Kinds(), cfg.Groups, cfg.Admin.AdminSecret, Version, BuildTime, GitCommit)
	apiHandler.RegisterRoutes(r)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
