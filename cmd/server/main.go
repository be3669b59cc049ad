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

	"localnotify/internal/app"
	"localnotify/internal/config"
	"localnotify/internal/domain/notification"
	"localnotify/internal/infra/queue"
	"localnotify/internal/router"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	app.SetupLogger(cfg.Log)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"store", cfg.Store.Driver,
	)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Host notification center
	center, closeCenter, err := app.OpenBackend(cfg)
	if err != nil {
		slog.Error("failed to initialize notification center", "error", err, "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	defer closeCenter()
	slog.Info("notification center initialized", "driver", cfg.Store.Driver)

	// Asynq Client + Inspector (for arming and revoking deliveries)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	inspector := queue.NewInspector(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer inspector.Close()
	slog.Info("asynq client initialized", "redis", cfg.Redis.Address)

	dispatcher := queue.NewDispatcher(asynqClient, inspector, cfg.Queue.MaxRetry)

	// Service
	opts, err := app.EngineOptions(cfg.Engine)
	if err != nil {
		slog.Error("invalid engine configuration", "error", err)
		os.Exit(1)
	}
	opts = append(opts,
		notification.WithDispatcher(dispatcher),
		notification.WithEvents(app.Events(center)),
	)
	notificationService := notification.NewService(center, opts...)

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = notificationService.Init(initCtx)
	initCancel()
	if err != nil {
		slog.Error("failed to initialize notification engine", "error", err)
		os.Exit(1)
	}

	// The memory center lives in this process, so deliveries must be
	// processed here as well.
	stopEmbedded := func() {}
	if cfg.Store.Driver == config.DriverMemory {
		stopEmbedded = startEmbeddedWorker(cfg, center, dispatcher, notificationService.Calculator())
	}

	// Handler
	notificationHandler := notification.NewHandler(notificationService)

	// Router
	r := router.New(cfg, notificationHandler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	stopEmbedded()

	slog.Info("server exited gracefully")
}

func startEmbeddedWorker(cfg *config.Config, backend app.Backend, dispatcher notification.Dispatcher, calc notification.Calculator) (stop func()) {
	worker := notification.NewWorker(backend, backend, dispatcher, calc,
		notification.WithWorkerEvents(app.Events(backend)),
	)

	srv := queue.NewServer(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Queue.Concurrency)
	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDeliverNotification, queue.HandleDeliver(worker))

	go func() {
		slog.Info("embedded delivery worker starting", "concurrency", cfg.Queue.Concurrency)
		if err := srv.Run(mux); err != nil {
			slog.Error("embedded delivery worker failed", "error", err)
			os.Exit(1)
		}
	}()

	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	sweeper := notification.NewSweeper(backend, dispatcher, calc, notification.SweeperConfig{
		Interval:  cfg.Sweeper.Interval(),
		BatchSize: cfg.Sweeper.BatchSize,
	})
	go sweeper.Run(sweeperCtx)

	return func() {
		sweeperCancel()
		srv.Shutdown()
	}
}
