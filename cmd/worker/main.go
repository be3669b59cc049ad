package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"localnotify/internal/app"
	"localnotify/internal/config"
	"localnotify/internal/domain/notification"
	"localnotify/internal/infra/queue"

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

	slog.Info("worker configuration loaded", "store", cfg.Store.Driver)

	if cfg.Store.Driver == config.DriverMemory {
		slog.Error("the memory store lives inside the server process; run the server alone or pick another store driver")
		os.Exit(1)
	}

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Host notification center
	backend, closeBackend, err := app.OpenBackend(cfg)
	if err != nil {
		slog.Error("failed to initialize notification center", "error", err, "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	defer closeBackend()
	slog.Info("notification center initialized", "driver", cfg.Store.Driver)

	loc, err := cfg.Engine.TimeLocation()
	if err != nil {
		slog.Error("invalid engine configuration", "error", err)
		os.Exit(1)
	}
	calc := notification.NewCalculator(loc)

	// Asynq Client (for arming next occurrences)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()

	dispatcher := queue.NewDispatcher(asynqClient, nil, cfg.Queue.MaxRetry)

	// Delivery Worker
	deliveryWorker := notification.NewWorker(backend, backend, dispatcher, calc,
		notification.WithWorkerEvents(app.Events(backend)),
	)

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDeliverNotification, queue.HandleDeliver(deliveryWorker))

	// Start the asynq worker in a goroutine
	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Delivery Sweeper
	// ==========================================

	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	sweeper := notification.NewSweeper(backend, dispatcher, calc, notification.SweeperConfig{
		Interval:  cfg.Sweeper.Interval(),
		BatchSize: cfg.Sweeper.BatchSize,
	})

	go sweeper.Run(sweeperCtx)

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	sweeperCancel() // Stop the sweeper first
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
