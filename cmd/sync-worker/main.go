package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetpro/internal/cli"
	"budgetpro/internal/log"
	"budgetpro/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting sync-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.QueueEnabled() {
		logger.Error("sync-worker requires AMQP_URL")
		os.Exit(1)
	}

	// The worker consumes requests, it never publishes them.
	backend := cli.InitBackend(context.Background(), logger, cfg, false)
	if backend.Queue == nil {
		logger.Error("AMQP client unavailable")
		backend.Cleanup()
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(backend.Items, cfg.SyncStaleAfter)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	// Catch up on items whose queued requests may have been lost.
	logger.Info("Performing startup sync check...")
	if n, err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	} else {
		logger.Info("Startup sync check finished", "synced", n)
	}

	if err := backend.Queue.ConsumeSyncRequests(ctx, syncWorker.HandleSyncRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		backend.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
