package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetpro/internal/cli"
	apphttp "budgetpro/internal/http"
	"budgetpro/internal/log"
	"budgetpro/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	// Sync requests go to the queue when one is configured; sync-worker runs them.
	backend := cli.InitBackend(context.Background(), logger, cfg, true)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Items:          backend.Items,
		Accounts:       backend.Accounts,
		Query:          backend.Query,
		Mutation:       backend.Mutation,
		Budgets:        backend.Budgets,
		Reconciliation: backend.Reconciliation,
		Ready:          backend.Ready,
	}, logger.WithComponent(log.ComponentHTTP))
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	scheduler := services.NewSyncScheduler(backend.Items, services.SyncSchedulerConfig{
		Interval:    cfg.SyncInterval,
		Concurrency: cfg.SyncConcurrency,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Error("Scheduler shutdown error", log.FieldError, err)
		}
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start sync scheduler", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting budgetpro server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"provider", cfg.Provider,
		"queue", cfg.QueueEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
