package main

import (
	"context"
	"log/slog"
	"os"

	"budgetpro/internal/backend"
	"budgetpro/internal/cli"
	"budgetpro/internal/commands"
	"budgetpro/internal/config"
	"budgetpro/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()

	// Command output owns stdout.
	lvl := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentCLI,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	open := func(ctx context.Context) (*backend.BackendResult, error) {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, err
		}
		return backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
	}

	if err := commands.NewRootCommand(commands.Env{Config: cfg, Open: open}).Execute(); err != nil {
		os.Exit(1)
	}
}
