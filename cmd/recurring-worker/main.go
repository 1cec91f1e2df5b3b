package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"paytrack/internal/backend"
	"paytrack/internal/config"
	"paytrack/internal/core"
	"paytrack/internal/services"
	"paytrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	result, err := backend.Build(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	recurrenceService := services.NewRecurrenceService(result.Store)

	// A zero asOf lets the sweeper follow the wall clock; the override
	// pins it for backfills.
	var asOf core.Date
	if cfg.AsOfDate != "" {
		asOf = cfg.AsOf()
	}
	sweeper := worker.NewSweeper(recurrenceService, cfg.SweepInterval, cfg.GenerateHorizonDays, asOf)

	logger.Info("Recurrence sweeper configured",
		"interval", cfg.SweepInterval,
		"horizon_days", cfg.GenerateHorizonDays,
		"as_of", cfg.AsOfDate,
		"backend", cfg.DataBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sweeper stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker stopped gracefully")
}
