package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brandonolsen23/cleo-pipeline/internal/alert"
	"github.com/brandonolsen23/cleo-pipeline/internal/config"
	"github.com/brandonolsen23/cleo-pipeline/internal/database"
	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/nar"
	"github.com/brandonolsen23/cleo-pipeline/internal/repository"
	"github.com/brandonolsen23/cleo-pipeline/internal/vcache"
	"github.com/brandonolsen23/cleo-pipeline/internal/worker"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting validation worker", map[string]interface{}{
		"version":       "0.1.0",
		"environment":   cfg.Server.Env,
		"batch_size":    cfg.Worker.BatchSize,
		"poll_interval": cfg.Worker.PollInterval.String(),
	})

	// Create database connection pool
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
	})

	// Initialize repository layer
	propertyRepo := repository.NewPropertyRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	// Reference validator backed by the persistent cache
	validationCache := vcache.New(cacheRepo, log)
	if err := validationCache.SyncEntryCount(ctx); err != nil {
		log.Warn("Failed to sync cache entry gauge", map[string]interface{}{
			"error": err.Error(),
		})
	}
	referenceStore := nar.NewPostgresReferenceStore(db)
	validator := nar.NewValidator(referenceStore, validationCache, log)

	// Outbound alerting
	notifier, err := alert.NewNotifier(cfg.Alerts.Enabled, cfg.Alerts.URLs, log)
	if err != nil {
		log.Fatal("Failed to configure alert notifier", err, nil)
	}

	service := worker.NewService(queueRepo, propertyRepo, validator, statsRepo, notifier, cfg.Worker, log)

	// Run blocks until the context is canceled by SIGINT or SIGTERM. The
	// in-flight batch is drained before it returns.
	if err := service.Run(ctx); err != nil {
		log.Error("Worker stopped with error", err, nil)
		os.Exit(1)
	}

	log.Info("Worker exited", nil)
}
