package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brandonolsen23/cleo-pipeline/internal/config"
	"github.com/brandonolsen23/cleo-pipeline/internal/database"
	"github.com/brandonolsen23/cleo-pipeline/internal/geocode"
	"github.com/brandonolsen23/cleo-pipeline/internal/handlers"
	"github.com/brandonolsen23/cleo-pipeline/internal/ingest"
	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/middleware"
	"github.com/brandonolsen23/cleo-pipeline/internal/nar"
	"github.com/brandonolsen23/cleo-pipeline/internal/repository"
	"github.com/brandonolsen23/cleo-pipeline/internal/services"
	"github.com/brandonolsen23/cleo-pipeline/internal/vcache"
)

const (
	shutdownTimeout = 30 * time.Second
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
	log.Info("Starting Cleo pipeline API", map[string]interface{}{
		"version":     "0.1.0",
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
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
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check and metrics routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize repository layer
	propertyRepo := repository.NewPropertyRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	// Geocoding gateway
	geoClient := geocode.NewClient(cfg.Geocoding.APIKey, geocode.ClientOptions{
		CallDelay:   cfg.Geocoding.CallDelay,
		MaxAttempts: cfg.Geocoding.MaxAttempts,
		Backoff:     cfg.Geocoding.Backoff,
	}, log)
	gateway := geocode.NewGateway(geoClient, geoClient, geoClient, cfg.Geocoding.Region, log)

	// Reference validator backed by the persistent cache
	validationCache := vcache.New(cacheRepo, log)
	if err := validationCache.SyncEntryCount(ctx); err != nil {
		log.Warn("Failed to sync cache entry gauge", map[string]interface{}{
			"error": err.Error(),
		})
	}
	referenceStore := nar.NewPostgresReferenceStore(db)
	validator := nar.NewValidator(referenceStore, validationCache, log)

	// Initialize service layer
	pipeline := ingest.NewPipeline(propertyRepo, queueRepo, gateway, log)
	opsService := services.NewOpsService(queueRepo, propertyRepo, statsRepo, log)

	// Initialize handlers
	pipelineHandler := handlers.NewPipelineHandler(pipeline, gateway, validator)
	opsHandler := handlers.NewOpsHandler(opsService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/ingest", pipelineHandler.Ingest)
		v1.POST("/ingest/batch", pipelineHandler.IngestBatch)
		v1.POST("/resolve", pipelineHandler.Resolve)
		v1.POST("/validate", pipelineHandler.Validate)

		queue := v1.Group("/queue")
		{
			queue.GET("/status", opsHandler.GetQueueStatus)
			queue.POST("/requeue-stale", opsHandler.RequeueStale)
			queue.POST("/enqueue", opsHandler.Enqueue)
		}

		v1.GET("/stats/daily", opsHandler.GetDailyStats)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
