package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/learning-progress-service/internal/cache"
	"github.com/SAP-F-2025/learning-progress-service/internal/config"
	"github.com/SAP-F-2025/learning-progress-service/internal/handlers"
	"github.com/SAP-F-2025/learning-progress-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learning-progress-service/internal/services"
	"github.com/SAP-F-2025/learning-progress-service/internal/utils"
	"github.com/SAP-F-2025/learning-progress-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := utils.NewLogger(cfg.Environment)
	slogLogger := utils.ToSlogLogger(appLogger)

	appLogger.Info("Starting learning progress service",
		"environment", cfg.Environment,
		"port", cfg.Port,
	)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	repo := postgres.NewRepository(db)

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	cacheService := cache.NewRedisCache(redisClient, slogLogger)

	publisher, err := cfg.Events.CreateEventPublisher(slogLogger)
	if err != nil {
		log.Fatalf("Failed to create event publisher: %v", err)
	}
	defer publisher.Close()

	validator := utils.NewValidator()

	serviceManager := services.NewServiceManager(
		repo,
		slogLogger,
		validator,
		cacheService,
		publisher,
		services.NewRuleBasedInsightGenerator(),
		utils.NewSystemClock(),
		cfg.ExportDir,
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(appLogger))
	router.Use(handlers.RequestIDMiddleware())

	auth := handlers.AuthMiddleware(handlers.NewTokenParser(cfg.Auth), cfg.Auth.Enabled)
	handlerManager := handlers.NewHandlerManager(serviceManager, validator, appLogger)
	handlerManager.SetupRoutes(router, auth)

	go runSessionReaper(ctx, serviceManager.Analytics(), cfg.Reaper, appLogger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		appLogger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	appLogger.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown error", "error", err)
	}

	cancel()
	appLogger.Info("Learning progress service stopped")
}

// runSessionReaper periodically closes learning sessions abandoned without an
// explicit end event, stamping their end at the last recorded activity.
func runSessionReaper(ctx context.Context, analytics services.AnalyticsService, cfg config.ReaperConfig, logger utils.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := analytics.CloseIdleSessions(ctx, cfg.IdleCutoff, cfg.BatchLimit)
			if err != nil {
				logger.Error("Idle session sweep failed", "error", err)
				continue
			}
			if closed > 0 {
				logger.Info("Idle session sweep finished", "closed", closed)
			}
		}
	}
}
