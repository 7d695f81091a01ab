package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/cityride/dispatch/internal/api/handlers"
	"github.com/cityride/dispatch/internal/api/middleware"
	"github.com/cityride/dispatch/internal/api/routes"
	"github.com/cityride/dispatch/internal/config"
	"github.com/cityride/dispatch/internal/domain/ride"
	"github.com/cityride/dispatch/internal/domain/user"
	"github.com/cityride/dispatch/internal/identity"
	"github.com/cityride/dispatch/internal/service/lifecycle"
	"github.com/cityride/dispatch/internal/storage/memory"
	"github.com/cityride/dispatch/internal/storage/postgres"
	"github.com/cityride/dispatch/pkg/cache"
	"github.com/cityride/dispatch/pkg/database"
	"github.com/cityride/dispatch/pkg/logger"
	"github.com/cityride/dispatch/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting CityRide dispatch service",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
		logger.String("storage", cfg.Storage.Driver),
	)

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize Redis (optional; the service degrades to uncached reads)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cache.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
			ReadTimeout: cfg.Redis.ReadTimeout,
		})
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", logger.Err(err))
			redisClient = nil
		} else {
			defer cache.Close(redisClient)
			appLogger.Info("Connected to Redis successfully")
		}
	}

	// Repositories are constructed once here and injected; nothing else
	// ever opens a connection.
	var rideRepo ride.Repository
	var userRepo user.Repository

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.NewPostgresDB(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
			MaxIdle:  cfg.Database.MaxIdle,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
		}
		defer db.Close()
		appLogger.Info("Connected to PostgreSQL successfully")

		rideRepo = postgres.NewRideRepository(db)
		userRepo = postgres.NewUserRepository(db)
	case "memory":
		appLogger.Warn("Using in-memory storage; all data is lost on shutdown")
		rideRepo = memory.NewRideRepository()
		userRepo = memory.NewUserRepository()
	}

	// Core service and identity wiring
	tokens := identity.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	svc := lifecycle.New(rideRepo, userRepo, redisClient, cfg.Cache.TTLPendingRides, appLogger)
	auth := middleware.NewAuth(tokens, userRepo, redisClient, cfg.Cache.TTLBlockedFlags, appLogger)
	h := handlers.NewHandlers(svc, userRepo, tokens, redisClient, appLogger)

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	if nrApp.IsEnabled() {
		routes.SetupRoutes(router, h, auth, nrApp.Application)
	} else {
		routes.SetupRoutes(router, h, auth, nil)
	}

	appLogger.Info("Routes configured successfully")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}
