package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"merchant-panel-service/internal/clients"
	"merchant-panel-service/internal/config"
	"merchant-panel-service/internal/events"
	"merchant-panel-service/internal/handlers"
	"merchant-panel-service/internal/jobs"
	"merchant-panel-service/internal/metrics"
	"merchant-panel-service/internal/middleware"
	"merchant-panel-service/internal/models"
	"merchant-panel-service/internal/repository"
	"merchant-panel-service/internal/services"
)

// @title Merchant Panel API
// @version 1.0.0
// @description Backend for the merchant panel coupon editor and multi-location inventory editor

// @host localhost:8095
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()
	if cfg.LogLevel != "" {
		if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(level)
		}
	}

	healthChecks := map[string]handlers.Pinger{}

	// Initialize database (audit trail). Only production refuses to start without it.
	var auditRepo repository.AuditRepositoryInterface = repository.NoopAuditRepository{}
	db, err := config.InitDB(cfg)
	if err != nil {
		if cfg.IsProduction() {
			logger.Fatal("Failed to connect to database:", err)
		}
		logger.Warnf("Failed to connect to database: %v. Inventory save audit is disabled.", err)
	} else {
		logger.Info("Running database migrations...")
		if err := db.AutoMigrate(&models.InventorySaveRecord{}); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Info("Database migrations completed")

		auditRepo = repository.NewAuditRepository(db)
		if sqlDB, err := db.DB(); err == nil {
			healthChecks["database"] = handlers.PingFunc(sqlDB.PingContext)
		}
	}

	// Initialize metrics
	m := metrics.New()

	// Initialize session store (Redis when configured, in-memory otherwise)
	var sessionStore repository.SessionStore
	var sweeper *jobs.SessionSweeper
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		sessionStore = repository.NewRedisSessionStore(redisClient)
		logger.Info("Using Redis session store")
	} else {
		memoryStore := repository.NewMemorySessionStore()
		sessionStore = memoryStore
		sweeper = jobs.NewSessionSweeper(memoryStore, m, logger, cfg.SweepInterval)
		logger.Info("REDIS_URL not configured, using in-memory session store")
	}
	healthChecks["sessions"] = sessionStore

	// Initialize event publisher (optional - service works without NATS)
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warnf("Failed to initialize event publisher: %v. Events will not be published.", err)
		} else {
			publisher = natsPublisher
			logger.Info("Event publisher initialized")
		}
	} else {
		logger.Info("NATS_URL not configured, event publishing disabled")
	}
	defer publisher.Close()

	// Initialize platform client
	platformClient := clients.NewPlatformClient(clients.PlatformClientOptions{
		BaseURL: cfg.PlatformAPIURL,
		Timeout: cfg.PlatformAPITimeout,
		RPS:     cfg.PlatformAPIRPS,
		Burst:   cfg.PlatformAPIBurst,
		Retry:   clients.DefaultRetryConfig(),
	})

	// Initialize services
	couponService := services.NewCouponService(platformClient, publisher, m, logger)
	inventoryService := services.NewInventoryService(platformClient, sessionStore, auditRepo, publisher, m, logger,
		services.InventoryServiceConfig{
			SessionTTL:      cfg.SessionTTL,
			SaveConcurrency: cfg.SaveConcurrency,
		})

	// Initialize handlers
	pages := handlers.PageLimits{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize}
	healthHandler := handlers.NewHealthHandler(healthChecks)
	couponHandler := handlers.NewCouponHandler(couponService, pages, logger)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, pages, logger)

	// Start session sweeper
	jobCtx, jobCancel := context.WithCancel(context.Background())
	if sweeper != nil {
		go sweeper.Start(jobCtx)
	}

	// Initialize Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	router.Use(m.Middleware())

	// Health check endpoints (no auth required)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/metrics", m.Handler())

	// Protected API routes
	api := router.Group("/api/v1")
	if cfg.JWTSecret != "" {
		api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	} else if cfg.IsProduction() {
		logger.Fatal("JWT_SECRET is required in production")
	} else {
		api.Use(middleware.DevelopmentAuthMiddleware())
		logger.Warn("JWT_SECRET not configured, using development auth middleware")
	}
	api.Use(middleware.MerchantMiddleware())
	api.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))

	// Coupon endpoints
	coupons := api.Group("/coupons")
	{
		coupons.GET("", couponHandler.ListCoupons)
		coupons.GET("/:id", couponHandler.GetCoupon)
		coupons.PATCH("/:id", couponHandler.UpdateCoupon)
		coupons.PATCH("/:id/status", couponHandler.UpdateCouponStatus)
	}

	// Inventory endpoints
	inventory := api.Group("/inventory")
	{
		inventory.GET("/history", inventoryHandler.GetHistory)

		sessions := inventory.Group("/sessions")
		sessions.POST("", inventoryHandler.OpenSession)
		sessions.GET("/:id", inventoryHandler.GetSession)
		sessions.DELETE("/:id", inventoryHandler.CloseSession)
		sessions.POST("/:id/reload", inventoryHandler.ReloadSession)
		sessions.PATCH("/:id/locations/:locationId", inventoryHandler.EditQuantity)
		sessions.GET("/:id/changes", inventoryHandler.GetChanges)
		sessions.POST("/:id/save", inventoryHandler.SaveSession)
		sessions.POST("/:id/cancel", inventoryHandler.CancelEdits)
		sessions.GET("/:id/export", inventoryHandler.ExportSession)
		sessions.POST("/:id/import", inventoryHandler.ImportQuantities)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Merchant panel service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	jobCancel()
	if sweeper != nil {
		sweeper.Stop()
	}

	logger.Info("Server shutdown complete")
}
