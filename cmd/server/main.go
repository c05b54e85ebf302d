package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/config"
	"github.com/skymarket/skymarket-backend/internal/database"
	"github.com/skymarket/skymarket-backend/internal/handlers"
	"github.com/skymarket/skymarket-backend/internal/middleware"
	"github.com/skymarket/skymarket-backend/internal/models"
	"github.com/skymarket/skymarket-backend/internal/realtime"
	"github.com/skymarket/skymarket-backend/internal/services"
	"github.com/skymarket/skymarket-backend/monitoring"
	"github.com/skymarket/skymarket-backend/pkg/jwt"
	"github.com/skymarket/skymarket-backend/pkg/payments"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SkyMarket Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize Redis (realtime event fan-out)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, realtime notifications degraded")
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	gateway := payments.NewStripeGateway(cfg.Payment.SecretKey, cfg.Payment.WebhookSecret, logger)
	emailService := services.NewEmailService(cfg.Email, logger)

	userRepository := database.NewUserRepository(db)
	listingRepository := database.NewListingRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	messageRepository := database.NewMessageRepository(db)
	auditRepository := database.NewPaymentAuditRepository(db)

	// Realtime hub and notifier
	shutdownCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	hub := realtime.NewHub(logger)
	go hub.Run()
	notifier := realtime.NewNotifier(rdb, hub, logger)
	go notifier.Run(shutdownCtx)

	logger.Info("Services initialized")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userRepository, jwtService, cfg, logger)
	listingHandler := handlers.NewListingHandler(listingRepository, logger)
	bookingHandler := handlers.NewBookingHandler(
		bookingRepository,
		listingRepository,
		userRepository,
		auditRepository,
		gateway,
		emailService,
		notifier,
		logger,
	)
	paymentHandler := handlers.NewPaymentHandler(
		bookingRepository,
		auditRepository,
		gateway,
		cfg.Payment.Currency,
		logger,
	)
	messageHandler := handlers.NewMessageHandler(messageRepository, userRepository, notifier, logger)
	wsHandler := handlers.NewWSHandler(hub, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}
	router.Use(monitoring.RequestMetrics())

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Operational endpoints
	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api")
	{
		// Authentication routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Profile routes (protected)
		user := api.Group("/user")
		user.Use(middleware.AuthMiddleware(jwtService))
		{
			user.GET("/profile", authHandler.GetProfile)
			user.PUT("/profile", authHandler.UpdateProfile)
		}

		// Listing routes
		listings := api.Group("/listings")
		{
			// Public browse
			listings.GET("", listingHandler.Browse)
			listings.GET("/:id", listingHandler.GetByID)

			protected := listings.Group("")
			protected.Use(middleware.AuthMiddleware(jwtService))
			{
				protected.POST("", middleware.RequireRole(models.RoleProvider, models.RoleAdmin), listingHandler.Create)
				protected.GET("/mine", listingHandler.ListMine)
				protected.PATCH("/:id", listingHandler.Update)
				protected.DELETE("/:id", listingHandler.Delete)
			}
		}

		// Booking routes (all protected)
		bookings := api.Group("/orders")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", middleware.RequireRole(models.RoleConsumer, models.RoleAdmin), bookingHandler.Create)
			bookings.GET("", bookingHandler.ListMine)
			bookings.GET("/provider", bookingHandler.ListForProvider)
			bookings.GET("/:id", bookingHandler.GetByID)
			bookings.PATCH("/:id", bookingHandler.Update)
			bookings.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), bookingHandler.Delete)

			// Payment bridges
			bookings.POST("/:id/reset-intent", paymentHandler.ResetIntent)
			bookings.POST("/:id/checkout", paymentHandler.Checkout)
		}

		// Messaging routes (protected)
		messages := api.Group("/messages")
		messages.Use(middleware.AuthMiddleware(jwtService))
		{
			messages.POST("", messageHandler.Send)
			messages.GET("/:userId", messageHandler.ListConversation)
			messages.POST("/:userId/read", messageHandler.MarkRead)
		}

		// Realtime notifications (protected)
		api.GET("/ws", middleware.AuthMiddleware(jwtService), wsHandler.Connect)

		// Processor webhooks (public, signature-verified)
		api.POST("/payments/webhook", paymentHandler.Webhook)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopBackground()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}
		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)
		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
