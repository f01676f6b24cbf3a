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
	"github.com/servicehub/booking-backend/internal/config"
	"github.com/servicehub/booking-backend/internal/database"
	"github.com/servicehub/booking-backend/internal/handlers"
	"github.com/servicehub/booking-backend/internal/metrics"
	"github.com/servicehub/booking-backend/internal/middleware"
	"github.com/servicehub/booking-backend/internal/services"
	"github.com/servicehub/booking-backend/pkg/jwt"
	"github.com/servicehub/booking-backend/pkg/sms"
	"github.com/sirupsen/logrus"
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

	logger.Info("Starting ServiceHub booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Database
	logger.WithFields(logrus.Fields{
		"driver": cfg.Database.Driver,
		"url":    database.MaskPassword(cfg.Database.URL),
	}).Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.MigrateOnStart {
		if err := database.RunMigrations(db.DB.DB, logger); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	if err := metrics.Setup(cfg.Metrics, logger); err != nil {
		logger.Fatalf("Failed to set up metrics: %v", err)
	}

	// Repositories
	catalogRepository := database.NewCatalogRepository(db.DB)
	bookingRepository := database.NewBookingRepository(db.DB, logger)
	alertRepository := database.NewReconciliationAlertRepository(db.DB, logger)
	auditRepository := database.NewWebhookAuditRepository(db.DB, logger)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	processor := services.NewStripeProcessor(cfg.Payment, logger)
	feeCalculator := services.NewFeeCalculator(cfg.Fees.PlatformFeeCents, cfg.Fees.PlatformShareRatio)

	checkoutService := services.NewCheckoutService(catalogRepository, feeCalculator, processor, services.CheckoutConfig{
		Currency:           cfg.Payment.Currency,
		MaxAddons:          cfg.Payment.MaxAddons,
		DefaultCountryCode: cfg.Payment.DefaultCountryCode,
	}, logger)

	transport, closeTransport := newNotificationTransport(cfg.Notification, logger)
	defer closeTransport()

	dispatcher := services.NewNotificationDispatcher(transport, catalogRepository, services.DispatcherConfig{
		Workers:   cfg.Notification.Workers,
		QueueSize: cfg.Notification.QueueSize,
		Timeout:   cfg.Notification.Timeout,
	}, logger)
	dispatcher.Start()

	materializer := services.NewBookingMaterializer(bookingRepository, catalogRepository, logger)
	reconciliationService := services.NewReconciliationService(materializer, alertRepository, dispatcher, cfg.Payment.Currency, logger)
	auditService := services.NewAuditService(auditRepository, logger)

	var cronService *services.CronService
	if cfg.Cron.Enabled {
		cronService = services.NewCronService(alertRepository, auditRepository, cfg.Cron, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}

	// Handlers
	webhookHandler := handlers.NewPaymentWebhookHandler(processor, reconciliationService, auditService, logger)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingRepository, logger)
	alertHandler := handlers.NewReconciliationAlertHandler(alertRepository, auditRepository, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := handlers.NewHealthHandler(db, nil, version)
	if cronService != nil {
		healthHandler = handlers.NewHealthHandler(db, cronService, version)
	}
	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments/webhook", webhookHandler.HandleWebhook)
		v1.POST("/checkout/sessions", middleware.OptionalAuth(jwtService, logger), checkoutHandler.CreateSession)
		v1.GET("/bookings/by-checkout/:checkout_ref", bookingHandler.GetByCheckoutRef)

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService, logger), middleware.RequireRole(jwt.RoleAdmin))
		{
			admin.GET("/reconciliation-alerts", alertHandler.ListAlerts)
			admin.GET("/reconciliation-alerts/:id", alertHandler.GetAlert)
			admin.POST("/reconciliation-alerts/:id/resolve", alertHandler.ResolveAlert)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// the server no longer enqueues, so drain what is already queued
	if err := dispatcher.Stop(ctx); err != nil {
		logger.WithError(err).Warn("Notification queue not fully drained")
	}

	logger.Info("Server exited successfully")
}

// newNotificationTransport builds the configured transport and its cleanup
func newNotificationTransport(cfg config.NotificationConfig, logger *logrus.Logger) (services.NotificationTransport, func()) {
	switch cfg.Transport {
	case "sms":
		gateway := sms.NewGateway(sms.Config{
			APIURL:   cfg.SMS.APIURL,
			Username: cfg.SMS.Username,
			Password: cfg.SMS.Password,
			Mask:     cfg.SMS.Mask,
			Timeout:  cfg.Timeout,
		})
		logger.WithField("gateway", gateway.Name()).Info("Notifications via SMS")
		return services.NewSMSTransport(gateway), func() {}
	case "kafka":
		transport := services.NewKafkaTransport(services.NewKafkaWriter(cfg.Kafka))
		logger.WithFields(logrus.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		}).Info("Notifications via Kafka")
		return transport, func() {
			if err := transport.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close Kafka writer")
			}
		}
	default:
		logger.Info("Notifications via log transport")
		return services.NewLogTransport(logger), func() {}
	}
}
