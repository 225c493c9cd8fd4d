package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/cache"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/cart"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/config"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/coupons"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/database"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/handlers"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/kafka"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/middleware"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/orders"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/payments"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/webhooks"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("booking-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Service metadata cache. Redis is shared across replicas; the in-process
	// cache is the default for single-instance deployments.
	var metadataCache cache.MetadataCache
	if cfg.CacheBackend == "redis" {
		rdb, err := cache.InitRedis(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer rdb.Close()
		metadataCache = cache.NewRedisCache(rdb, cfg.CacheTTL, logger)
	} else {
		metadataCache = cache.NewMemoryCache(cfg.CacheTTL, cfg.CacheMaxEntries)
	}

	// Wire domain components
	couponRepo := coupons.NewRepo(db)
	cartManager := cart.NewManager(db, metadataCache, logger)
	orderRepo := orders.NewRepo(db)
	assembler := orders.NewAssembler(db, couponRepo, producer, logger)

	gatewayClient := payments.NewClient(cfg.GatewayTimeout, logger)
	registry := payments.NewRegistry(
		payments.NewPayTabs(cfg.PayTabs, gatewayClient, cfg.Currency),
		payments.NewPaymob(cfg.Paymob, gatewayClient, cfg.Currency),
		payments.NewStripe(cfg.Stripe, gatewayClient, cfg.Currency),
	)
	paymentService := payments.NewService(db, registry, orderRepo, cfg.Currency, producer, logger)

	webhookEngine := webhooks.NewEngine(db, map[models.PaymentMethod]string{
		models.MethodPayTabs: cfg.PayTabs.WebhookSecret,
		models.MethodPaymob:  cfg.Paymob.WebhookSecret,
		models.MethodStripe:  cfg.Stripe.WebhookSecret,
	}, cfg.Currency, producer, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("booking-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	// Cart endpoints
	cartHandler := handlers.NewCartHandler(cartManager, logger)
	router.GET("/cart", cartHandler.GetCart)
	router.POST("/cart/items", cartHandler.AddItem)
	router.PUT("/cart/items/:id", cartHandler.UpdateQuantity)
	router.DELETE("/cart/items/:id", cartHandler.RemoveItem)

	// Coupon endpoints
	couponHandler := handlers.NewCouponHandler(couponRepo, logger)
	router.POST("/coupons/validate", couponHandler.ValidateCoupon)

	// Order endpoints
	orderHandler := handlers.NewOrderHandler(assembler, orderRepo, logger)
	router.POST("/orders", orderHandler.CreateOrder)
	router.GET("/orders", orderHandler.ListOrders)
	router.GET("/orders/:id", orderHandler.GetOrder)

	// Payment endpoints
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	router.POST("/orders/:id/payments", paymentHandler.InitiatePayment)
	router.POST("/orders/:id/bank-receipt", paymentHandler.SubmitReceipt)

	// Admin endpoints
	router.PUT("/admin/orders/:id/status", orderHandler.AdminUpdateStatus)
	router.POST("/admin/orders/:id/bank-decision", paymentHandler.AdminDecideBankTransfer)

	// Webhook endpoints, one per gateway
	webhookHandler := handlers.NewWebhookHandler(webhookEngine, logger)
	router.POST("/webhooks/:gateway", webhookHandler.Receive)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Booking service started", zap.String("addr", cfg.HTTPAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
