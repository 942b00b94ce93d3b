package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"comanda-system/config"
	"comanda-system/internal/database"
	"comanda-system/internal/events"
	"comanda-system/internal/gateway/handlers"
	"comanda-system/internal/gateway/middleware"
	"comanda-system/internal/services/orders"
	"comanda-system/internal/services/payments"
	"comanda-system/internal/services/printing"
	"comanda-system/internal/services/stock"
	"comanda-system/internal/utils"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	utils.SetJWTSecret(cfg.Auth.JWTSecret)
	if cfg.Print.WorkerToken == "" {
		logger.Fatal("PRINT_WORKER_TOKEN must be set")
	}

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is a cache and event fan-out, not a dependency the core flows
	// need; run degraded without it.
	var rdb *redis.Client
	if client, err := config.NewRedisClient(cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, caching and events disabled", zap.Error(err))
	} else {
		rdb = client
	}

	publisher := events.NewPublisher(rdb, logger)
	ledger := stock.NewLedger(db)
	dispatcher := printing.NewDispatcher(db, cfg.Print.MaxAttempts, logger)
	engine := orders.NewEngine(db, ledger, dispatcher, publisher, logger)
	reconciler := payments.NewReconciler(db, publisher, logger)

	orderHandler := handlers.NewOrderHTTPHandler(engine)
	paymentHandler := handlers.NewPaymentHTTPHandler(reconciler)
	printHandler := handlers.NewPrintJobHTTPHandler(dispatcher, cfg.Print.DefaultPollLimit)
	availabilityHandler := handlers.NewAvailabilityHTTPHandler(ledger, rdb)
	stockHandler := handlers.NewStockHTTPHandler(ledger, publisher)

	r := gin.New()
	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(cfg.Server.RateLimit))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Worker protocol. Flat paths and bearer token auth, no JWT: printer
	// workers are machines, not users.
	worker := r.Group("/print-jobs")
	worker.Use(middleware.WorkerAuth(cfg.Print.WorkerToken))
	{
		worker.GET("/poll", printHandler.Poll)
		worker.POST("/:id/mark_completed", printHandler.MarkCompleted)
		worker.POST("/:id/mark_failed", printHandler.MarkFailed)
	}

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		ordersGroup := protected.Group("/orders")
		{
			ordersGroup.POST("", orderHandler.CreateOrder)
			ordersGroup.GET("/:id", orderHandler.GetOrder)
			ordersGroup.POST("/:id/cancel", orderHandler.CancelOrder)
			ordersGroup.POST("/:id/pay", paymentHandler.Pay)
			ordersGroup.POST("/:id/pay-split", paymentHandler.PaySplit)
			ordersGroup.POST("/items", orderHandler.AddItems)
		}

		items := protected.Group("/order-items")
		{
			items.PATCH("/:item_id/status", orderHandler.UpdateItemStatus)
			items.DELETE("/:item_id", orderHandler.DeleteItem)
		}

		tables := protected.Group("/tables")
		{
			tables.GET("/:table_id/open-order", orderHandler.GetOpenOrder)
		}

		paymentsGroup := protected.Group("/payments")
		{
			paymentsGroup.POST("/:id/receipt-printed", paymentHandler.MarkReceiptPrinted)
		}

		recipes := protected.Group("/recipes")
		{
			recipes.GET("/availability", availabilityHandler.ListAvailability)
			recipes.GET("/:id/availability", availabilityHandler.CheckAvailability)
		}

		ingredients := protected.Group("/ingredients")
		{
			ingredients.PATCH("/:id/stock", stockHandler.SetIngredientStock)
		}

		containers := protected.Group("/containers")
		{
			containers.PATCH("/:id/stock", stockHandler.SetContainerStock)
		}

		printJobs := protected.Group("/print-jobs")
		{
			printJobs.GET("", printHandler.List)
			printJobs.POST("/:id/retry", printHandler.Retry)
			printJobs.POST("/:id/cancel", printHandler.Cancel)
		}
	}

	addr := ":" + cfg.Server.Port
	logger.Info("Starting server", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
