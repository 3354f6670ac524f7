package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tastyrock/marketplace-api/internal/accounts"
	"github.com/tastyrock/marketplace-api/internal/auth"
	"github.com/tastyrock/marketplace-api/internal/chat"
	"github.com/tastyrock/marketplace-api/internal/config"
	"github.com/tastyrock/marketplace-api/internal/database"
	"github.com/tastyrock/marketplace-api/internal/drafts"
	"github.com/tastyrock/marketplace-api/internal/offers"
	"github.com/tastyrock/marketplace-api/internal/payments"
	"github.com/tastyrock/marketplace-api/internal/storequeue"
	"github.com/tastyrock/marketplace-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the marketplace API server with graceful
// shutdown support
func main() {
	// .env is optional, the environment wins either way
	if err := godotenv.Load(); err != nil {
		zlog.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := config.Load()

	// Initialize database
	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Background workers share one cancellation scope
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Chat hub owns all negotiation room state
	hub := chat.NewHub()
	go hub.Run(workerCtx)
	chatHandlers := chat.NewGinHandlers(hub)

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret, cfg.GatewaySecret)
	authHandlers := auth.NewGinHandlers(authService)

	accountsService := accounts.NewService(db)
	accountsHandlers := accounts.NewGinHandlers(accountsService)

	offersService := offers.NewService(db, accountsService)
	draftsService := drafts.NewService(db)
	draftsHandlers := drafts.NewGinHandlers(draftsService)
	offersHandlers := offers.NewGinHandlers(offersService, draftsService)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	queueService := storequeue.NewService(redisClient)
	queueHandlers := storequeue.NewGinHandlers(queueService)

	btcpayClient := payments.NewBTCPayClient(cfg.BTCPayURL, cfg.BTCPayStoreID, cfg.BTCPayAPIKey)
	paymentsService := payments.NewService(payments.NewDatabase(db), btcpayClient, offersService, hub)
	paymentsHandlers := payments.NewGinHandlers(paymentsService, cfg.BTCPayWebhookSecret)

	// The sweep backstops missed webhook deliveries
	paymentsProcessor := payments.NewProcessor(paymentsService)
	go paymentsProcessor.Start(workerCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg, authHandlers, accountsHandlers, offersHandlers, draftsHandlers, queueHandlers, paymentsHandlers, chatHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	workerCancel()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for the login front-channel
// - Offer, account and queue routes: Protected by JWT authentication
// - Draft route: Public, consumed by the browser trading extension
// - Payment webhook: Public, authenticated by HMAC signature instead
// - Websocket route: Upgraded outside the JSON envelope
func setupRoutes(
	router *gin.Engine,
	cfg config.Config,
	authHandlers *auth.GinHandlers,
	accountsHandlers *accounts.GinHandlers,
	offersHandlers *offers.GinHandlers,
	draftsHandlers *drafts.GinHandlers,
	queueHandlers *storequeue.GinHandlers,
	paymentsHandlers *payments.GinHandlers,
	chatHandlers *chat.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Offer routes
		offerRoutes := v1.Group("/offers")
		offerRoutes.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			offerRoutes.POST("", offersHandlers.MakeOfferHandler())
			offerRoutes.POST("/rounds", offersHandlers.UpdateOfferHandler())
			offerRoutes.POST("/status", offersHandlers.UpdateStatusHandler())
			offerRoutes.POST("/check-to-pay", offersHandlers.CheckToPayHandler())
		}

		// Account routes
		accountRoutes := v1.Group("/accounts")
		accountRoutes.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			accountRoutes.POST("/trade-url", accountsHandlers.SetTradeURLHandler())
			accountRoutes.POST("/trade-url/reset", accountsHandlers.ResetTradeURLHandler())
		}

		// Store queue routes
		queueRoutes := v1.Group("/queue")
		queueRoutes.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			queueRoutes.POST("/join", queueHandlers.JoinHandler())
			queueRoutes.POST("/next", queueHandlers.NextHandler())
		}

		// Payment routes; the webhook authenticates via HMAC signature
		paymentRoutes := v1.Group("/payments")
		{
			paymentRoutes.POST("/invoices", middleware.JWTAuth(cfg.JWTSecret), paymentsHandlers.CreateInvoiceHandler())
			paymentRoutes.POST("/btcpay/webhook", paymentsHandlers.WebhookHandler())
		}

		// Draft route, consumed by the unauthenticated trading extension
		v1.GET("/drafts/:draft_id", draftsHandlers.GetDraftHandler())
	}

	// Negotiation websocket
	router.GET("/ws/chat", chatHandlers.ServeWSHandler())
}
