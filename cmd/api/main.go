package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mhkaycey/wallet-service/config"
	"github.com/mhkaycey/wallet-service/internal/adapter/gateway/paystack"
	httpHandler "github.com/mhkaycey/wallet-service/internal/adapter/http/handler"
	"github.com/mhkaycey/wallet-service/internal/adapter/queue/rabbitmq"
	pgStorage "github.com/mhkaycey/wallet-service/internal/adapter/storage/postgres"
	redisStorage "github.com/mhkaycey/wallet-service/internal/adapter/storage/redis"
	"github.com/mhkaycey/wallet-service/internal/core/ports"
	"github.com/mhkaycey/wallet-service/internal/service"
	"github.com/mhkaycey/wallet-service/internal/worker"
	"github.com/mhkaycey/wallet-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	apiKeyRepo := pgStorage.NewAPIKeyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	settledCache := redisStorage.NewSettledCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize payment gateway client
	gateway := paystack.NewClient(cfg.Paystack, log)

	// Initialize event publisher. The ledger works without a broker, so a
	// failed connection degrades to a no-op publisher instead of exiting.
	var publisher ports.EventPublisher
	amqpPublisher, err := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, settlement events disabled")
		publisher = rabbitmq.NewNoopPublisher(log)
	} else {
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		log.Info().Msg("RabbitMQ connected")
	}

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	authSvc := service.NewAuthService(userRepo, walletRepo, hashSvc, tokenSvc, transactor, log)
	walletSvc := service.NewWalletService(walletRepo, txRepo, userRepo, gateway, publisher, transactor, log)
	webhookSvc := service.NewWebhookService(txRepo, walletRepo, gateway, settledCache, publisher, transactor, log)
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, log)

	// Start the pending-deposit sweeper
	sweeper := worker.NewSweeper(txRepo, gateway, webhookSvc, cfg.Sweeper, log)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start deposit sweeper")
	}
	defer sweeper.Stop()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		WalletSvc:      walletSvc,
		WebhookSvc:     webhookSvc,
		APIKeySvc:      apiKeySvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
