package handler

import (
	"github.com/mhkaycey/wallet-service/internal/adapter/http/middleware"
	redisStore "github.com/mhkaycey/wallet-service/internal/adapter/storage/redis"
	"github.com/mhkaycey/wallet-service/internal/core/domain"
	"github.com/mhkaycey/wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	WalletSvc      ports.WalletService
	WebhookSvc     ports.WebhookService
	APIKeySvc      ports.APIKeyService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// Webhooks authenticate by signature, not by token.
	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	v1.POST("/webhooks/paystack", rl("webhooks"), webhookHandler.Receive)

	// --- Ledger routes (JWT or API key with the route's permission) ---
	withPerm := func(p domain.Permission) gin.HandlerFunc {
		return middleware.Auth(deps.TokenSvc, deps.APIKeySvc, p, deps.Logger)
	}
	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := v1.Group("/wallet")
	{
		wallet.POST("/deposit", rl("deposits"), withPerm(domain.PermissionDeposit), walletHandler.Deposit)
		wallet.POST("/transfer", rl("transfers"), withPerm(domain.PermissionTransfer), walletHandler.Transfer)
		wallet.GET("/balance", rl("reads"), withPerm(domain.PermissionRead), walletHandler.GetBalance)
		wallet.GET("/transactions", rl("reads"), withPerm(domain.PermissionRead), walletHandler.GetTransactions)
		wallet.GET("/deposits/:reference", rl("reads"), withPerm(domain.PermissionRead), walletHandler.GetDepositStatus)
	}

	// --- API key management (JWT only) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	apiKeyHandler := NewAPIKeyHandler(deps.APIKeySvc)
	keys := v1.Group("/keys", jwtAuth)
	{
		keys.POST("", rl("api_keys"), apiKeyHandler.Create)
		keys.GET("", rl("api_keys"), apiKeyHandler.List)
		keys.POST("/:id/rollover", rl("api_keys"), apiKeyHandler.Rollover)
		keys.DELETE("/:id", rl("api_keys"), apiKeyHandler.Revoke)
	}

	return r
}
