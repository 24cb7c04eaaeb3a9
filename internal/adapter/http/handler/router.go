package handler

import (
	"pix-gateway/internal/adapter/http/middleware"
	redisStore "pix-gateway/internal/adapter/storage/redis"
	"pix-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ChargeSvc      ports.ChargeService
	WebhookSvc     ports.WebhookIngestor
	ReconSvc       ports.ReconciliationService
	SettingsWriter ports.SettingsWriter
	HealthRepo     ports.HealthRepository
	MonRepo        ports.MonitoringRepository
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

	// Health check (deep — verifies PostgreSQL + Redis)
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

	// --- Acquirer callbacks (origin validation happens per adapter) ---
	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	r.POST("/webhooks/:acquirer", rl("webhooks"), webhookHandler.Receive)

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Checkout-facing routes ---
	chargeHandler := NewChargeHandler(deps.ChargeSvc)
	charges := v1.Group("/charges")
	{
		charges.POST("", rl("charges"), chargeHandler.CreateCharge)
		charges.GET("/:acquirer/:external_id", rl("charges"), chargeHandler.GetCharge)
	}

	// --- Operator routes (JWT-authenticated) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	adminHandler := NewAdminHandler(deps.ReconSvc, deps.HealthRepo, deps.MonRepo, deps.SettingsWriter)
	admin := v1.Group("/admin", jwtAuth)
	{
		admin.POST("/reconciliation", rl("admin"), adminHandler.Reconcile)
		admin.GET("/acquirers/health", rl("admin"), adminHandler.AcquirerHealth)
		admin.GET("/acquirers/:acquirer/events", rl("admin"), adminHandler.AcquirerEvents)
		admin.PUT("/settings", rl("admin"), adminHandler.UpsertSetting)
	}

	return r
}
