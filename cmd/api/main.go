package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pix-gateway/config"
	"pix-gateway/internal/adapter/acquirer"
	httpHandler "pix-gateway/internal/adapter/http/handler"
	pgStorage "pix-gateway/internal/adapter/storage/postgres"
	redisStorage "pix-gateway/internal/adapter/storage/redis"
	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/internal/service"
	"pix-gateway/pkg/logger"
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
		Msg("Starting PIX Gateway")

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
	txRepo := pgStorage.NewTransactionRepo(pool)
	healthRepo := pgStorage.NewHealthRepo(pool)
	monRepo := pgStorage.NewMonitoringRepo(pool)
	settingsRepo := pgStorage.NewSettingsRepo(pool)

	// Initialize Redis stores
	tokenCache := redisStorage.NewTokenCache(rdb)
	probeLock := redisStorage.NewProbeLock(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	settingsSvc := service.NewSettingsService(settingsRepo, encSvc, cfg.Pix.Defaults, log)

	// Initialize acquirer adapters
	creds := acquirer.NewCredentialProvider(settingsSvc, log)
	registry := acquirer.NewRegistry(
		acquirer.NewEfi(creds, tokenCache, log),
		acquirer.NewWoovi(creds, sigSvc, log),
		acquirer.NewMercadoPago(creds, log),
	)

	// Initialize business services
	routingSvc := service.NewRoutingService(settingsSvc, healthRepo, domain.Acquirer(cfg.Pix.DefaultAcquirer), log)
	chargeSvc := service.NewChargeService(routingSvc, registry, txRepo, settingsSvc, monRepo, cfg.Pix.ChargeExpiry, log)
	notifySvc := service.NewNotificationService(
		settingsSvc,
		sigSvc,
		service.NewLogEmailSender(log),
		service.NewLogAnalyticsSink(log),
		&http.Client{Timeout: 10 * time.Second},
		log,
	)
	webhookSvc := service.NewWebhookService(registry, txRepo, monRepo, notifySvc, log)
	reconSvc := service.NewReconciliationService(registry, txRepo, settingsSvc, log)

	// Health monitor runs in the background; charge routing reads its last
	// recorded state and never blocks on a live probe.
	monitor := service.NewHealthMonitor(registry, healthRepo, monRepo, settingsSvc, probeLock, cfg.Pix.ProbeInterval, cfg.Pix.ProbeTimeout, log)
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go monitor.Start(monitorCtx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ChargeSvc:      chargeSvc,
		WebhookSvc:     webhookSvc,
		ReconSvc:       reconSvc,
		SettingsWriter: settingsSvc,
		HealthRepo:     healthRepo,
		MonRepo:        monRepo,
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

	stopMonitor()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
