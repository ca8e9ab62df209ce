// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ridehail-backoffice/internal/config"
	payAdapters "ridehail-backoffice/internal/infra/adapters/payment"
	pg "ridehail-backoffice/internal/infra/db/postgres"
	"ridehail-backoffice/internal/infra/logging"
	"ridehail-backoffice/internal/infra/metrics"
	red "ridehail-backoffice/internal/infra/redis"
	"ridehail-backoffice/internal/infra/sched"
	"ridehail-backoffice/internal/infra/security"
	"ridehail-backoffice/internal/infra/web"
	"ridehail-backoffice/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (rate limiting only; the service runs without it) ----
	var limiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, confirmation rate limiting disabled")
		} else {
			defer redisClient.Close()
			limiter = red.NewRateLimiter(redisClient)
		}
	}

	// ---- Gateway crypto ----
	codec, err := security.NewCodecFromFiles(cfg.MMG.GatewayPublicKeyFile, cfg.MMG.MerchantPrivateKeyFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway keys")
	}

	gateway, err := payAdapters.NewMMGGateway(cfg.MMG, codec)
	if err != nil {
		logger.Fatal().Err(err).Msg("mmg gateway")
	}

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	priceRepo := pg.NewPlanPriceRepo(pool)
	webhookRepo := pg.NewWebhookLogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	paymentUC := usecase.NewPaymentUseCase(payRepo, subRepo, userRepo, priceRepo, gateway, tm, nil, logger)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret)
	srv := web.NewServer(
		paymentUC,
		webhookRepo,
		codec,
		auth,
		limiter,
		cfg.RateLimit.ConfirmPerMinute,
		web.RedirectURLs{Success: cfg.MMG.SuccessRedirectURL, Failure: cfg.MMG.FailureRedirectURL},
		logger,
	)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background reconciler ----
	reconciler := sched.NewPaymentReconciler(
		cfg.Reconciler.Interval,
		cfg.Reconciler.StaleAfter,
		payRepo,
		gateway,
		paymentUC,
		logger,
	)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
