// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oproz-billing/internal/config"
	"oproz-billing/internal/domain/ports/adapter"
	"oproz-billing/internal/infra/api"
	apiv1 "oproz-billing/internal/infra/api/apiv1"
	pg "oproz-billing/internal/infra/db/postgres"
	"oproz-billing/internal/infra/logging"
	"oproz-billing/internal/infra/metrics"
	"oproz-billing/internal/infra/notify"
	pay "oproz-billing/internal/infra/payment"
	red "oproz-billing/internal/infra/redis"
	"oproz-billing/internal/infra/sched"
	"oproz-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRecordRepo(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient, cfg.Redis.TTL)
	offerRepo := pg.NewOfferRepo(pool)
	eventRepo := pg.NewWebhookEventRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Payment.Razorpay.Demo {
		logger.Warn().Msg("demo gateway enabled; no real charges will be made")
		gateway = pay.NewDemoGateway(cfg.Payment.Razorpay.KeySecret)
	} else {
		gateway = pay.NewRazorpayGateway(cfg.Payment.Razorpay)
	}

	notifier := notify.NewLogNotifier(logger)

	// ---- Use cases ----
	quoteUC := usecase.NewQuoteUseCase(planRepo, offerRepo, cfg.Payment.Currency, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, planRepo, offerRepo, gateway, notifier, txManager, cfg.Payment.Currency, logger)
	webhookUC := usecase.NewWebhookUseCase(paymentRepo, planRepo, offerRepo, eventRepo, notifier, txManager, logger)
	entitlementUC := usecase.NewEntitlementUseCase(paymentRepo, planRepo)
	statsUC := usecase.NewStatsUseCase(paymentRepo)

	// ---- Background workers ----
	reconciler := sched.NewPaymentReconciler(webhookUC, paymentRepo, gateway, cfg.Reconciler.Interval, cfg.Reconciler.PendingMaxAge, logger)
	go reconciler.Start(ctx)
	replayer := sched.NewWebhookReplayer(webhookUC, eventRepo, cfg.Reconciler.ReplayInterval, cfg.Reconciler.EventRetention, logger)
	go replayer.Start(ctx)

	// ---- HTTP ----
	v1 := apiv1.NewServer(quoteUC, paymentUC, webhookUC, entitlementUC, statsUC, cfg.Payment.Razorpay.WebhookSecret, logger)
	srv := api.NewServer(cfg.API, v1, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// ---- Graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
