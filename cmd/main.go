package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kuya-relay/kuya_relay/internal/adapters/chain"
	"github.com/kuya-relay/kuya_relay/internal/adapters/messaging"
	"github.com/kuya-relay/kuya_relay/internal/api/handlers"
	"github.com/kuya-relay/kuya_relay/internal/api/routes"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/parser"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/referral"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/reply"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/settlement"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/wallet"
	"github.com/kuya-relay/kuya_relay/internal/infrastructure/cache"
	"github.com/kuya-relay/kuya_relay/internal/infrastructure/config"
	"github.com/kuya-relay/kuya_relay/internal/infrastructure/database"
	"github.com/kuya-relay/kuya_relay/internal/infrastructure/repositories"
	"github.com/kuya-relay/kuya_relay/internal/workers"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/kuya-relay/kuya_relay/pkg/metrics"
	"github.com/kuya-relay/kuya_relay/pkg/tracing"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	log.Info("starting kuya relay", "environment", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("failed to initialize tracing", "error", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}
	log.Info("database ready")

	redisClient, err := cache.NewClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, idempotency fast path disabled", "error", err)
		redisClient = nil
	}

	chainClient, err := chain.NewClient(cfg.Chain, log)
	if err != nil {
		log.Fatal("failed to initialize chain client", "error", err)
	}
	defer chainClient.Close()

	var badgeClient settlement.BadgeAwarder
	if cfg.BadgeChain.Enabled {
		bc, err := chain.NewBadgeClient(
			cfg.BadgeChain,
			time.Duration(cfg.Chain.ConfirmTimeout)*time.Second,
			cfg.Chain.ConfirmPollMillis,
			log,
		)
		if err != nil {
			log.Fatal("failed to initialize badge client", "error", err)
		}
		defer bc.Close()
		badgeClient = bc
		log.Info("badge network enabled")
	}

	messenger := messaging.NewClient(cfg.Messaging, log)

	eventTTL := time.Duration(cfg.Relay.EventTTLMinutes) * time.Minute
	walletRepo := repositories.NewWalletRepository(db)
	referralRepo := repositories.NewReferralRepository(db)
	eventRepo := repositories.NewProcessedEventRepository(db, redisClient, eventTTL)

	walletRegistry := wallet.NewRegistry(walletRepo, log)
	referralLedger := referral.NewLedger(referralRepo, log)
	composer := reply.NewComposer(
		cfg.Relay.CurrencySymbol,
		cfg.Relay.JoinPhrase,
		decimal.NewFromFloat(cfg.Relay.MaxSend),
	)

	engine := settlement.NewEngine(
		settlement.Config{
			MaxSend:        decimal.NewFromFloat(cfg.Relay.MaxSend),
			BadgeThreshold: decimal.NewFromFloat(cfg.Relay.BadgeThreshold),
			ReferralBonus:  decimal.NewFromFloat(cfg.Relay.ReferralBonus),
			TokenDecimals:  cfg.Relay.TokenDecimals,
			EthUsdPrice:    decimal.NewFromFloat(cfg.Relay.EthUsdPrice),
		},
		walletRegistry,
		chainClient,
		chainClient,
		badgeClient,
		referralLedger,
		messenger,
		composer,
		log,
	)

	commandParser := parser.New(cfg.Relay.JoinPhrase, cfg.Messaging.ChannelPrefix)

	webhookHandler := handlers.NewWebhookHandler(
		commandParser,
		engine,
		composer,
		messenger,
		eventRepo,
		cfg.Messaging.WebhookSecret,
		eventTTL,
		log,
	)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	cleanupWorker := workers.NewEventCleanupWorker(eventRepo, cfg.Cleanup.Schedule, log)
	if err := cleanupWorker.Start(); err != nil {
		log.Fatal("failed to start cleanup worker", "error", err)
	}

	go reportPoolMetrics(ctx, db)

	router := routes.Setup(webhookHandler, healthHandler, log, cfg.Environment)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	cancel()
	cleanupWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "error", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Info("shutdown complete")
}

// reportPoolMetrics samples the connection pool every 15 seconds until
// the context is cancelled.
func reportPoolMetrics(ctx context.Context, db *sqlx.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
			metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
		}
	}
}
