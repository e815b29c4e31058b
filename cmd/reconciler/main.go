package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/commercekit/settlement/internal/app/api"
	ledgerpostgres "github.com/commercekit/settlement/internal/domains/ledger/adapters/persistence/postgres"
	ledgerports "github.com/commercekit/settlement/internal/domains/ledger/ports"
	ordersevents "github.com/commercekit/settlement/internal/domains/orders/adapters/events"
	orderspostgres "github.com/commercekit/settlement/internal/domains/orders/adapters/persistence/postgres"
	ordersapp "github.com/commercekit/settlement/internal/domains/orders/application"
	ordersports "github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentgateway "github.com/commercekit/settlement/internal/domains/payment/adapters/gateway"
	"github.com/commercekit/settlement/internal/platform/migrations"
	platformobservability "github.com/commercekit/settlement/internal/platform/observability"
	platformpostgres "github.com/commercekit/settlement/internal/platform/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instruments, shutdown, err := platformobservability.Init(ctx, "settlement-reconciler")
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := api.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, cleanupDB := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanupDB()
	if db == nil {
		logger.Error("POSTGRES_DSN not set or connection failed; nothing to reconcile")
		os.Exit(1)
	}
	if err := migrations.Run(db); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}
	repo, ledger, txManager := buildStores(db)

	gatewayClient, err := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:        cfg.GatewayBaseURL,
		ConnectTimeout: cfg.GatewayConnectTimeout,
		RequestTimeout: cfg.GatewayRequestTimeout,
		MaxConcurrent:  cfg.GatewayMaxConcurrent,
	}, paymentgateway.WithLogger(logger))
	if err != nil {
		logger.Error("failed to build payment gateway client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var events ordersports.EventPublisher = ordersevents.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := ordersevents.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kafkaPublisher.Close()
		events = kafkaPublisher
	}

	service := ordersapp.NewService(repo, ledger, gatewayClient, txManager,
		ordersapp.WithLogger(logger),
		ordersapp.WithEvents(events),
		ordersapp.WithAbandonAfter(cfg.AbandonAfter),
	)

	if err := sweep(ctx, service, logger); err != nil {
		os.Exit(1)
	}
	if runOnce() {
		return
	}

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()
	logger.Info("reconciler running", slog.Duration("interval", cfg.ReconcileInterval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("reconciler stopping")
			return
		case <-ticker.C:
			if err := sweep(ctx, service, logger); err != nil && ctx.Err() != nil {
				return
			}
		}
	}
}

func sweep(ctx context.Context, service ordersports.Service, logger *slog.Logger) error {
	report, err := service.ReconcilePending(ctx)
	if err != nil {
		logger.Error("reconciliation sweep failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("reconciliation sweep completed",
		slog.Int("examined", report.Examined),
		slog.Int("completed", report.Completed),
		slog.Int("canceled", report.Canceled),
		slog.Int("stillPending", report.StillPending),
		slog.Int("failed", report.Failed),
	)
	return nil
}

func buildStores(db *gorm.DB) (ordersports.Repository, ledgerports.Ledger, ordersports.TxManager) {
	return orderspostgres.NewRepository(db), ledgerpostgres.NewLedger(db), platformpostgres.NewTxManager(db)
}

func runOnce() bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv("RECONCILE_ONCE")))
	return value == "1" || value == "true" || value == "yes"
}
