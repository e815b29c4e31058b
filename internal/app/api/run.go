// Package api wires the settlement HTTP process: observability, storage,
// the resilient payment gateway, and the orders service behind gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"gorm.io/gorm"

	ledgermemory "github.com/commercekit/settlement/internal/domains/ledger/adapters/memory"
	ledgerpostgres "github.com/commercekit/settlement/internal/domains/ledger/adapters/persistence/postgres"
	ledgerports "github.com/commercekit/settlement/internal/domains/ledger/ports"
	ordersevents "github.com/commercekit/settlement/internal/domains/orders/adapters/events"
	ordershttp "github.com/commercekit/settlement/internal/domains/orders/adapters/http"
	ordersmemory "github.com/commercekit/settlement/internal/domains/orders/adapters/memory"
	ordersobs "github.com/commercekit/settlement/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/commercekit/settlement/internal/domains/orders/adapters/persistence/postgres"
	ordersworkflows "github.com/commercekit/settlement/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/commercekit/settlement/internal/domains/orders/application"
	ordersports "github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentgateway "github.com/commercekit/settlement/internal/domains/payment/adapters/gateway"
	paymentobs "github.com/commercekit/settlement/internal/domains/payment/adapters/observability"
	paymentports "github.com/commercekit/settlement/internal/domains/payment/ports"
	"github.com/commercekit/settlement/internal/platform/migrations"
	platformobservability "github.com/commercekit/settlement/internal/platform/observability"
	platformpostgres "github.com/commercekit/settlement/internal/platform/postgres"
)

// Run boots the settlement HTTP API.
func Run(ctx context.Context) error {
	const serviceName = "settlement-api"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	db, cleanupDB := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanupDB()
	if db != nil {
		if err := migrations.Run(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	repo, ledger, txManager := buildStores(db, logger)

	gatewayClient, err := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:        cfg.GatewayBaseURL,
		ConnectTimeout: cfg.GatewayConnectTimeout,
		RequestTimeout: cfg.GatewayRequestTimeout,
		MaxConcurrent:  cfg.GatewayMaxConcurrent,
	}, paymentgateway.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to build payment gateway client: %w", err)
	}
	var pg paymentports.Gateway = paymentobs.New(
		gatewayClient,
		paymentobs.WithLogger(logger),
		paymentobs.WithTracer(instruments.Tracer("internal.payment.gateway")),
		paymentobs.WithMeter(instruments.Meter("internal.payment.gateway")),
	)

	var events ordersports.EventPublisher = ordersevents.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := ordersevents.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kafkaPublisher.Close()
		events = kafkaPublisher
		logger.Info("order events publishing to kafka", slog.String("topic", cfg.KafkaTopic))
	}

	coreService := ordersapp.NewService(repo, ledger, pg, txManager,
		ordersapp.WithLogger(logger),
		ordersapp.WithEvents(events),
		ordersapp.WithCallbackURL(cfg.CallbackBaseURL+"/api/v1/orders/payments/callback"),
		ordersapp.WithTimeoutGrace(cfg.TimeoutGrace),
		ordersapp.WithAbandonAfter(cfg.AbandonAfter),
	)
	service := ordersobs.New(
		coreService,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)

	var recovery ordersports.RecoveryOrchestrator = ordersworkflows.NewInlineRecovery(service)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal unavailable, running recovery inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		recovery = ordersworkflows.NewTemporalRecovery(temporalClient)
		logger.Info("Temporal recovery enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	ordershttp.NewHandler(service, recovery).Register(router)

	addr := ":" + cfg.Port
	logger.Info("settlement API listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("settlement API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

func buildStores(db *gorm.DB, logger *slog.Logger) (ordersports.Repository, ledgerports.Ledger, ordersports.TxManager) {
	if db == nil {
		logger.Warn("running with in-memory stores; state is not durable")
		ledgerStore := ledgermemory.NewStore()
		repo := ordersmemory.NewRepository()
		return repo, ledgerStore, ordersmemory.NewTxManager(ledgerStore, repo)
	}
	return orderspostgres.NewRepository(db), ledgerpostgres.NewLedger(db), platformpostgres.NewTxManager(db)
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
