package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"gorm.io/gorm"

	"github.com/commercekit/settlement/internal/app/api"
	ledgermemory "github.com/commercekit/settlement/internal/domains/ledger/adapters/memory"
	ledgerpostgres "github.com/commercekit/settlement/internal/domains/ledger/adapters/persistence/postgres"
	ledgerports "github.com/commercekit/settlement/internal/domains/ledger/ports"
	ordersevents "github.com/commercekit/settlement/internal/domains/orders/adapters/events"
	ordersmemory "github.com/commercekit/settlement/internal/domains/orders/adapters/memory"
	orderspostgres "github.com/commercekit/settlement/internal/domains/orders/adapters/persistence/postgres"
	ordersapp "github.com/commercekit/settlement/internal/domains/orders/application"
	ordersports "github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentgateway "github.com/commercekit/settlement/internal/domains/payment/adapters/gateway"
	paymentobs "github.com/commercekit/settlement/internal/domains/payment/adapters/observability"
	"github.com/commercekit/settlement/internal/platform/migrations"
	platformobservability "github.com/commercekit/settlement/internal/platform/observability"
	platformpostgres "github.com/commercekit/settlement/internal/platform/postgres"
	orderactivities "github.com/commercekit/settlement/internal/platform/temporal/activities/orders"
	recoveryworkflows "github.com/commercekit/settlement/internal/platform/temporal/workflows/orders"
)

func main() {
	ctx := context.Background()
	const serviceName = "settlement-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
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
	if db != nil {
		if err := migrations.Run(db); err != nil {
			logger.Error("failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
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
		logger.Error("failed to build payment gateway client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	pg := paymentobs.New(
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
	}

	service := ordersapp.NewService(repo, ledger, pg, txManager,
		ordersapp.WithLogger(logger),
		ordersapp.WithEvents(events),
		ordersapp.WithAbandonAfter(cfg.AbandonAfter),
	)
	activities := orderactivities.NewActivities(service)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, recoveryworkflows.PaymentRecoveryTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(recoveryworkflows.PaymentRecoveryWorkflow, workflow.RegisterOptions{Name: recoveryworkflows.PaymentRecoveryWorkflowName})
	w.RegisterActivityWithOptions(activities.ReconcileOrder, activity.RegisterOptions{Name: orderactivities.ReconcileOrderActivityName})

	logger.Info("worker listening", slog.String("taskQueue", recoveryworkflows.PaymentRecoveryTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

func buildStores(db *gorm.DB, logger *slog.Logger) (ordersports.Repository, ledgerports.Ledger, ordersports.TxManager) {
	if db == nil {
		logger.Warn("worker running with in-memory stores; state is not durable")
		ledgerStore := ledgermemory.NewStore()
		repo := ordersmemory.NewRepository()
		return repo, ledgerStore, ordersmemory.NewTxManager(ledgerStore, repo)
	}
	return orderspostgres.NewRepository(db), ledgerpostgres.NewLedger(db), platformpostgres.NewTxManager(db)
}
