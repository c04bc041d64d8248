package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davishaupt/baldr/internal"
	"github.com/davishaupt/baldr/internal/billing"
	"github.com/davishaupt/baldr/internal/events"
	"github.com/davishaupt/baldr/internal/handler/api"
	"github.com/davishaupt/baldr/internal/handler/webhook"
	"github.com/davishaupt/baldr/internal/middleware"
	"github.com/davishaupt/baldr/internal/postgres"
	"github.com/davishaupt/baldr/internal/router"
	"github.com/davishaupt/baldr/internal/routes"
	"github.com/davishaupt/baldr/internal/service"
	"github.com/davishaupt/baldr/internal/telemetry"
	"github.com/davishaupt/baldr/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	billingStore := postgres.NewBillingStore(pool)
	ledger := postgres.NewWebhookLedger(pool)
	planStore := postgres.NewPlanStore(pool)

	// Initialize payment processor client
	logger.Info("Initializing Asaas billing provider...")
	provider, err := billing.NewAsaasProvider(billing.AsaasConfig{
		APIKey:  cfg.Asaas.APIKey,
		BaseURL: cfg.Asaas.BaseURL,
		Timeout: cfg.Asaas.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Asaas provider: %w", err)
	}

	// Initialize event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Nats.URL != "" {
		natsPublisher, err := events.NewNatsPublisher(cfg.Nats.URL)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("NATS event publisher connected", "url", cfg.Nats.URL)
	} else {
		logger.Warn("NATS_URL not set, internal events are dropped")
	}

	// Initialize business metrics
	telemetry.InitBusinessMetrics("baldr")

	// Initialize services
	reconcileService := service.NewReconcileService(billingStore, provider, publisher, logger, service.ReconcileConfig{
		SuspensionThresholdDays: cfg.Reconcile.SuspensionThresholdDays,
		KeepTrialOnRemoteActive: cfg.Reconcile.KeepTrialOnRemoteActive,
	})
	webhookService := service.NewWebhookService(ledger, billingStore, reconcileService, publisher, logger, cfg.Webhook.AccessToken, cfg.Webhook.MaxAttempts)
	accessService := service.NewAccessService(billingStore)
	provisionService := service.NewProvisionService(billingStore, planStore, provider, publisher, logger)

	// Initialize HTTP metrics
	metrics := middleware.NewMetrics("baldr")

	// Build route dependencies
	deps := routes.Deps{
		WebhookHandler:      webhook.NewAsaasHandler(webhookService, logger),
		BillingHandler:      api.NewBillingHandler(billingStore, planStore, accessService, reconcileService, logger),
		SubscriptionHandler: api.NewSubscriptionHandler(provisionService, logger),
		AccessGate:          middleware.RequireBillingAccess(accessService),
		MetricsHandler:      metrics.Handler(),
		HealthHandler: func(w http.ResponseWriter, r *http.Request) {
			if err := pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("database unreachable"))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		},
	}

	// Create router and register routes
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)
	routes.Register(r, deps)

	// Start the webhook retry worker
	retryWorker := worker.NewWorker(ledger, webhookService, worker.Config{
		PollInterval:    cfg.Reconcile.RetryInterval,
		StaleClaimAfter: cfg.Reconcile.StaleClaimAfter,
	}, logger)

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- retryWorker.Start(ctx)
	}()

	// Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", addr, "env", cfg.Env)
		serverDone <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	// Graceful shutdown: stop accepting requests, then wait for the worker.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err.Error())
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop before shutdown deadline")
	}

	logger.Info("Shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
