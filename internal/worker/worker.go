package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/service"
	"github.com/davishaupt/baldr/internal/telemetry"
)

// Config holds retry worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to scan the ledger for retryable entries
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of entries processed concurrently
	MaxConcurrency int

	// BatchSize is how many entries to pick up per poll
	BatchSize int

	// StaleClaimAfter is how long a processing claim may sit before it is
	// treated as abandoned by a crashed worker
	StaleClaimAfter time.Duration
}

// Worker re-drives webhook ledger entries that did not settle: pending
// entries with attempt budget left, and processing claims abandoned by a
// crashed worker. Processing goes through the same dispatcher as the
// synchronous webhook path, so claim semantics and attempt bookkeeping are
// identical.
type Worker struct {
	config   Config
	ledger   domain.WebhookLedger
	webhooks service.WebhookService
	logger   *slog.Logger
}

// NewWorker creates a new webhook retry worker
func NewWorker(ledger domain.WebhookLedger, webhooks service.WebhookService, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.BatchSize == 0 {
		config.BatchSize = 50
	}
	if config.StaleClaimAfter == 0 {
		config.StaleClaimAfter = 5 * time.Minute
	}

	return &Worker{
		config:   config,
		ledger:   ledger,
		webhooks: webhooks,
		logger:   logger,
	}
}

// Start polls until the context is cancelled, then waits for in-flight
// entries to finish.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("retry worker starting",
		"worker_id", w.config.WorkerID,
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
		"batch_size", w.config.BatchSize,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retry worker shutting down", "worker_id", w.config.WorkerID)
			wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			w.drainBatch(ctx, sem, &wg)
		}
	}
}

// drainBatch lists retryable entries and fans them out to the dispatcher.
func (w *Worker) drainBatch(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup) {
	entries, err := w.ledger.ListRetryable(ctx, w.config.StaleClaimAfter, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to list retryable webhooks", "error", err.Error())
		return
	}
	if len(entries) == 0 {
		return
	}

	w.logger.Info("retrying webhook entries",
		"worker_id", w.config.WorkerID,
		"count", len(entries),
	)

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(entry *domain.WebhookEvent) {
			defer wg.Done()
			defer func() { <-sem }()
			w.processEntry(ctx, entry)
		}(entry)
	}
}

func (w *Worker) processEntry(ctx context.Context, entry *domain.WebhookEvent) {
	if tm := telemetry.Business; tm != nil {
		tm.WebhookRetries.WithLabelValues(entry.EventType).Inc()
	}

	result, err := w.webhooks.ProcessEvent(ctx, entry)
	if err != nil {
		w.logger.Error("retry attempt errored",
			"event_id", entry.ID.String(),
			"event_type", entry.EventType,
			"error", err.Error(),
		)
		return
	}

	if result.Success {
		w.logger.Info("retry settled webhook",
			"event_id", entry.ID.String(),
			"event_type", entry.EventType,
			"action", result.Action,
		)
	} else {
		w.logger.Warn("retry attempt failed",
			"event_id", entry.ID.String(),
			"event_type", entry.EventType,
			"attempts", entry.Attempts+1,
			"max_attempts", entry.MaxAttempts,
			"error", result.Error,
		)
	}
}
