package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davishaupt/baldr/internal/billing"
	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/events"
	"github.com/davishaupt/baldr/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingEvent(eventType string, payload string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:          uuid.New(),
		Source:      service.SourceAsaas,
		EventType:   eventType,
		Payload:     []byte(payload),
		Status:      domain.WebhookStatusPending,
		MaxAttempts: 3,
	}
}

func TestDrainBatch_SettlesRetryableEntries(t *testing.T) {
	rec := &domain.TenantBillingRecord{
		TenantID:               uuid.New(),
		ExternalSubscriptionID: "sub_123",
		Status:                 domain.BillingStatusPendingPayment,
	}
	store := &service.MockBillingStore{
		GetByExternalSubscriptionFunc: func(ctx context.Context, id string) (*domain.TenantBillingRecord, error) {
			return rec, nil
		},
		UpdateFunc: func(ctx context.Context, id uuid.UUID, params domain.UpdateBillingParams) (*domain.TenantBillingRecord, error) {
			updated := *rec
			if params.Status != nil {
				updated.Status = *params.Status
			}
			return &updated, nil
		},
	}

	entry := pendingEvent(service.EventPaymentConfirmed,
		`{"event":"PAYMENT_CONFIRMED","id":"evt_1","payment":{"id":"pay_1","customer":"cus_1","subscription":"sub_123"}}`)

	ledger := &service.MockWebhookLedger{
		ListRetryableFunc: func(ctx context.Context, staleAfter time.Duration, limit int) ([]*domain.WebhookEvent, error) {
			return []*domain.WebhookEvent{entry}, nil
		},
		ClaimFunc: func(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
			entry.Status = domain.WebhookStatusProcessing
			entry.Attempts++
			return entry, nil
		},
	}

	pub := &events.RecordingPublisher{}
	reconcile := service.NewReconcileService(store, &billing.MockProvider{}, pub, testLogger(), service.ReconcileConfig{})
	webhooks := service.NewWebhookService(ledger, store, reconcile, pub, testLogger(), "tok", 3)

	w := NewWorker(ledger, webhooks, Config{MaxConcurrency: 2, BatchSize: 10}, testLogger())

	sem := make(chan struct{}, w.config.MaxConcurrency)
	var wg sync.WaitGroup
	w.drainBatch(context.Background(), sem, &wg)
	wg.Wait()

	require.Equal(t, []string{service.ActionActivated}, ledger.ProcessedCalls)
}

func TestDrainBatch_ListFailureIsNonFatal(t *testing.T) {
	ledger := &service.MockWebhookLedger{
		ListRetryableFunc: func(ctx context.Context, staleAfter time.Duration, limit int) ([]*domain.WebhookEvent, error) {
			return nil, context.DeadlineExceeded
		},
	}
	w := NewWorker(ledger, nil, Config{}, testLogger())

	sem := make(chan struct{}, 1)
	var wg sync.WaitGroup
	w.drainBatch(context.Background(), sem, &wg)
	wg.Wait()
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	ledger := &service.MockWebhookLedger{}
	w := NewWorker(ledger, nil, Config{PollInterval: 10 * time.Millisecond}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(&service.MockWebhookLedger{}, nil, Config{}, testLogger())

	assert.NotEmpty(t, w.config.WorkerID)
	assert.Equal(t, 30*time.Second, w.config.PollInterval)
	assert.Equal(t, 5, w.config.MaxConcurrency)
	assert.Equal(t, 50, w.config.BatchSize)
	assert.Equal(t, 5*time.Minute, w.config.StaleClaimAfter)
}
