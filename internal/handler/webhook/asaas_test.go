package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davishaupt/baldr/internal/billing"
	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/events"
	"github.com/davishaupt/baldr/internal/service"
)

const testToken = "whk_secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires a handler over real services with in-memory doubles.
type fixture struct {
	handler *AsaasHandler
	store   *service.MockBillingStore
	ledger  *service.MockWebhookLedger
}

func newFixture(rec *domain.TenantBillingRecord) *fixture {
	store := &service.MockBillingStore{}
	if rec != nil {
		store.GetFunc = func(ctx context.Context, id uuid.UUID) (*domain.TenantBillingRecord, error) {
			return rec, nil
		}
		store.GetByExternalSubscriptionFunc = func(ctx context.Context, id string) (*domain.TenantBillingRecord, error) {
			if id == rec.ExternalSubscriptionID {
				return rec, nil
			}
			return nil, domain.ErrNotFound
		}
		store.UpdateFunc = func(ctx context.Context, id uuid.UUID, params domain.UpdateBillingParams) (*domain.TenantBillingRecord, error) {
			updated := *rec
			if params.Status != nil {
				updated.Status = *params.Status
			}
			if params.Metadata != nil {
				updated.Metadata = *params.Metadata
			}
			return &updated, nil
		}
	}

	ledger := &service.MockWebhookLedger{}
	var last *domain.WebhookEvent
	ledger.IngestFunc = func(ctx context.Context, params domain.IngestEventParams) (*domain.WebhookEvent, bool, error) {
		last = &domain.WebhookEvent{
			ID:              uuid.New(),
			Source:          params.Source,
			ExternalEventID: params.ExternalEventID,
			EventType:       params.EventType,
			Payload:         params.Payload,
			Status:          domain.WebhookStatusPending,
			MaxAttempts:     params.MaxAttempts,
		}
		return last, true, nil
	}
	ledger.ClaimFunc = func(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
		if last == nil || last.ID != id {
			return nil, domain.ErrNotFound
		}
		last.Status = domain.WebhookStatusProcessing
		last.Attempts++
		return last, nil
	}

	pub := &events.RecordingPublisher{}
	reconcile := service.NewReconcileService(store, &billing.MockProvider{}, pub, discardLogger(), service.ReconcileConfig{})
	webhooks := service.NewWebhookService(ledger, store, reconcile, pub, discardLogger(), testToken, 3)

	return &fixture{
		handler: NewAsaasHandler(webhooks, discardLogger()),
		store:   store,
		ledger:  ledger,
	}
}

func (f *fixture) post(t *testing.T, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/asaas", bytes.NewReader([]byte(body)))
	if token != "" {
		req.Header.Set(billing.AccessTokenHeader, token)
	}
	rr := httptest.NewRecorder()
	f.handler.HandleWebhook(rr, req)
	return rr
}

func TestHandleWebhook_RejectsMissingToken(t *testing.T) {
	f := newFixture(nil)

	rr := f.post(t, "", `{"event":"PAYMENT_CONFIRMED","id":"evt_1"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleWebhook_RejectsUnknownEventType(t *testing.T) {
	f := newFixture(nil)

	rr := f.post(t, testToken, `{"event":"SOMETHING_ELSE","id":"evt_1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleWebhook_AcknowledgesProcessedEvent(t *testing.T) {
	rec := &domain.TenantBillingRecord{
		TenantID:               uuid.New(),
		ExternalSubscriptionID: "sub_123",
		Status:                 domain.BillingStatusPendingPayment,
	}
	f := newFixture(rec)

	rr := f.post(t, testToken, `{"event":"PAYMENT_CONFIRMED","id":"evt_1","payment":{"id":"pay_1","customer":"cus_1","subscription":"sub_123","value":4900}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Success   bool   `json:"success"`
		EventType string `json:"event_type"`
		Action    string `json:"action"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "PAYMENT_CONFIRMED", resp.EventType)
	assert.Equal(t, service.ActionActivated, resp.Action)
}

func TestHandleWebhook_AcknowledgesHandlerFailure(t *testing.T) {
	rec := &domain.TenantBillingRecord{
		TenantID:               uuid.New(),
		ExternalSubscriptionID: "sub_123",
		Status:                 domain.BillingStatusCanceled,
	}
	f := newFixture(rec)

	rr := f.post(t, testToken, `{"event":"PAYMENT_CONFIRMED","id":"evt_1","payment":{"id":"pay_1","customer":"cus_1","subscription":"sub_123"}}`)
	// The ledger entry owns the retry; the processor must not resend.
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, f.ledger.FailedCalls, 1)
	assert.Contains(t, f.ledger.FailedCalls[0], "invalid billing transition: canceled -> active")

	// The acknowledgment still reports the failure.
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid billing transition")
}

func TestHandleWebhook_LedgerFailureAsksForRedelivery(t *testing.T) {
	f := newFixture(nil)
	f.ledger.IngestFunc = func(ctx context.Context, params domain.IngestEventParams) (*domain.WebhookEvent, bool, error) {
		return nil, false, context.DeadlineExceeded
	}

	rr := f.post(t, testToken, `{"event":"PAYMENT_CONFIRMED","id":"evt_1","payment":{"id":"pay_1","customer":"cus_1"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
