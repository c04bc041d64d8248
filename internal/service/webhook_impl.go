package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/events"
	"github.com/davishaupt/baldr/internal/telemetry"
)

// Compile-time check
var _ WebhookService = (*WebhookServiceImpl)(nil)

type WebhookServiceImpl struct {
	ledger    domain.WebhookLedger
	store     domain.BillingStore
	reconcile ReconcileService
	publisher events.Publisher
	logger    *slog.Logger

	accessToken string
	maxAttempts int

	now func() time.Time
}

func NewWebhookService(ledger domain.WebhookLedger, store domain.BillingStore, reconcile ReconcileService, publisher events.Publisher, logger *slog.Logger, accessToken string, maxAttempts int) *WebhookServiceImpl {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &WebhookServiceImpl{
		ledger:      ledger,
		store:       store,
		reconcile:   reconcile,
		publisher:   publisher,
		logger:      logger,
		accessToken: accessToken,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (s *WebhookServiceImpl) Ingest(ctx context.Context, token string, body []byte) (*ProcessingResult, error) {
	const op = "WebhookService.Ingest"

	// Fail closed: an empty configured token rejects everything rather
	// than accepting everything.
	if s.accessToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.accessToken)) != 1 {
		s.logger.Warn("webhook rejected, bad access token")
		return nil, ErrInvalidAccessToken
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.logger.Warn("webhook rejected, malformed body", slog.String("error", err.Error()))
		return nil, ErrMalformedPayload
	}
	if !KnownEventType(payload.Event) {
		// Unknown event vocabulary is rejected, not persisted. The known
		// but unmodeled types (invoices, transfers) pass through and are
		// settled as ignored below, so the ledger still records them.
		s.logger.Warn("webhook rejected, unknown event type", slog.String("event_type", payload.Event))
		return nil, ErrUnknownEventType
	}

	if tm := telemetry.Business; tm != nil {
		tm.WebhookReceived.WithLabelValues(SourceAsaas, payload.Event).Inc()
	}

	event, created, err := s.ledger.Ingest(ctx, domain.IngestEventParams{
		Source:          SourceAsaas,
		ExternalEventID: payload.ID,
		EventType:       payload.Event,
		Payload:         body,
		MaxAttempts:     s.maxAttempts,
	})
	if err != nil {
		return nil, domain.StoreAdapterError(err, op)
	}

	if !created {
		// Redelivery. Whatever state the original entry is in, the answer
		// to the processor is the same: acknowledged, do not resend.
		s.logger.Info("duplicate webhook delivery",
			slog.String("event_id", event.ID.String()),
			slog.String("external_event_id", event.ExternalEventID),
			slog.String("status", string(event.Status)))
		action := ActionDuplicate
		if event.Status == domain.WebhookStatusProcessing {
			action = ActionInProgress
		}
		return &ProcessingResult{
			EventID:   event.ID,
			EventType: event.EventType,
			TenantID:  event.TenantID,
			Action:    action,
			Success:   true,
		}, nil
	}

	return s.ProcessEvent(ctx, event)
}

func (s *WebhookServiceImpl) ProcessEvent(ctx context.Context, event *domain.WebhookEvent) (*ProcessingResult, error) {
	const op = "WebhookService.ProcessEvent"

	start := s.now()

	claimed, err := s.ledger.Claim(ctx, event.ID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			// Another worker owns it. Benign, acknowledge and move on.
			return &ProcessingResult{
				EventID:   event.ID,
				EventType: event.EventType,
				Action:    ActionInProgress,
				Success:   true,
			}, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			// Settled between listing and claiming.
			return &ProcessingResult{
				EventID:   event.ID,
				EventType: event.EventType,
				Action:    ActionDuplicate,
				Success:   true,
			}, nil
		}
		return nil, domain.StoreAdapterError(err, op)
	}

	result := s.dispatch(ctx, claimed)

	if tm := telemetry.Business; tm != nil {
		tm.WebhookLatency.WithLabelValues(claimed.EventType).Observe(time.Since(start).Seconds())
	}
	return result, nil
}

// dispatch routes a claimed ledger entry to its reconciliation handler and
// settles the entry. It never returns an error: handler failures are recorded
// on the entry itself and reported through the result.
func (s *WebhookServiceImpl) dispatch(ctx context.Context, event *domain.WebhookEvent) *ProcessingResult {
	var payload WebhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		// Should have been caught at ingest; a stored payload that no
		// longer parses is not going to parse on retry either.
		return s.settleFailed(ctx, event, nil, "stored payload does not parse: "+err.Error())
	}

	switch {
	case isPaymentEvent(event.EventType):
		if payload.Payment == nil {
			return s.settleFailed(ctx, event, nil, "payment event without payment body")
		}
		return s.dispatchPayment(ctx, event, payload.Payment)

	case isSubscriptionEvent(event.EventType):
		if payload.Subscription == nil {
			return s.settleFailed(ctx, event, nil, "subscription event without subscription body")
		}
		return s.dispatchSubscription(ctx, event, payload.Subscription)

	default:
		// Known vocabulary we deliberately do not act on.
		return s.settleIgnored(ctx, event, nil, ActionUnmodeled)
	}
}

func (s *WebhookServiceImpl) dispatchPayment(ctx context.Context, event *domain.WebhookEvent, payment *PaymentEvent) *ProcessingResult {
	rec, ok := s.resolveTenant(ctx, payment.SubscriptionID, payment.CustomerID)
	if !ok {
		return s.settleIgnored(ctx, event, nil, ActionTenantNotFound)
	}

	var action string
	var err error
	switch event.EventType {
	case EventPaymentCreated:
		action, err = s.reconcile.HandlePaymentCreated(ctx, rec, payment)
	case EventPaymentConfirmed, EventPaymentReceived:
		action, err = s.reconcile.HandlePaymentConfirmed(ctx, rec, payment)
	case EventPaymentOverdue:
		action, err = s.reconcile.HandlePaymentOverdue(ctx, rec, payment)
	case EventPaymentRefunded:
		action, err = s.reconcile.HandlePaymentRefunded(ctx, rec, payment)
	}
	if err != nil {
		return s.settleFailed(ctx, event, &rec.TenantID, err.Error())
	}
	return s.settleProcessed(ctx, event, rec.TenantID, action)
}

func (s *WebhookServiceImpl) dispatchSubscription(ctx context.Context, event *domain.WebhookEvent, sub *SubscriptionEvent) *ProcessingResult {
	rec, ok := s.resolveTenant(ctx, sub.ID, sub.CustomerID)
	if !ok {
		return s.settleIgnored(ctx, event, nil, ActionTenantNotFound)
	}

	var action string
	var err error
	switch event.EventType {
	case EventSubscriptionCanceled:
		action, err = s.reconcile.HandleSubscriptionCanceled(ctx, rec, sub)
	default:
		action, err = s.reconcile.HandleSubscriptionChanged(ctx, rec, event.EventType)
	}
	if err != nil {
		return s.settleFailed(ctx, event, &rec.TenantID, err.Error())
	}
	return s.settleProcessed(ctx, event, rec.TenantID, action)
}

// resolveTenant maps processor identifiers to a local tenant, preferring the
// subscription id over the customer id.
func (s *WebhookServiceImpl) resolveTenant(ctx context.Context, subscriptionID, customerID string) (*domain.TenantBillingRecord, bool) {
	if subscriptionID != "" {
		rec, err := s.store.GetByExternalSubscription(ctx, subscriptionID)
		if err == nil {
			return rec, true
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("tenant lookup by subscription failed",
				slog.String("subscription_id", subscriptionID),
				slog.String("error", err.Error()))
		}
	}
	if customerID != "" {
		rec, err := s.store.GetByExternalCustomer(ctx, customerID)
		if err == nil {
			return rec, true
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("tenant lookup by customer failed",
				slog.String("customer_id", customerID),
				slog.String("error", err.Error()))
		}
	}
	return nil, false
}

func (s *WebhookServiceImpl) settleProcessed(ctx context.Context, event *domain.WebhookEvent, tenantID uuid.UUID, action string) *ProcessingResult {
	if err := s.ledger.MarkProcessed(ctx, event.ID, &tenantID, action); err != nil {
		s.logger.Error("failed to settle webhook as processed",
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()))
	}
	s.logger.Info("webhook processed",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("tenant_id", tenantID.String()),
		slog.String("action", action))
	if tm := telemetry.Business; tm != nil {
		tm.WebhookProcessed.WithLabelValues(tenantID.String(), event.EventType).Inc()
	}
	return &ProcessingResult{
		EventID:   event.ID,
		EventType: event.EventType,
		TenantID:  &tenantID,
		Action:    action,
		Success:   true,
	}
}

func (s *WebhookServiceImpl) settleIgnored(ctx context.Context, event *domain.WebhookEvent, tenantID *uuid.UUID, reason string) *ProcessingResult {
	if err := s.ledger.MarkIgnored(ctx, event.ID, reason); err != nil {
		s.logger.Error("failed to settle webhook as ignored",
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()))
	}
	s.logger.Info("webhook ignored",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("reason", reason))
	if tm := telemetry.Business; tm != nil {
		tm.WebhookIgnored.WithLabelValues(event.EventType, reason).Inc()
	}
	return &ProcessingResult{
		EventID:   event.ID,
		EventType: event.EventType,
		TenantID:  tenantID,
		Action:    reason,
		Success:   true,
	}
}

func (s *WebhookServiceImpl) settleFailed(ctx context.Context, event *domain.WebhookEvent, tenantID *uuid.UUID, errMsg string) *ProcessingResult {
	if err := s.ledger.MarkFailed(ctx, event.ID, errMsg); err != nil {
		s.logger.Error("failed to record webhook failure",
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()))
	}
	s.logger.Error("webhook processing failed",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.Int("attempts", event.Attempts),
		slog.Int("max_attempts", event.MaxAttempts),
		slog.String("error", errMsg))

	tenantLabel := "unknown"
	if tenantID != nil {
		tenantLabel = tenantID.String()
	}
	if tm := telemetry.Business; tm != nil {
		tm.WebhookFailed.WithLabelValues(tenantLabel, event.EventType, failureReason(errMsg)).Inc()
	}

	if event.Exhausted() {
		// Out of budget. This is the terminal failure, announce it so an
		// operator or downstream consumer can intervene.
		if err := s.publisher.WebhookFailed(events.WebhookFailed{
			EventID:    event.ID,
			TenantID:   tenantID,
			EventType:  event.EventType,
			Error:      errMsg,
			Attempts:   event.Attempts,
			OccurredAt: s.now().UTC(),
		}); err != nil {
			s.logger.Error("failed to publish webhook failure",
				slog.String("event_id", event.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	return &ProcessingResult{
		EventID:   event.ID,
		EventType: event.EventType,
		TenantID:  tenantID,
		Success:   false,
		Error:     errMsg,
	}
}

// failureReason buckets an error message into a low-cardinality metric label.
func failureReason(errMsg string) string {
	switch {
	case strings.Contains(errMsg, "invalid billing transition"):
		return "invalid_transition"
	case strings.Contains(errMsg, "Payment processor request failed"):
		return "processor_unavailable"
	case strings.Contains(errMsg, "Billing store operation failed"):
		return "store_unavailable"
	default:
		return "handler_error"
	}
}
