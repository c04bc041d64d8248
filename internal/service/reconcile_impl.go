package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/billing"
	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/events"
	"github.com/davishaupt/baldr/internal/telemetry"
)

// Compile-time check
var _ ReconcileService = (*ReconcileServiceImpl)(nil)

type ReconcileServiceImpl struct {
	store     domain.BillingStore
	provider  billing.Provider
	publisher events.Publisher
	logger    *slog.Logger
	cfg       ReconcileConfig

	// now is swappable so tests can pin the clock
	now func() time.Time
}

func NewReconcileService(store domain.BillingStore, provider billing.Provider, publisher events.Publisher, logger *slog.Logger, cfg ReconcileConfig) *ReconcileServiceImpl {
	if cfg.SuspensionThresholdDays <= 0 {
		cfg.SuspensionThresholdDays = 15
	}
	return &ReconcileServiceImpl{
		store:     store,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *ReconcileServiceImpl) HandlePaymentCreated(ctx context.Context, rec *domain.TenantBillingRecord, payment *PaymentEvent) (string, error) {
	s.logger.Info("payment created",
		slog.String("tenant_id", rec.TenantID.String()),
		slog.String("payment_id", payment.ID),
		slog.Int64("value_cents", payment.ValueCents),
		slog.String("due_date", payment.DueDate))
	return ActionLogged, nil
}

func (s *ReconcileServiceImpl) HandlePaymentConfirmed(ctx context.Context, rec *domain.TenantBillingRecord, payment *PaymentEvent) (string, error) {
	const op = "ReconcileService.HandlePaymentConfirmed"

	next, err := domain.Transition(rec.Status, domain.BillingStatusActive)
	if err != nil {
		s.recordInvalidTransition(rec.TenantID, rec.Status, domain.BillingStatusActive)
		return "", domain.WrapError(err, domain.ECONFLICT, op, "Billing transition rejected")
	}

	meta := rec.Metadata
	meta.DaysOverdue = nil
	if paidAt := parseProcessorDate(payment.PaymentDate); paidAt != nil {
		meta.LastPaymentAt = paidAt
	} else {
		now := s.now().UTC()
		meta.LastPaymentAt = &now
	}

	updated, err := s.store.Update(ctx, rec.TenantID, domain.UpdateBillingParams{
		Status:   &next,
		Metadata: &meta,
	})
	if err != nil {
		return "", domain.StoreAdapterError(err, op)
	}
	s.applied(rec, updated, "payment confirmed", EventPaymentConfirmed)
	return ActionActivated, nil
}

func (s *ReconcileServiceImpl) HandlePaymentOverdue(ctx context.Context, rec *domain.TenantBillingRecord, payment *PaymentEvent) (string, error) {
	const op = "ReconcileService.HandlePaymentOverdue"

	days := s.daysOverdue(payment)
	target := domain.BillingStatusOverdue
	action := ActionOverdue
	if days >= s.cfg.SuspensionThresholdDays {
		target = domain.BillingStatusSuspended
		action = ActionSuspended
	}

	meta := rec.Metadata
	meta.DaysOverdue = &days

	if rec.Status == target {
		// Redelivery or a later overdue ping for the same invoice. Keep
		// the counter current, nothing else to do.
		if _, err := s.store.Update(ctx, rec.TenantID, domain.UpdateBillingParams{Metadata: &meta}); err != nil {
			return "", domain.StoreAdapterError(err, op)
		}
		return ActionNoop, nil
	}

	next, terr := domain.Transition(rec.Status, target)
	if terr != nil {
		// The transition is stale (tenant already canceled, or overdue
		// arrived before any activation). The overdue counter is still a
		// fact worth keeping before we surface the conflict.
		if _, err := s.store.Update(ctx, rec.TenantID, domain.UpdateBillingParams{Metadata: &meta}); err != nil {
			s.logger.Error("failed to persist overdue counter",
				slog.String("tenant_id", rec.TenantID.String()),
				slog.String("error", err.Error()))
		}
		s.recordInvalidTransition(rec.TenantID, rec.Status, target)
		return "", domain.WrapError(terr, domain.ECONFLICT, op, "Billing transition rejected")
	}

	updated, err := s.store.Update(ctx, rec.TenantID, domain.UpdateBillingParams{
		Status:   &next,
		Metadata: &meta,
	})
	if err != nil {
		return "", domain.StoreAdapterError(err, op)
	}
	s.applied(rec, updated, "payment overdue", EventPaymentOverdue)
	s.logger.Warn("tenant overdue",
		slog.String("tenant_id", rec.TenantID.String()),
		slog.Int("days_overdue", days),
		slog.String("status", string(updated.Status)))
	return action, nil
}

func (s *ReconcileServiceImpl) HandlePaymentRefunded(ctx context.Context, rec *domain.TenantBillingRecord, payment *PaymentEvent) (string, error) {
	s.logger.Warn("payment refunded, no automatic status change",
		slog.String("tenant_id", rec.TenantID.String()),
		slog.String("payment_id", payment.ID),
		slog.Int64("value_cents", payment.ValueCents))
	return ActionLogged, nil
}

func (s *ReconcileServiceImpl) HandleSubscriptionChanged(ctx context.Context, rec *domain.TenantBillingRecord, eventType string) (string, error) {
	if _, err := s.Sync(ctx, rec.TenantID); err != nil {
		return "", err
	}
	return ActionSynced, nil
}

func (s *ReconcileServiceImpl) HandleSubscriptionCanceled(ctx context.Context, rec *domain.TenantBillingRecord, sub *SubscriptionEvent) (string, error) {
	const op = "ReconcileService.HandleSubscriptionCanceled"

	if rec.Status == domain.BillingStatusCanceled {
		// Already canceled locally, likely our own cancellation echoed
		// back. A sync settles any drift instead of erroring.
		if _, err := s.Sync(ctx, rec.TenantID); err != nil {
			return "", err
		}
		return ActionSynced, nil
	}

	next, err := domain.Transition(rec.Status, domain.BillingStatusCanceled)
	if err != nil {
		s.recordInvalidTransition(rec.TenantID, rec.Status, domain.BillingStatusCanceled)
		return "", domain.WrapError(err, domain.ECONFLICT, op, "Billing transition rejected")
	}

	updated, uerr := s.store.Update(ctx, rec.TenantID, domain.UpdateBillingParams{Status: &next})
	if uerr != nil {
		return "", domain.StoreAdapterError(uerr, op)
	}
	s.applied(rec, updated, "subscription canceled", EventSubscriptionCanceled)
	return ActionCanceled, nil
}

// Sync pulls the remote subscription snapshot and settles local status
// against it. Remote state only moves local status when it carries strictly
// more information: a remote ACTIVE never demotes a trial (the trial clock is
// local knowledge the processor does not track) and never promotes a tenant
// that has not paid yet, unless KeepTrialOnRemoteActive is disabled.
func (s *ReconcileServiceImpl) Sync(ctx context.Context, tenantID uuid.UUID) (*domain.TenantBillingRecord, error) {
	const op = "ReconcileService.Sync"

	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		s.recordSyncFailed(tenantID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "tenant billing record", tenantID.String())
		}
		return nil, domain.StoreAdapterError(err, op)
	}
	if rec.ExternalSubscriptionID == "" {
		s.recordSyncFailed(tenantID)
		return nil, ErrNoSubscriptionBound
	}

	start := s.now()
	sub, err := s.provider.GetSubscription(ctx, rec.ExternalSubscriptionID)
	if tm := telemetry.Business; tm != nil {
		tm.ProcessorAPILatency.WithLabelValues("get_subscription").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.recordSyncFailed(tenantID)
		return nil, domain.ExternalClientError(err, op)
	}

	candidate := s.mapRemoteStatus(rec, sub)
	meta := rec.Metadata
	meta.NextBillingAt = sub.NextDueDate
	if sub.ValueCents > 0 {
		meta.PriceCents = sub.ValueCents
	}
	if sub.Cycle != "" {
		meta.Cycle = sub.Cycle
	}

	if candidate == "" || candidate == rec.Status {
		updated, uerr := s.store.Update(ctx, tenantID, domain.UpdateBillingParams{Metadata: &meta})
		if uerr != nil {
			s.recordSyncFailed(tenantID)
			return nil, domain.StoreAdapterError(uerr, op)
		}
		s.recordSyncRun(tenantID, "unchanged")
		return updated, nil
	}

	next, terr := domain.Transition(rec.Status, candidate)
	if terr != nil {
		s.recordInvalidTransition(tenantID, rec.Status, candidate)
		s.recordSyncFailed(tenantID)
		return nil, domain.WrapError(terr, domain.ECONFLICT, op, "Billing transition rejected")
	}

	updated, uerr := s.store.Update(ctx, tenantID, domain.UpdateBillingParams{
		Status:   &next,
		Metadata: &meta,
	})
	if uerr != nil {
		s.recordSyncFailed(tenantID)
		return nil, domain.StoreAdapterError(uerr, op)
	}
	s.applied(rec, updated, "sync", "sync")
	s.recordSyncRun(tenantID, "changed")
	return updated, nil
}

// mapRemoteStatus decides which local status the remote snapshot argues for.
// Empty string means the snapshot carries no opinion and local state wins.
func (s *ReconcileServiceImpl) mapRemoteStatus(rec *domain.TenantBillingRecord, sub *billing.Subscription) domain.BillingStatus {
	if sub.Deleted {
		return domain.BillingStatusCanceled
	}
	switch sub.Status {
	case billing.SubscriptionStatusActive:
		if s.cfg.KeepTrialOnRemoteActive &&
			(rec.Status == domain.BillingStatusTrial || rec.Status == domain.BillingStatusPendingPayment) {
			return rec.Status
		}
		return domain.BillingStatusActive
	case billing.SubscriptionStatusInactive:
		return domain.BillingStatusSuspended
	case billing.SubscriptionStatusExpired:
		return domain.BillingStatusCanceled
	default:
		s.logger.Warn("unrecognized remote subscription status",
			slog.String("tenant_id", rec.TenantID.String()),
			slog.String("remote_status", sub.Status))
		return ""
	}
}

// daysOverdue measures whole days between the payment's due date and now,
// clamped at zero. A missing or malformed due date counts as zero days so
// the event still lands on overdue, never suspended.
func (s *ReconcileServiceImpl) daysOverdue(payment *PaymentEvent) int {
	due := parseProcessorDate(payment.DueDate)
	if due == nil {
		return 0
	}
	days := int(s.now().UTC().Sub(*due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func (s *ReconcileServiceImpl) applied(before, after *domain.TenantBillingRecord, reason, cause string) {
	if before.Status == after.Status {
		return
	}
	s.logger.Info("billing status changed",
		slog.String("tenant_id", after.TenantID.String()),
		slog.String("from", string(before.Status)),
		slog.String("to", string(after.Status)),
		slog.String("reason", reason))
	if tm := telemetry.Business; tm != nil {
		tm.StatusTransitions.WithLabelValues(
			after.TenantID.String(), string(before.Status), string(after.Status)).Inc()
	}
	if err := s.publisher.StatusChanged(events.StatusChanged{
		TenantID:   after.TenantID,
		From:       before.Status,
		To:         after.Status,
		Cause:      cause,
		OccurredAt: s.now().UTC(),
	}); err != nil {
		// Publishing is best effort. The store write already committed.
		s.logger.Error("failed to publish status change",
			slog.String("tenant_id", after.TenantID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *ReconcileServiceImpl) recordInvalidTransition(tenantID uuid.UUID, from, to domain.BillingStatus) {
	s.logger.Warn("invalid billing transition rejected",
		slog.String("tenant_id", tenantID.String()),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	if tm := telemetry.Business; tm != nil {
		tm.InvalidTransitions.WithLabelValues(tenantID.String(), string(from), string(to)).Inc()
	}
}

func (s *ReconcileServiceImpl) recordSyncRun(tenantID uuid.UUID, outcome string) {
	if tm := telemetry.Business; tm != nil {
		tm.SyncRuns.WithLabelValues(tenantID.String(), outcome).Inc()
	}
}

func (s *ReconcileServiceImpl) recordSyncFailed(tenantID uuid.UUID) {
	if tm := telemetry.Business; tm != nil {
		tm.SyncFailed.WithLabelValues(tenantID.String()).Inc()
	}
}
