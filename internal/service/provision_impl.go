package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/billing"
	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/events"
	"github.com/davishaupt/baldr/internal/telemetry"
)

// The processor collects the payment method from the customer at checkout;
// subscriptions are created without pinning one.
const defaultBillingType = "UNDEFINED"

// Compile-time check
var _ ProvisionService = (*ProvisionServiceImpl)(nil)

type ProvisionServiceImpl struct {
	store     domain.BillingStore
	plans     domain.PlanStore
	provider  billing.Provider
	publisher events.Publisher
	logger    *slog.Logger
	validate  *validator.Validate

	// now is swappable so tests can pin the clock
	now func() time.Time
}

func NewProvisionService(store domain.BillingStore, plans domain.PlanStore, provider billing.Provider, publisher events.Publisher, logger *slog.Logger) *ProvisionServiceImpl {
	return &ProvisionServiceImpl{
		store:     store,
		plans:     plans,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
		validate:  validator.New(),
		now:       time.Now,
	}
}

func (s *ProvisionServiceImpl) Subscribe(ctx context.Context, tenantID uuid.UUID, params SubscribeParams) (*domain.TenantBillingRecord, error) {
	const op = "ProvisionService.Subscribe"

	if err := s.validate.Struct(params); err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, op, "Invalid subscription request")
	}

	rec, err := s.getRecord(ctx, op, tenantID)
	if err != nil {
		return nil, err
	}
	if rec.ExternalSubscriptionID != "" && rec.Status != domain.BillingStatusCanceled {
		return nil, ErrAlreadySubscribed
	}

	plan, err := s.getPlan(ctx, op, params.PlanID)
	if err != nil {
		return nil, err
	}

	customerID := rec.ExternalCustomerID
	if customerID == "" {
		cust, cerr := s.createCustomer(ctx, tenantID, params)
		if cerr != nil {
			return nil, domain.ExternalClientError(cerr, op)
		}
		customerID = cust.ID
	}

	firstDue := s.now().UTC().AddDate(0, 0, plan.TrialDays)
	sub, err := s.createSubscription(ctx, billing.CreateSubscriptionParams{
		CustomerID:  customerID,
		BillingType: defaultBillingType,
		ValueCents:  plan.PriceCents,
		Cycle:       plan.Cycle,
		Description: plan.Name,
		NextDueDate: firstDue.Format("2006-01-02"),
		ExtRef:      tenantID.String(),
	})
	if err != nil {
		return nil, domain.ExternalClientError(err, op)
	}

	// A fresh subscription starts a new billing lifecycle, so the status is
	// reset directly rather than transitioned. This is the one sanctioned
	// way out of the terminal canceled state.
	status := domain.BillingStatusPendingPayment
	meta := domain.SubscriptionMetadata{
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		PriceCents:    plan.PriceCents,
		Currency:      plan.Currency,
		Cycle:         plan.Cycle,
		NextBillingAt: sub.NextDueDate,
	}
	if plan.TrialDays > 0 {
		status = domain.BillingStatusTrial
		meta.TrialEndsAt = &firstDue
	}

	updated, uerr := s.store.Update(ctx, tenantID, domain.UpdateBillingParams{
		Status:                 &status,
		ExternalCustomerID:     &customerID,
		ExternalSubscriptionID: &sub.ID,
		Metadata:               &meta,
	})
	if uerr != nil {
		return nil, domain.StoreAdapterError(uerr, op)
	}

	s.logger.Info("subscription provisioned",
		slog.String("tenant_id", tenantID.String()),
		slog.String("plan_id", plan.ID),
		slog.String("subscription_id", sub.ID),
		slog.String("status", string(updated.Status)))
	s.statusChanged(rec, updated, "subscribe")
	return updated, nil
}

func (s *ProvisionServiceImpl) ChangePlan(ctx context.Context, tenantID uuid.UUID, params ChangePlanParams) (*domain.TenantBillingRecord, error) {
	const op = "ProvisionService.ChangePlan"

	if err := s.validate.Struct(params); err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, op, "Invalid plan change request")
	}

	rec, err := s.getRecord(ctx, op, tenantID)
	if err != nil {
		return nil, err
	}
	if rec.ExternalSubscriptionID == "" {
		return nil, ErrNoSubscriptionBound
	}

	plan, err := s.getPlan(ctx, op, params.PlanID)
	if err != nil {
		return nil, err
	}

	sub, err := s.updateSubscription(ctx, rec.ExternalSubscriptionID, billing.UpdateSubscriptionParams{
		ValueCents:  plan.PriceCents,
		Cycle:       plan.Cycle,
		Description: plan.Name,
	})
	if err != nil {
		return nil, domain.ExternalClientError(err, op)
	}

	meta := rec.Metadata
	meta.PlanID = plan.ID
	meta.PlanName = plan.Name
	meta.PriceCents = plan.PriceCents
	meta.Currency = plan.Currency
	meta.Cycle = plan.Cycle
	if sub.NextDueDate != nil {
		meta.NextBillingAt = sub.NextDueDate
	}

	updated, uerr := s.store.Update(ctx, tenantID, domain.UpdateBillingParams{Metadata: &meta})
	if uerr != nil {
		return nil, domain.StoreAdapterError(uerr, op)
	}

	s.logger.Info("subscription plan changed",
		slog.String("tenant_id", tenantID.String()),
		slog.String("plan_id", plan.ID))
	return updated, nil
}

func (s *ProvisionServiceImpl) Cancel(ctx context.Context, tenantID uuid.UUID) (*domain.TenantBillingRecord, error) {
	const op = "ProvisionService.Cancel"

	rec, err := s.getRecord(ctx, op, tenantID)
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.BillingStatusCanceled {
		return rec, nil
	}

	if rec.ExternalSubscriptionID != "" {
		if cerr := s.cancelSubscription(ctx, rec.ExternalSubscriptionID); cerr != nil {
			return nil, domain.ExternalClientError(cerr, op)
		}
	}

	next, terr := domain.Transition(rec.Status, domain.BillingStatusCanceled)
	if terr != nil {
		return nil, domain.WrapError(terr, domain.ECONFLICT, op, "Billing transition rejected")
	}

	updated, uerr := s.store.Update(ctx, tenantID, domain.UpdateBillingParams{Status: &next})
	if uerr != nil {
		return nil, domain.StoreAdapterError(uerr, op)
	}

	s.logger.Info("subscription canceled by tenant",
		slog.String("tenant_id", tenantID.String()),
		slog.String("subscription_id", rec.ExternalSubscriptionID))
	s.statusChanged(rec, updated, "cancel_requested")
	return updated, nil
}

func (s *ProvisionServiceImpl) getRecord(ctx context.Context, op string, tenantID uuid.UUID) (*domain.TenantBillingRecord, error) {
	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "tenant billing record", tenantID.String())
		}
		return nil, domain.StoreAdapterError(err, op)
	}
	return rec, nil
}

func (s *ProvisionServiceImpl) getPlan(ctx context.Context, op, planID string) (*domain.BillingPlan, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "billing plan", planID)
		}
		return nil, domain.StoreAdapterError(err, op)
	}
	return plan, nil
}

func (s *ProvisionServiceImpl) createCustomer(ctx context.Context, tenantID uuid.UUID, params SubscribeParams) (*billing.Customer, error) {
	start := s.now()
	cust, err := s.provider.CreateCustomer(ctx, billing.CreateCustomerParams{
		Name:    params.CustomerName,
		Email:   params.CustomerEmail,
		CPFCNPJ: params.CPFCNPJ,
		ExtRef:  tenantID.String(),
	})
	s.observeProcessor("create_customer", start)
	return cust, err
}

func (s *ProvisionServiceImpl) createSubscription(ctx context.Context, params billing.CreateSubscriptionParams) (*billing.Subscription, error) {
	start := s.now()
	sub, err := s.provider.CreateSubscription(ctx, params)
	s.observeProcessor("create_subscription", start)
	return sub, err
}

func (s *ProvisionServiceImpl) updateSubscription(ctx context.Context, subscriptionID string, params billing.UpdateSubscriptionParams) (*billing.Subscription, error) {
	start := s.now()
	sub, err := s.provider.UpdateSubscription(ctx, subscriptionID, params)
	s.observeProcessor("update_subscription", start)
	return sub, err
}

func (s *ProvisionServiceImpl) cancelSubscription(ctx context.Context, subscriptionID string) error {
	start := s.now()
	_, err := s.provider.CancelSubscription(ctx, subscriptionID)
	s.observeProcessor("cancel_subscription", start)
	return err
}

func (s *ProvisionServiceImpl) observeProcessor(operation string, start time.Time) {
	if tm := telemetry.Business; tm != nil {
		tm.ProcessorAPILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (s *ProvisionServiceImpl) statusChanged(before, after *domain.TenantBillingRecord, cause string) {
	if before.Status == after.Status {
		return
	}
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
		s.logger.Error("failed to publish status change",
			slog.String("tenant_id", after.TenantID.String()),
			slog.String("error", err.Error()))
	}
}
