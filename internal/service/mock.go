package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
)

// MockBillingStore is a test double for domain.BillingStore with per-method
// function fields and call recording.
type MockBillingStore struct {
	GetFunc                       func(ctx context.Context, tenantID uuid.UUID) (*domain.TenantBillingRecord, error)
	GetByExternalSubscriptionFunc func(ctx context.Context, subscriptionID string) (*domain.TenantBillingRecord, error)
	GetByExternalCustomerFunc     func(ctx context.Context, customerID string) (*domain.TenantBillingRecord, error)
	UpdateFunc                    func(ctx context.Context, tenantID uuid.UUID, params domain.UpdateBillingParams) (*domain.TenantBillingRecord, error)

	UpdateCalls []domain.UpdateBillingParams
}

var _ domain.BillingStore = (*MockBillingStore)(nil)

func (m *MockBillingStore) Get(ctx context.Context, tenantID uuid.UUID) (*domain.TenantBillingRecord, error) {
	if m.GetFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.GetFunc(ctx, tenantID)
}

func (m *MockBillingStore) GetByExternalSubscription(ctx context.Context, subscriptionID string) (*domain.TenantBillingRecord, error) {
	if m.GetByExternalSubscriptionFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.GetByExternalSubscriptionFunc(ctx, subscriptionID)
}

func (m *MockBillingStore) GetByExternalCustomer(ctx context.Context, customerID string) (*domain.TenantBillingRecord, error) {
	if m.GetByExternalCustomerFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.GetByExternalCustomerFunc(ctx, customerID)
}

func (m *MockBillingStore) Update(ctx context.Context, tenantID uuid.UUID, params domain.UpdateBillingParams) (*domain.TenantBillingRecord, error) {
	m.UpdateCalls = append(m.UpdateCalls, params)
	if m.UpdateFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.UpdateFunc(ctx, tenantID, params)
}

// MockWebhookLedger is a test double for domain.WebhookLedger.
type MockWebhookLedger struct {
	IngestFunc        func(ctx context.Context, params domain.IngestEventParams) (*domain.WebhookEvent, bool, error)
	ClaimFunc         func(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error)
	MarkProcessedFunc func(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID, result string) error
	MarkIgnoredFunc   func(ctx context.Context, id uuid.UUID, result string) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID, errMsg string) error
	ListRetryableFunc func(ctx context.Context, staleAfter time.Duration, limit int) ([]*domain.WebhookEvent, error)

	ProcessedCalls []string
	IgnoredCalls   []string
	FailedCalls    []string
}

var _ domain.WebhookLedger = (*MockWebhookLedger)(nil)

func (m *MockWebhookLedger) Ingest(ctx context.Context, params domain.IngestEventParams) (*domain.WebhookEvent, bool, error) {
	if m.IngestFunc == nil {
		return nil, false, domain.ErrNotFound
	}
	return m.IngestFunc(ctx, params)
}

func (m *MockWebhookLedger) Claim(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	if m.ClaimFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.ClaimFunc(ctx, id)
}

func (m *MockWebhookLedger) MarkProcessed(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID, result string) error {
	m.ProcessedCalls = append(m.ProcessedCalls, result)
	if m.MarkProcessedFunc == nil {
		return nil
	}
	return m.MarkProcessedFunc(ctx, id, tenantID, result)
}

func (m *MockWebhookLedger) MarkIgnored(ctx context.Context, id uuid.UUID, result string) error {
	m.IgnoredCalls = append(m.IgnoredCalls, result)
	if m.MarkIgnoredFunc == nil {
		return nil
	}
	return m.MarkIgnoredFunc(ctx, id, result)
}

func (m *MockWebhookLedger) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	m.FailedCalls = append(m.FailedCalls, errMsg)
	if m.MarkFailedFunc == nil {
		return nil
	}
	return m.MarkFailedFunc(ctx, id, errMsg)
}

func (m *MockWebhookLedger) ListRetryable(ctx context.Context, staleAfter time.Duration, limit int) ([]*domain.WebhookEvent, error) {
	if m.ListRetryableFunc == nil {
		return nil, nil
	}
	return m.ListRetryableFunc(ctx, staleAfter, limit)
}

// MockPlanStore is a test double for domain.PlanStore.
type MockPlanStore struct {
	GetPlanFunc   func(ctx context.Context, id string) (*domain.BillingPlan, error)
	ListPlansFunc func(ctx context.Context) ([]*domain.BillingPlan, error)
}

var _ domain.PlanStore = (*MockPlanStore)(nil)

func (m *MockPlanStore) GetPlan(ctx context.Context, id string) (*domain.BillingPlan, error) {
	if m.GetPlanFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.GetPlanFunc(ctx, id)
}

func (m *MockPlanStore) ListPlans(ctx context.Context) ([]*domain.BillingPlan, error) {
	if m.ListPlansFunc == nil {
		return nil, nil
	}
	return m.ListPlansFunc(ctx)
}
