package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
)

// AccessContext is the feature-gating view of a tenant's billing state,
// consumed by request middleware and by API callers. It is a pure projection:
// equal billing records always yield equal contexts.
type AccessContext struct {
	Status             domain.BillingStatus `json:"status"`
	SubscriptionActive bool                 `json:"subscription_active"`
	InTrial            bool                 `json:"in_trial"`
	IsOverdue          bool                 `json:"is_overdue"`
	IsSuspended        bool                 `json:"is_suspended"`
	DaysOverdue        int                  `json:"days_overdue"`
}

// AccessService exposes the access projection for a tenant.
type AccessService interface {
	GetAccess(ctx context.Context, tenantID uuid.UUID) (*AccessContext, error)
}

// Compile-time check
var _ AccessService = (*AccessServiceImpl)(nil)

type AccessServiceImpl struct {
	store domain.BillingStore
}

func NewAccessService(store domain.BillingStore) *AccessServiceImpl {
	return &AccessServiceImpl{store: store}
}

func (s *AccessServiceImpl) GetAccess(ctx context.Context, tenantID uuid.UUID) (*AccessContext, error) {
	const op = "AccessService.GetAccess"

	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "tenant billing record", tenantID.String())
		}
		return nil, domain.StoreAdapterError(err, op)
	}
	return ProjectAccess(rec), nil
}

// ProjectAccess derives the access flags from a billing record.
//
// IsSuspended covers canceled tenants too: both states block the product the
// same way, the distinction only matters for billing operations.
func ProjectAccess(rec *domain.TenantBillingRecord) *AccessContext {
	ac := &AccessContext{
		Status:             rec.Status,
		SubscriptionActive: domain.HasFullAccess(rec.Status),
		InTrial:            rec.Status == domain.BillingStatusTrial,
		IsOverdue:          rec.Status == domain.BillingStatusOverdue,
		IsSuspended: rec.Status == domain.BillingStatusSuspended ||
			rec.Status == domain.BillingStatusCanceled,
	}
	if rec.Metadata.DaysOverdue != nil {
		ac.DaysOverdue = *rec.Metadata.DaysOverdue
	}
	return ac
}
