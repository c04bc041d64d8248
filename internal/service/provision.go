package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
)

// SubscribeParams carries a tenant's request to start a paid subscription.
type SubscribeParams struct {
	PlanID        string `json:"plan_id" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	// CPFCNPJ is the Brazilian tax id the processor requires for boleto
	// and PIX charges. Optional for card-only customers.
	CPFCNPJ string `json:"cpf_cnpj,omitempty" validate:"omitempty,min=11,max=14"`
}

// ChangePlanParams carries a plan switch for an existing subscription.
type ChangePlanParams struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// ProvisionService drives the subscription lifecycle against the payment
// processor: customer registration, subscription creation, plan changes and
// cancellation requests.
//
// Provisioning only issues commands and records identifiers; billing STATUS
// is advanced by payment facts flowing back through webhooks and sync, not by
// the act of subscribing. The one exception is cancellation, which is applied
// locally right away so access is revoked without waiting for the processor's
// echo.
type ProvisionService interface {
	// Subscribe registers the tenant with the processor (if needed),
	// creates a subscription on the chosen plan and binds the external ids
	// to the billing record. A plan with trial days starts the tenant in
	// trial; otherwise payment is owed immediately.
	Subscribe(ctx context.Context, tenantID uuid.UUID, params SubscribeParams) (*domain.TenantBillingRecord, error)

	// ChangePlan moves the remote subscription to a different plan and
	// refreshes the denormalized plan metadata. Status is untouched.
	ChangePlan(ctx context.Context, tenantID uuid.UUID, params ChangePlanParams) (*domain.TenantBillingRecord, error)

	// Cancel cancels the remote subscription and applies the terminal
	// canceled status locally. Idempotent: canceling an already-canceled
	// tenant returns the current record.
	Cancel(ctx context.Context, tenantID uuid.UUID) (*domain.TenantBillingRecord, error)
}
