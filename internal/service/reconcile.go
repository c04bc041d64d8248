package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
)

// ReconcileService applies externally-sourced payment facts to a tenant's
// local billing state.
//
// Every handler applies at most one state transition, validated against the
// billing state machine, with metadata updates folded into the same atomic
// store write. An invalid transition is surfaced to the caller, never
// silently coerced: it means an out-of-order or duplicate webhook raced a
// more-advanced local state, or a genuine inconsistency.
type ReconcileService interface {
	// HandlePaymentCreated records the fact. No status change.
	HandlePaymentCreated(ctx context.Context, rec *domain.TenantBillingRecord, payment *PaymentEvent) (string, error)

	// HandlePaymentConfirmed transitions the tenant to active, clears any
	// overdue counter and stamps the payment date. Covers both
	// PAYMENT_CONFIRMED and PAYMENT_RECEIVED.
	HandlePaymentConfirmed(ctx context.Context, rec *domain.TenantBillingRecord, payment *PaymentEvent) (string, error)

	// HandlePaymentOverdue computes days overdue from the payment's due
	// date and moves the tenant to overdue, or suspended once past the
	// configured threshold. The overdue counter is persisted even when no
	// transition applies.
	HandlePaymentOverdue(ctx context.Context, rec *domain.TenantBillingRecord, payment *PaymentEvent) (string, error)

	// HandlePaymentRefunded records the fact. Refund-driven downgrades are
	// a manual process today; see DESIGN.md.
	HandlePaymentRefunded(ctx context.Context, rec *domain.TenantBillingRecord, payment *PaymentEvent) (string, error)

	// HandleSubscriptionChanged runs a full sync for
	// SUBSCRIPTION_ACTIVATED / UPDATED / RENEWED: the processor is the
	// source of truth for subscription lifecycle, so a fresh snapshot
	// beats trusting the event body.
	HandleSubscriptionChanged(ctx context.Context, rec *domain.TenantBillingRecord, eventType string) (string, error)

	// HandleSubscriptionCanceled cancels locally, falling back to a full
	// sync when cancellation was already applied (external redelivery
	// after local cancellation).
	HandleSubscriptionCanceled(ctx context.Context, rec *domain.TenantBillingRecord, sub *SubscriptionEvent) (string, error)

	// Sync reconciles local status against a freshly fetched remote
	// subscription snapshot without regressing richer local knowledge.
	Sync(ctx context.Context, tenantID uuid.UUID) (*domain.TenantBillingRecord, error)
}

// ReconcileConfig holds reconciliation policy knobs.
type ReconcileConfig struct {
	// SuspensionThresholdDays is how many days overdue a payment may be
	// before PAYMENT_OVERDUE suspends the tenant instead of marking it
	// overdue. Default 15.
	SuspensionThresholdDays int

	// KeepTrialOnRemoteActive keeps a local trial/pending_payment status
	// when the remote snapshot says ACTIVE. Remote "active" means "not yet
	// expired", not "payment received"; only payment events advance a
	// tenant out of trial. Default true.
	KeepTrialOnRemoteActive bool
}

// Handler action labels recorded in the ledger's result column.
const (
	ActionLogged    = "logged"
	ActionActivated = "activated"
	ActionOverdue   = "overdue"
	ActionSuspended = "suspended"
	ActionCanceled  = "canceled"
	ActionSynced    = "synced"
	ActionNoop      = "noop"
)
