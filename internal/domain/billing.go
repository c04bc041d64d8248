package domain

import (
	"time"

	"github.com/google/uuid"
)

// BillingStatus represents a tenant's current billing state.
//
// Statuses form a fixed state machine (see CanTransition). A tenant always
// has exactly one status; "canceled" is terminal and reactivation requires a
// brand-new subscription rather than a transition back out.
type BillingStatus string

const (
	BillingStatusTrial          BillingStatus = "trial"
	BillingStatusPendingPayment BillingStatus = "pending_payment"
	BillingStatusActive         BillingStatus = "active"
	BillingStatusOverdue        BillingStatus = "overdue"
	BillingStatusSuspended      BillingStatus = "suspended"
	BillingStatusCanceled       BillingStatus = "canceled"
)

// Valid reports whether s is one of the known billing statuses.
func (s BillingStatus) Valid() bool {
	switch s {
	case BillingStatusTrial, BillingStatusPendingPayment, BillingStatusActive,
		BillingStatusOverdue, BillingStatusSuspended, BillingStatusCanceled:
		return true
	}
	return false
}

// billingTransitions is the adjacency table of legal status changes.
//
// The table encodes two domain rules: money must flow forward (a tenant can
// only be suspended after having been through a paid/overdue state), and
// cancellation is unrecoverable.
var billingTransitions = map[BillingStatus][]BillingStatus{
	BillingStatusTrial:          {BillingStatusActive, BillingStatusPendingPayment, BillingStatusCanceled},
	BillingStatusPendingPayment: {BillingStatusActive, BillingStatusOverdue, BillingStatusCanceled},
	BillingStatusActive:         {BillingStatusOverdue, BillingStatusCanceled},
	BillingStatusOverdue:        {BillingStatusActive, BillingStatusSuspended, BillingStatusCanceled},
	BillingStatusSuspended:      {BillingStatusActive, BillingStatusCanceled},
	BillingStatusCanceled:       {}, // terminal
}

// CanTransition reports whether from -> to is a legal status change per the
// adjacency table. from == to is not a transition and returns false here;
// callers that want no-op semantics should check equality first (Transition
// does).
func CanTransition(from, to BillingStatus) bool {
	for _, next := range billingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns the new status.
//
// Equal statuses short-circuit as a no-op before validation, which makes
// redelivered webhooks safe to replay. An illegal pair returns
// *InvalidTransitionError; the caller must not apply it.
func Transition(from, to BillingStatus) (BillingStatus, error) {
	if from == to {
		return from, nil
	}
	if !CanTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// HasFullAccess reports whether the status grants unrestricted platform access.
func HasFullAccess(s BillingStatus) bool {
	return s == BillingStatusActive || s == BillingStatusTrial
}

// HasLimitedAccess reports whether the status grants degraded (read-mostly)
// access while payment is being chased.
func HasLimitedAccess(s BillingStatus) bool {
	return s == BillingStatusOverdue || s == BillingStatusPendingPayment
}

// HasAnyAccess reports whether the tenant may use the platform at all.
func HasAnyAccess(s BillingStatus) bool {
	return HasFullAccess(s) || HasLimitedAccess(s)
}

// SubscriptionMetadata carries denormalized subscription details alongside the
// billing status. All fields are informational; only the reconciliation engine
// writes them.
type SubscriptionMetadata struct {
	PlanID        string     `json:"plan_id,omitempty"`
	PlanName      string     `json:"plan_name,omitempty"`
	PriceCents    int64      `json:"price_cents,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Cycle         string     `json:"cycle,omitempty"`
	TrialEndsAt   *time.Time `json:"trial_ends_at,omitempty"`
	NextBillingAt *time.Time `json:"next_billing_at,omitempty"`
	LastPaymentAt *time.Time `json:"last_payment_at,omitempty"`
	DaysOverdue   *int       `json:"days_overdue,omitempty"`
}

// TenantBillingRecord is the local source of truth for a tenant's billing
// state. It is owned exclusively by the tenant, mutated only through the
// reconciliation engine, and never deleted (soft lifecycle via status).
type TenantBillingRecord struct {
	TenantID               uuid.UUID
	ExternalCustomerID     string
	ExternalSubscriptionID string
	Status                 BillingStatus
	Metadata               SubscriptionMetadata
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// BillingPlan is an immutable catalog entry. Plans are read-only inputs to
// reconciliation and are never mutated by this service.
type BillingPlan struct {
	ID         string
	Name       string
	PriceCents int64
	Currency   string
	Cycle      string
	TrialDays  int
	Features   []string
}
