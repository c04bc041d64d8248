package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store-level sentinel errors.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyClaimed is returned when a concurrent worker won the
	// pending->processing race for a ledger entry. Losing the race is
	// benign: the event is already being handled.
	ErrAlreadyClaimed = errors.New("webhook event already claimed")
)

// UpdateBillingParams carries a partial update for a tenant billing record.
// Nil fields are left unchanged; the update is applied atomically as a single
// row write.
type UpdateBillingParams struct {
	Status                 *BillingStatus
	ExternalCustomerID     *string
	ExternalSubscriptionID *string
	Metadata               *SubscriptionMetadata
}

// BillingStore is the durable adapter for tenant billing records.
// Implementations must provide read-after-write consistency per tenant;
// no cross-tenant transactions are assumed.
type BillingStore interface {
	// Get fetches the billing record for a tenant.
	// Returns ErrNotFound if the tenant has no billing record.
	Get(ctx context.Context, tenantID uuid.UUID) (*TenantBillingRecord, error)

	// GetByExternalSubscription resolves a tenant by the processor's
	// subscription id.
	GetByExternalSubscription(ctx context.Context, subscriptionID string) (*TenantBillingRecord, error)

	// GetByExternalCustomer resolves a tenant by the processor's customer id.
	GetByExternalCustomer(ctx context.Context, customerID string) (*TenantBillingRecord, error)

	// Update applies a partial update to the tenant's record in one write.
	Update(ctx context.Context, tenantID uuid.UUID, params UpdateBillingParams) (*TenantBillingRecord, error)
}

// IngestEventParams carries a new inbound webhook for the ledger.
type IngestEventParams struct {
	Source          string
	ExternalEventID string
	EventType       string
	Payload         json.RawMessage
	MaxAttempts     int
}

// WebhookLedger is the durable dedup ledger for inbound webhooks.
type WebhookLedger interface {
	// Ingest records a delivery. If a row with the same
	// (source, external_event_id) already exists, the existing row is
	// returned with created=false and no write occurs.
	Ingest(ctx context.Context, params IngestEventParams) (event *WebhookEvent, created bool, err error)

	// Claim atomically moves an eligible entry to processing and increments
	// its attempt counter. Returns ErrAlreadyClaimed when another worker
	// owns the entry, and ErrNotFound when no eligible row matches.
	Claim(ctx context.Context, id uuid.UUID) (*WebhookEvent, error)

	// MarkProcessed settles the entry as successfully handled.
	MarkProcessed(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID, result string) error

	// MarkIgnored settles the entry as acknowledged-but-no-op.
	MarkIgnored(ctx context.Context, id uuid.UUID, result string) error

	// MarkFailed records a handler failure. While attempt budget remains the
	// entry is parked back to pending for a later retry; once exhausted it
	// becomes terminally failed.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// ListRetryable returns entries eligible for another attempt: pending
	// rows with budget left, plus processing rows stale for longer than
	// staleAfter (a crashed worker's leftovers).
	ListRetryable(ctx context.Context, staleAfter time.Duration, limit int) ([]*WebhookEvent, error)
}

// PlanStore is the read-only billing plan catalog.
type PlanStore interface {
	GetPlan(ctx context.Context, id string) (*BillingPlan, error)
	ListPlans(ctx context.Context) ([]*BillingPlan, error)
}
