package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookStatus is the processing lifecycle state of a ledger entry.
type WebhookStatus string

const (
	// WebhookStatusPending means the event is recorded and awaiting a
	// processing attempt (initial state, and the parked state between
	// retries).
	WebhookStatusPending WebhookStatus = "pending"

	// WebhookStatusProcessing means a handler currently owns the event.
	// The pending->processing claim acts as a single-writer lock.
	WebhookStatusProcessing WebhookStatus = "processing"

	// WebhookStatusProcessed is terminal success.
	WebhookStatusProcessed WebhookStatus = "processed"

	// WebhookStatusFailed is terminal failure: retries exhausted or a
	// non-retryable error. Failed entries are never silently reprocessed.
	WebhookStatusFailed WebhookStatus = "failed"

	// WebhookStatusIgnored is terminal for events the system acknowledges
	// but intentionally does not act on.
	WebhookStatusIgnored WebhookStatus = "ignored"
)

// Terminal reports whether the status admits no further processing.
func (s WebhookStatus) Terminal() bool {
	return s == WebhookStatusProcessed || s == WebhookStatusFailed || s == WebhookStatusIgnored
}

// WebhookEvent is one row of the dedup ledger: a durable record of an inbound
// webhook delivery.
//
// Uniqueness invariant: (Source, ExternalEventID) identifies a delivery.
// A redelivery with the same pair must return the existing row rather than
// create a new one; that is what makes at-least-once delivery safe. Events
// without an ExternalEventID cannot be deduplicated and rely on handler
// idempotence instead.
type WebhookEvent struct {
	ID              uuid.UUID
	Source          string
	ExternalEventID string
	EventType       string
	Payload         json.RawMessage
	Status          WebhookStatus
	Attempts        int
	MaxAttempts     int
	TenantID        *uuid.UUID
	Result          string
	ErrorMessage    string
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Eligible reports whether the event may be (re)processed. Processed and
// ignored entries are settled; anything else may run again while attempt
// budget remains. A failed entry with budget left requires an explicit reset
// by an operator, so it is excluded here.
func (e *WebhookEvent) Eligible() bool {
	switch e.Status {
	case WebhookStatusPending, WebhookStatusProcessing:
		return e.Attempts < e.MaxAttempts
	default:
		return false
	}
}

// Exhausted reports whether the attempt budget is spent.
func (e *WebhookEvent) Exhausted() bool {
	return e.Attempts >= e.MaxAttempts
}
