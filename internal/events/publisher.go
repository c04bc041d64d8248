// Package events publishes billing facts for downstream platform services.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/davishaupt/baldr/internal/domain"
)

// Subjects downstream consumers subscribe to.
const (
	SubjectStatusChanged = "billing.status.changed"
	SubjectWebhookFailed = "billing.webhook.failed"
)

// StatusChanged announces an applied billing status transition.
type StatusChanged struct {
	TenantID   uuid.UUID            `json:"tenant_id"`
	From       domain.BillingStatus `json:"from"`
	To         domain.BillingStatus `json:"to"`
	Cause      string               `json:"cause"` // event type or "sync"
	OccurredAt time.Time            `json:"occurred_at"`
}

// WebhookFailed announces a ledger entry that exhausted its retries and needs
// manual follow-up.
type WebhookFailed struct {
	EventID    uuid.UUID  `json:"event_id"`
	TenantID   *uuid.UUID `json:"tenant_id,omitempty"`
	EventType  string     `json:"event_type"`
	Error      string     `json:"error"`
	Attempts   int        `json:"attempts"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Publisher emits billing events. Publishing is best-effort: a lost event
// never blocks or fails the reconciliation path.
type Publisher interface {
	StatusChanged(event StatusChanged) error
	WebhookFailed(event WebhookFailed) error
}

// NatsPublisher implements Publisher over a NATS connection.
type NatsPublisher struct {
	conn *nats.Conn
}

var _ Publisher = (*NatsPublisher)(nil)

// NewNatsPublisher connects to the NATS server at url.
func NewNatsPublisher(url string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("baldr-billing"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NatsPublisher{conn: conn}, nil
}

// Close drains the connection.
func (p *NatsPublisher) Close() {
	_ = p.conn.Drain()
}

func (p *NatsPublisher) StatusChanged(event StatusChanged) error {
	return p.publish(SubjectStatusChanged, event)
}

func (p *NatsPublisher) WebhookFailed(event WebhookFailed) error {
	return p.publish(SubjectWebhookFailed, event)
}

func (p *NatsPublisher) publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", subject, err)
	}
	return p.conn.Publish(subject, data)
}

// NoopPublisher discards all events. Used when NATS is not configured and in
// tests.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (NoopPublisher) StatusChanged(StatusChanged) error { return nil }
func (NoopPublisher) WebhookFailed(WebhookFailed) error { return nil }

// RecordingPublisher captures events for test assertions.
type RecordingPublisher struct {
	StatusChanges   []StatusChanged
	WebhookFailures []WebhookFailed
}

var _ Publisher = (*RecordingPublisher)(nil)

func (p *RecordingPublisher) StatusChanged(e StatusChanged) error {
	p.StatusChanges = append(p.StatusChanges, e)
	return nil
}

func (p *RecordingPublisher) WebhookFailed(e WebhookFailed) error {
	p.WebhookFailures = append(p.WebhookFailures, e)
	return nil
}
