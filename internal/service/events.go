package service

import (
	"strings"
	"time"
)

// Webhook event types delivered by the payment processor.
const (
	EventPaymentCreated   = "PAYMENT_CREATED"
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
	EventPaymentOverdue   = "PAYMENT_OVERDUE"
	EventPaymentRefunded  = "PAYMENT_REFUNDED"

	EventSubscriptionActivated = "SUBSCRIPTION_ACTIVATED"
	EventSubscriptionUpdated   = "SUBSCRIPTION_UPDATED"
	EventSubscriptionRenewed   = "SUBSCRIPTION_RENEWED"
	EventSubscriptionCanceled  = "SUBSCRIPTION_CANCELED"

	// Known processor events outside the modeled payment/subscription
	// vocabulary. Acknowledged without action so the processor stops
	// redelivering them.
	EventInvoiceCreated  = "INVOICE_CREATED"
	EventInvoiceUpdated  = "INVOICE_UPDATED"
	EventTransferCreated = "TRANSFER_CREATED"
)

// knownEventTypes distinguishes "unparseable" (rejected, WebhookInvalid) from
// "known-but-irrelevant" (acknowledged, ignored).
var knownEventTypes = map[string]struct{}{
	EventPaymentCreated:        {},
	EventPaymentConfirmed:      {},
	EventPaymentReceived:       {},
	EventPaymentOverdue:        {},
	EventPaymentRefunded:       {},
	EventSubscriptionActivated: {},
	EventSubscriptionUpdated:   {},
	EventSubscriptionRenewed:   {},
	EventSubscriptionCanceled:  {},
	EventInvoiceCreated:        {},
	EventInvoiceUpdated:        {},
	EventTransferCreated:       {},
}

// KnownEventType reports whether the processor event type is in the modeled
// vocabulary.
func KnownEventType(eventType string) bool {
	_, ok := knownEventTypes[eventType]
	return ok
}

func isPaymentEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "PAYMENT_")
}

func isSubscriptionEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "SUBSCRIPTION_")
}

// WebhookPayload is the processor's delivery envelope:
// {event, payment?, subscription?}.
type WebhookPayload struct {
	Event        string             `json:"event"`
	ID           string             `json:"id,omitempty"`
	Payment      *PaymentEvent      `json:"payment,omitempty"`
	Subscription *SubscriptionEvent `json:"subscription,omitempty"`
}

// PaymentEvent is the payment object embedded in PAYMENT_* deliveries.
// Dates arrive as "2006-01-02" strings.
type PaymentEvent struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer"`
	SubscriptionID string `json:"subscription,omitempty"`
	ValueCents     int64  `json:"value"`
	Status         string `json:"status,omitempty"`
	DueDate        string `json:"dueDate,omitempty"`
	PaymentDate    string `json:"paymentDate,omitempty"`
}

// SubscriptionEvent is the subscription object embedded in SUBSCRIPTION_*
// deliveries.
type SubscriptionEvent struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer"`
	Status      string `json:"status,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
	ValueCents  int64  `json:"value,omitempty"`
	Cycle       string `json:"cycle,omitempty"`
	NextDueDate string `json:"nextDueDate,omitempty"`
}

// parseProcessorDate parses the processor's date-only format. Returns nil for
// empty or malformed values; callers treat a missing date as absent, not as
// an error.
func parseProcessorDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
