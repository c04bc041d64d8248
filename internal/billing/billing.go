package billing

import (
	"context"
	"encoding/json"
	"time"
)

// Provider defines the typed RPC surface against the external payment
// processor. The processor is the ground truth for payment facts; this
// service only reads snapshots and issues lifecycle commands.
type Provider interface {
	// GetSubscription fetches the current remote subscription snapshot.
	// Used by the reconciliation sync routine as the source of truth.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// CreateSubscription creates a recurring subscription for a customer.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// UpdateSubscription changes plan value or cycle on an existing subscription.
	UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*Subscription, error)

	// CancelSubscription cancels remotely. The processor marks the
	// subscription deleted; local state follows via webhook or sync.
	CancelSubscription(ctx context.Context, subscriptionID string) (*CancelResult, error)

	// CreateCustomer registers a customer record with the processor.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// UpdateCustomer updates customer billing details.
	UpdateCustomer(ctx context.Context, customerID string, params UpdateCustomerParams) (*Customer, error)

	// GetPayment fetches a single payment by processor id.
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// Remote subscription statuses as reported by the processor.
const (
	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusInactive = "INACTIVE"
	SubscriptionStatusExpired  = "EXPIRED"
)

// Remote payment statuses as reported by the processor.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusConfirmed = "CONFIRMED"
	PaymentStatusReceived  = "RECEIVED"
	PaymentStatusOverdue   = "OVERDUE"
	PaymentStatusRefunded  = "REFUNDED"
)

// wireDateFormat is the processor's date representation: date-only, no time
// component, no zone.
const wireDateFormat = "2006-01-02"

// parseWireDate parses a processor date. Empty or malformed values come back
// nil; the snapshot fields carrying them are all optional.
func parseWireDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(wireDateFormat, s)
	if err != nil {
		return nil
	}
	return &t
}

func formatWireDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(wireDateFormat)
}

// Subscription is the remote subscription snapshot.
//
// Date fields cross the wire in the processor's date-only form, which plain
// encoding/json cannot parse into time.Time; the custom JSON methods below
// translate them.
type Subscription struct {
	ID          string     `json:"id"`
	CustomerID  string     `json:"customer"`
	Status      string     `json:"status"`
	Deleted     bool       `json:"deleted"`
	ValueCents  int64      `json:"value"`
	Cycle       string     `json:"cycle"`
	Description string     `json:"description"`
	NextDueDate *time.Time `json:"-"`
}

func (s *Subscription) UnmarshalJSON(data []byte) error {
	type alias Subscription
	aux := struct {
		*alias
		NextDueDate string `json:"nextDueDate,omitempty"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.NextDueDate = parseWireDate(aux.NextDueDate)
	return nil
}

func (s Subscription) MarshalJSON() ([]byte, error) {
	type alias Subscription
	return json.Marshal(struct {
		alias
		NextDueDate string `json:"nextDueDate,omitempty"`
	}{alias: alias(s), NextDueDate: formatWireDate(s.NextDueDate)})
}

// Customer is the remote customer record.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	CPFCNPJ string `json:"cpfCnpj,omitempty"`
	ExtRef  string `json:"externalReference,omitempty"`
	Deleted bool   `json:"deleted"`
}

// Payment is a single remote payment. Dates cross the wire date-only, same as
// Subscription.
type Payment struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customer"`
	SubscriptionID string     `json:"subscription,omitempty"`
	Status         string     `json:"status"`
	ValueCents     int64      `json:"value"`
	DueDate        *time.Time `json:"-"`
	PaymentDate    *time.Time `json:"-"`
}

func (p *Payment) UnmarshalJSON(data []byte) error {
	type alias Payment
	aux := struct {
		*alias
		DueDate     string `json:"dueDate,omitempty"`
		PaymentDate string `json:"paymentDate,omitempty"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.DueDate = parseWireDate(aux.DueDate)
	p.PaymentDate = parseWireDate(aux.PaymentDate)
	return nil
}

func (p Payment) MarshalJSON() ([]byte, error) {
	type alias Payment
	return json.Marshal(struct {
		alias
		DueDate     string `json:"dueDate,omitempty"`
		PaymentDate string `json:"paymentDate,omitempty"`
	}{
		alias:       alias(p),
		DueDate:     formatWireDate(p.DueDate),
		PaymentDate: formatWireDate(p.PaymentDate),
	})
}

// CancelResult is the processor's acknowledgment of a cancellation.
type CancelResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// CreateSubscriptionParams contains parameters for creating a subscription.
type CreateSubscriptionParams struct {
	CustomerID  string `json:"customer"`
	BillingType string `json:"billingType"`
	ValueCents  int64  `json:"value"`
	Cycle       string `json:"cycle"`
	Description string `json:"description,omitempty"`
	NextDueDate string `json:"nextDueDate"`
	ExtRef      string `json:"externalReference,omitempty"`
}

// UpdateSubscriptionParams contains mutable subscription fields.
type UpdateSubscriptionParams struct {
	ValueCents  int64  `json:"value,omitempty"`
	Cycle       string `json:"cycle,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateCustomerParams contains parameters for creating a customer.
type CreateCustomerParams struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	CPFCNPJ string `json:"cpfCnpj,omitempty"`
	ExtRef  string `json:"externalReference,omitempty"`
}

// UpdateCustomerParams contains mutable customer fields.
type UpdateCustomerParams struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
