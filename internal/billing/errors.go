package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when the processor API key is missing or rejected.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrSubscriptionNotFound is returned when the subscription does not exist remotely.
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")

	// ErrCustomerNotFound is returned when the customer does not exist remotely.
	ErrCustomerNotFound = errors.New("billing: customer not found")

	// ErrPaymentNotFound is returned when the payment does not exist remotely.
	ErrPaymentNotFound = errors.New("billing: payment not found")
)

// ProviderError wraps a processor API error with response context.
type ProviderError struct {
	Message    string // Human-readable error message
	Code       string // Processor error code (e.g., "invalid_object")
	StatusCode int    // HTTP status returned by the processor
	Err        error  // Underlying transport error, if any
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("asaas: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("asaas: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTemporary returns true if the error is likely transient and the caller
// should retry via the ledger's attempt bookkeeping.
func (e *ProviderError) IsTemporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500 || e.Err != nil
}
