package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// AccessTokenHeader carries the API key on outbound requests and the shared
// webhook secret on inbound ones. The processor uses the same header name for
// both directions.
const AccessTokenHeader = "asaas-access-token"

// AsaasConfig contains configuration for the Asaas provider.
type AsaasConfig struct {
	// APIKey authenticates outbound requests.
	APIKey string `validate:"required"`

	// BaseURL points at the processor API, e.g.
	// https://api.asaas.com/v3 or the sandbox endpoint.
	BaseURL string `validate:"required,url"`

	// Timeout bounds each request. Callers treat a timeout as a retryable
	// ledger failure, so this should stay well under the webhook retry
	// interval. Defaults to 30s.
	Timeout time.Duration
}

// AsaasProvider implements Provider against the Asaas REST API.
type AsaasProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// Compile-time check that AsaasProvider implements Provider.
var _ Provider = (*AsaasProvider)(nil)

// NewAsaasProvider creates a provider from config.
func NewAsaasProvider(cfg AsaasConfig) (*AsaasProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrInvalidAPIKey
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &AsaasProvider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// GetSubscription fetches the remote subscription snapshot.
func (p *AsaasProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var sub Subscription
	if err := p.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil, &sub); err != nil {
		return nil, notFoundAs(err, ErrSubscriptionNotFound)
	}
	return &sub, nil
}

// CreateSubscription creates a recurring subscription.
func (p *AsaasProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	var sub Subscription
	if err := p.do(ctx, http.MethodPost, "/subscriptions", params, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscription changes plan value or cycle.
func (p *AsaasProvider) UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*Subscription, error) {
	var sub Subscription
	if err := p.do(ctx, http.MethodPut, "/subscriptions/"+subscriptionID, params, &sub); err != nil {
		return nil, notFoundAs(err, ErrSubscriptionNotFound)
	}
	return &sub, nil
}

// CancelSubscription cancels the subscription remotely.
func (p *AsaasProvider) CancelSubscription(ctx context.Context, subscriptionID string) (*CancelResult, error) {
	var res CancelResult
	if err := p.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil, &res); err != nil {
		return nil, notFoundAs(err, ErrSubscriptionNotFound)
	}
	return &res, nil
}

// CreateCustomer registers a customer with the processor.
func (p *AsaasProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	var cust Customer
	if err := p.do(ctx, http.MethodPost, "/customers", params, &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

// UpdateCustomer updates customer billing details.
func (p *AsaasProvider) UpdateCustomer(ctx context.Context, customerID string, params UpdateCustomerParams) (*Customer, error) {
	var cust Customer
	if err := p.do(ctx, http.MethodPut, "/customers/"+customerID, params, &cust); err != nil {
		return nil, notFoundAs(err, ErrCustomerNotFound)
	}
	return &cust, nil
}

// GetPayment fetches a single payment.
func (p *AsaasProvider) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var pay Payment
	if err := p.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &pay); err != nil {
		return nil, notFoundAs(err, ErrPaymentNotFound)
	}
	return &pay, nil
}

// asaasErrorBody is the processor's error envelope.
type asaasErrorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// do executes one API request and decodes the response into out.
func (p *AsaasProvider) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(AccessTokenHeader, p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &ProviderError{
			Message:    fmt.Sprintf("unexpected status %d for %s %s", resp.StatusCode, method, path),
			StatusCode: resp.StatusCode,
		}
		var eb asaasErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil && len(eb.Errors) > 0 {
			perr.Code = eb.Errors[0].Code
			perr.Message = eb.Errors[0].Description
		}
		return perr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ProviderError{Message: "failed to decode response", StatusCode: resp.StatusCode, Err: err}
		}
	}
	return nil
}

// notFoundAs maps a 404 ProviderError to a package sentinel so callers can
// use errors.Is instead of inspecting status codes.
func notFoundAs(err error, sentinel error) error {
	if perr, ok := err.(*ProviderError); ok && perr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", sentinel, perr.Message)
	}
	return err
}
