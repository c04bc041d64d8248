package billing

import (
	"context"
)

// MockProvider implements Provider for testing.
// Configure behavior via the function fields; unset fields return zero values.
type MockProvider struct {
	GetSubscriptionFunc    func(ctx context.Context, subscriptionID string) (*Subscription, error)
	CreateSubscriptionFunc func(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
	UpdateSubscriptionFunc func(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*Subscription, error)
	CancelSubscriptionFunc func(ctx context.Context, subscriptionID string) (*CancelResult, error)
	CreateCustomerFunc     func(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	UpdateCustomerFunc     func(ctx context.Context, customerID string, params UpdateCustomerParams) (*Customer, error)
	GetPaymentFunc         func(ctx context.Context, paymentID string) (*Payment, error)

	// Call tracking
	GetSubscriptionCalls    []string
	CancelSubscriptionCalls []string
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	m.GetSubscriptionCalls = append(m.GetSubscriptionCalls, subscriptionID)
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, subscriptionID)
	}
	return &Subscription{ID: subscriptionID, Status: SubscriptionStatusActive}, nil
}

func (m *MockProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, params)
	}
	return &Subscription{ID: "sub_mock", CustomerID: params.CustomerID, Status: SubscriptionStatusActive}, nil
}

func (m *MockProvider) UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*Subscription, error) {
	if m.UpdateSubscriptionFunc != nil {
		return m.UpdateSubscriptionFunc(ctx, subscriptionID, params)
	}
	return &Subscription{ID: subscriptionID, Status: SubscriptionStatusActive}, nil
}

func (m *MockProvider) CancelSubscription(ctx context.Context, subscriptionID string) (*CancelResult, error) {
	m.CancelSubscriptionCalls = append(m.CancelSubscriptionCalls, subscriptionID)
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, subscriptionID)
	}
	return &CancelResult{ID: subscriptionID, Deleted: true}, nil
}

func (m *MockProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}
	return &Customer{ID: "cus_mock", Name: params.Name, Email: params.Email}, nil
}

func (m *MockProvider) UpdateCustomer(ctx context.Context, customerID string, params UpdateCustomerParams) (*Customer, error) {
	if m.UpdateCustomerFunc != nil {
		return m.UpdateCustomerFunc(ctx, customerID, params)
	}
	return &Customer{ID: customerID}, nil
}

func (m *MockProvider) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, paymentID)
	}
	return &Payment{ID: paymentID, Status: PaymentStatusConfirmed}, nil
}
