package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davishaupt/baldr/internal/billing"
	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/events"
	"github.com/davishaupt/baldr/internal/service"
)

func subscriptionMux(store *service.MockBillingStore, plans *service.MockPlanStore, provider *billing.MockProvider) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provision := service.NewProvisionService(store, plans, provider, &events.RecordingPublisher{}, logger)
	h := NewSubscriptionHandler(provision, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tenants/{tenantID}/subscription", h.Subscribe)
	mux.HandleFunc("POST /tenants/{tenantID}/subscription/plan", h.ChangePlan)
	mux.HandleFunc("POST /tenants/{tenantID}/subscription/cancel", h.Cancel)
	return mux
}

func subscriptionPlans() *service.MockPlanStore {
	return &service.MockPlanStore{
		GetPlanFunc: func(ctx context.Context, id string) (*domain.BillingPlan, error) {
			if id != "pro" {
				return nil, domain.ErrNotFound
			}
			return &domain.BillingPlan{ID: "pro", Name: "Pro", PriceCents: 9900, Currency: "BRL", Cycle: "MONTHLY", TrialDays: 14}, nil
		},
	}
}

func TestSubscribeEndpoint(t *testing.T) {
	rec := &domain.TenantBillingRecord{TenantID: uuid.New(), Status: domain.BillingStatusTrial}
	mux := subscriptionMux(recordStore(rec), subscriptionPlans(), &billing.MockProvider{})

	body := `{"plan_id":"pro","customer_name":"Acme Ltda","customer_email":"billing@acme.example"}`
	req := httptest.NewRequest(http.MethodPost, "/tenants/"+rec.TenantID.String()+"/subscription", strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		Status                 string `json:"status"`
		ExternalSubscriptionID string `json:"external_subscription_id"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "trial", resp.Status)
	assert.NotEmpty(t, resp.ExternalSubscriptionID)
}

func TestSubscribeEndpoint_RejectsBadBody(t *testing.T) {
	rec := &domain.TenantBillingRecord{TenantID: uuid.New(), Status: domain.BillingStatusTrial}
	mux := subscriptionMux(recordStore(rec), subscriptionPlans(), &billing.MockProvider{})

	req := httptest.NewRequest(http.MethodPost, "/tenants/"+rec.TenantID.String()+"/subscription", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubscribeEndpoint_ConflictWhenSubscribed(t *testing.T) {
	rec := &domain.TenantBillingRecord{
		TenantID:               uuid.New(),
		Status:                 domain.BillingStatusActive,
		ExternalSubscriptionID: "sub_123",
	}
	mux := subscriptionMux(recordStore(rec), subscriptionPlans(), &billing.MockProvider{})

	body := `{"plan_id":"pro","customer_name":"Acme Ltda","customer_email":"billing@acme.example"}`
	req := httptest.NewRequest(http.MethodPost, "/tenants/"+rec.TenantID.String()+"/subscription", strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestChangePlanEndpoint(t *testing.T) {
	rec := &domain.TenantBillingRecord{
		TenantID:               uuid.New(),
		Status:                 domain.BillingStatusActive,
		ExternalSubscriptionID: "sub_123",
	}
	mux := subscriptionMux(recordStore(rec), subscriptionPlans(), &billing.MockProvider{})

	req := httptest.NewRequest(http.MethodPost, "/tenants/"+rec.TenantID.String()+"/subscription/plan", strings.NewReader(`{"plan_id":"pro"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Metadata domain.SubscriptionMetadata `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "pro", resp.Metadata.PlanID)
}

func TestCancelEndpoint(t *testing.T) {
	rec := &domain.TenantBillingRecord{
		TenantID:               uuid.New(),
		Status:                 domain.BillingStatusActive,
		ExternalSubscriptionID: "sub_123",
	}
	provider := &billing.MockProvider{}
	mux := subscriptionMux(recordStore(rec), subscriptionPlans(), provider)

	req := httptest.NewRequest(http.MethodPost, "/tenants/"+rec.TenantID.String()+"/subscription/cancel", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"sub_123"}, provider.CancelSubscriptionCalls)
	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "canceled", resp.Status)
}

func TestCancelEndpoint_InvalidTenantID(t *testing.T) {
	mux := subscriptionMux(&service.MockBillingStore{}, subscriptionPlans(), &billing.MockProvider{})

	req := httptest.NewRequest(http.MethodPost, "/tenants/not-a-uuid/subscription/cancel", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
