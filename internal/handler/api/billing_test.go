package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davishaupt/baldr/internal/billing"
	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/events"
	"github.com/davishaupt/baldr/internal/service"
)

func testMux(h *BillingHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tenants/{tenantID}/access", h.GetAccess)
	mux.HandleFunc("GET /tenants/{tenantID}/billing", h.GetBillingRecord)
	mux.HandleFunc("POST /tenants/{tenantID}/billing/sync", h.ForceSync)
	mux.HandleFunc("GET /plans", h.ListPlans)
	mux.HandleFunc("GET /plans/{planID}", h.GetPlan)
	return mux
}

func newBillingHandler(store *service.MockBillingStore, plans *service.MockPlanStore, provider *billing.MockProvider) *BillingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reconcile := service.NewReconcileService(store, provider, &events.RecordingPublisher{}, logger, service.ReconcileConfig{KeepTrialOnRemoteActive: true})
	return NewBillingHandler(store, plans, service.NewAccessService(store), reconcile, logger)
}

func recordStore(rec *domain.TenantBillingRecord) *service.MockBillingStore {
	return &service.MockBillingStore{
		GetFunc: func(ctx context.Context, id uuid.UUID) (*domain.TenantBillingRecord, error) {
			if id != rec.TenantID {
				return nil, domain.ErrNotFound
			}
			return rec, nil
		},
		UpdateFunc: func(ctx context.Context, id uuid.UUID, params domain.UpdateBillingParams) (*domain.TenantBillingRecord, error) {
			updated := *rec
			if params.Status != nil {
				updated.Status = *params.Status
			}
			if params.ExternalCustomerID != nil {
				updated.ExternalCustomerID = *params.ExternalCustomerID
			}
			if params.ExternalSubscriptionID != nil {
				updated.ExternalSubscriptionID = *params.ExternalSubscriptionID
			}
			if params.Metadata != nil {
				updated.Metadata = *params.Metadata
			}
			return &updated, nil
		},
	}
}

func TestGetAccess(t *testing.T) {
	rec := &domain.TenantBillingRecord{TenantID: uuid.New(), Status: domain.BillingStatusOverdue}
	mux := testMux(newBillingHandler(recordStore(rec), &service.MockPlanStore{}, &billing.MockProvider{}))

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+rec.TenantID.String()+"/access", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var ac service.AccessContext
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&ac))
	assert.True(t, ac.IsOverdue)
	assert.False(t, ac.SubscriptionActive)
}

func TestGetAccess_UnknownTenant(t *testing.T) {
	mux := testMux(newBillingHandler(&service.MockBillingStore{}, &service.MockPlanStore{}, &billing.MockProvider{}))

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+uuid.NewString()+"/access", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetBillingRecord(t *testing.T) {
	rec := &domain.TenantBillingRecord{
		TenantID:               uuid.New(),
		Status:                 domain.BillingStatusActive,
		ExternalSubscriptionID: "sub_123",
	}
	mux := testMux(newBillingHandler(recordStore(rec), &service.MockPlanStore{}, &billing.MockProvider{}))

	req := httptest.NewRequest(http.MethodGet, "/tenants/"+rec.TenantID.String()+"/billing", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp billingRecordResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, rec.TenantID, resp.TenantID)
	assert.Equal(t, domain.BillingStatusActive, resp.Status)
	assert.Equal(t, "sub_123", resp.ExternalSubscriptionID)
}

func TestForceSync(t *testing.T) {
	rec := &domain.TenantBillingRecord{
		TenantID:               uuid.New(),
		Status:                 domain.BillingStatusOverdue,
		ExternalSubscriptionID: "sub_123",
	}
	provider := &billing.MockProvider{
		GetSubscriptionFunc: func(ctx context.Context, id string) (*billing.Subscription, error) {
			return &billing.Subscription{ID: id, Status: billing.SubscriptionStatusActive}, nil
		},
	}
	mux := testMux(newBillingHandler(recordStore(rec), &service.MockPlanStore{}, provider))

	req := httptest.NewRequest(http.MethodPost, "/tenants/"+rec.TenantID.String()+"/billing/sync", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp billingRecordResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, domain.BillingStatusActive, resp.Status)
}

func TestForceSync_InvalidTenantID(t *testing.T) {
	mux := testMux(newBillingHandler(&service.MockBillingStore{}, &service.MockPlanStore{}, &billing.MockProvider{}))

	req := httptest.NewRequest(http.MethodPost, "/tenants/nope/billing/sync", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListPlans(t *testing.T) {
	plans := &service.MockPlanStore{
		ListPlansFunc: func(ctx context.Context) ([]*domain.BillingPlan, error) {
			return []*domain.BillingPlan{
				{ID: "starter", Name: "Starter", PriceCents: 2900},
				{ID: "growth", Name: "Growth", PriceCents: 9900},
			}, nil
		},
	}
	mux := testMux(newBillingHandler(&service.MockBillingStore{}, plans, &billing.MockProvider{}))

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Plans []*domain.BillingPlan `json:"plans"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp.Plans, 2)
}

func TestGetPlan_NotFound(t *testing.T) {
	mux := testMux(newBillingHandler(&service.MockBillingStore{}, &service.MockPlanStore{}, &billing.MockProvider{}))

	req := httptest.NewRequest(http.MethodGet, "/plans/enterprise", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
