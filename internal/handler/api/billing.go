package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/handler"
	"github.com/davishaupt/baldr/internal/middleware"
	"github.com/davishaupt/baldr/internal/service"
)

// BillingHandler serves the tenant-facing billing API: the access
// projection, the raw billing record, the plan catalog and a manual
// reconciliation trigger.
type BillingHandler struct {
	store     domain.BillingStore
	plans     domain.PlanStore
	access    service.AccessService
	reconcile service.ReconcileService
	logger    *slog.Logger
}

func NewBillingHandler(store domain.BillingStore, plans domain.PlanStore, access service.AccessService, reconcile service.ReconcileService, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		store:     store,
		plans:     plans,
		access:    access,
		reconcile: reconcile,
		logger:    logger,
	}
}

// billingRecordResponse is the external shape of a tenant billing record.
type billingRecordResponse struct {
	TenantID               uuid.UUID                   `json:"tenant_id"`
	Status                 domain.BillingStatus        `json:"status"`
	ExternalCustomerID     string                      `json:"external_customer_id,omitempty"`
	ExternalSubscriptionID string                      `json:"external_subscription_id,omitempty"`
	Metadata               domain.SubscriptionMetadata `json:"metadata"`
	UpdatedAt              time.Time                   `json:"updated_at"`
}

func toBillingRecordResponse(rec *domain.TenantBillingRecord) billingRecordResponse {
	return billingRecordResponse{
		TenantID:               rec.TenantID,
		Status:                 rec.Status,
		ExternalCustomerID:     rec.ExternalCustomerID,
		ExternalSubscriptionID: rec.ExternalSubscriptionID,
		Metadata:               rec.Metadata,
		UpdatedAt:              rec.UpdatedAt,
	}
}

// GetAccess returns the access projection for a tenant.
// GET /tenants/{tenantID}/access
func (h *BillingHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("tenantID"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.access", "Invalid tenant id"))
		return
	}

	ac, err := h.access.GetAccess(r.Context(), tenantID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSONResponse(w, http.StatusOK, ac)
}

// GetBillingRecord returns the tenant's billing record.
// GET /tenants/{tenantID}/billing
func (h *BillingHandler) GetBillingRecord(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("tenantID"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.billing", "Invalid tenant id"))
		return
	}

	rec, err := h.store.Get(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			handler.ErrorResponse(w, r, domain.NotFound("api.billing", "tenant billing record", tenantID.String()))
			return
		}
		handler.ErrorResponse(w, r, domain.StoreAdapterError(err, "api.billing"))
		return
	}
	handler.JSONResponse(w, http.StatusOK, toBillingRecordResponse(rec))
}

// ForceSync reconciles the tenant against the processor's snapshot now,
// without waiting for a webhook. Used by support tooling when local and
// remote state are suspected to have drifted.
// POST /tenants/{tenantID}/billing/sync
func (h *BillingHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("tenantID"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.sync", "Invalid tenant id"))
		return
	}

	rec, err := h.reconcile.Sync(r.Context(), tenantID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.logger.Info("manual sync completed",
		slog.String("tenant_id", tenantID.String()),
		slog.String("status", string(rec.Status)))
	handler.JSONResponse(w, http.StatusOK, toBillingRecordResponse(rec))
}

// GetOverview is the tenant's account overview, served behind the billing
// access gate: suspended and canceled tenants never reach it. The access
// projection is read from the request context where the gate stored it.
// GET /tenants/{tenantID}/overview
func (h *BillingHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAccessContext(r.Context())
	if ac == nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINTERNAL, "api.overview", "access gate missing from route"))
		return
	}

	tenantID, err := uuid.Parse(r.PathValue("tenantID"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.overview", "Invalid tenant id"))
		return
	}

	rec, err := h.store.Get(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			handler.ErrorResponse(w, r, domain.NotFound("api.overview", "tenant billing record", tenantID.String()))
			return
		}
		handler.ErrorResponse(w, r, domain.StoreAdapterError(err, "api.overview"))
		return
	}

	var plan *domain.BillingPlan
	if rec.Metadata.PlanID != "" {
		// Plan lookup is best effort; the overview still renders without it.
		plan, _ = h.plans.GetPlan(r.Context(), rec.Metadata.PlanID)
	}

	handler.JSONResponse(w, http.StatusOK, map[string]interface{}{
		"access":  ac,
		"billing": toBillingRecordResponse(rec),
		"plan":    plan,
	})
}

// ListPlans returns the plan catalog.
// GET /plans
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListPlans(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, domain.StoreAdapterError(err, "api.plans"))
		return
	}
	handler.JSONResponse(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

// GetPlan returns a single plan by id.
// GET /plans/{planID}
func (h *BillingHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("planID")

	plan, err := h.plans.GetPlan(r.Context(), planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			handler.ErrorResponse(w, r, domain.NotFound("api.plans", "plan", planID))
			return
		}
		handler.ErrorResponse(w, r, domain.StoreAdapterError(err, "api.plans"))
		return
	}
	handler.JSONResponse(w, http.StatusOK, plan)
}
