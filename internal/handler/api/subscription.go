package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/handler"
	"github.com/davishaupt/baldr/internal/service"
)

// SubscriptionHandler serves the subscription lifecycle endpoints: start a
// subscription, switch plans, cancel.
type SubscriptionHandler struct {
	provision service.ProvisionService
	logger    *slog.Logger
}

func NewSubscriptionHandler(provision service.ProvisionService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		provision: provision,
		logger:    logger,
	}
}

// Subscribe starts a subscription on the chosen plan.
// POST /tenants/{tenantID}/subscription
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("tenantID"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.subscribe", "Invalid tenant id"))
		return
	}

	var params service.SubscribeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.subscribe", "Request body is not valid JSON"))
		return
	}

	rec, err := h.provision.Subscribe(r.Context(), tenantID, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.logger.Info("tenant subscribed",
		slog.String("tenant_id", tenantID.String()),
		slog.String("plan_id", params.PlanID))
	handler.JSONResponse(w, http.StatusCreated, toBillingRecordResponse(rec))
}

// ChangePlan switches the subscription to a different plan.
// POST /tenants/{tenantID}/subscription/plan
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("tenantID"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.change_plan", "Invalid tenant id"))
		return
	}

	var params service.ChangePlanParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.change_plan", "Request body is not valid JSON"))
		return
	}

	rec, err := h.provision.ChangePlan(r.Context(), tenantID, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSONResponse(w, http.StatusOK, toBillingRecordResponse(rec))
}

// Cancel cancels the subscription. Safe to repeat.
// POST /tenants/{tenantID}/subscription/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("tenantID"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.cancel", "Invalid tenant id"))
		return
	}

	rec, err := h.provision.Cancel(r.Context(), tenantID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSONResponse(w, http.StatusOK, toBillingRecordResponse(rec))
}
