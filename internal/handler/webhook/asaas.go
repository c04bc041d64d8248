package webhook

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/davishaupt/baldr/internal/billing"
	"github.com/davishaupt/baldr/internal/domain"
	"github.com/davishaupt/baldr/internal/handler"
	"github.com/davishaupt/baldr/internal/service"
)

// maxBodySize bounds webhook payloads. Asaas events are small JSON objects;
// anything past this is not a legitimate delivery.
const maxBodySize = 1 << 20

// AsaasHandler receives payment processor webhook deliveries.
type AsaasHandler struct {
	webhooks service.WebhookService
	logger   *slog.Logger
}

func NewAsaasHandler(webhooks service.WebhookService, logger *slog.Logger) *AsaasHandler {
	return &AsaasHandler{
		webhooks: webhooks,
		logger:   logger,
	}
}

// webhookResponse acknowledges a delivery to the processor. Success reflects
// whether the handler settled the event cleanly; a false value still rides a
// 200, with the failure surfaced in Error.
type webhookResponse struct {
	Success   bool   `json:"success"`
	Action    string `json:"action,omitempty"`
	Error     string `json:"error,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
}

// HandleWebhook processes an inbound delivery.
//
// Status codes drive the processor's redelivery behavior:
//   - 200 means settled, do not resend. This includes handler failures,
//     because the ledger entry owns the retry from the moment it exists.
//   - 400/401 mean the delivery itself is bad and resending will not help.
//   - 500 means we could not record the delivery; the processor should
//     resend and dedup will absorb the replay.
func (h *AsaasHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.read", "Error reading request body"))
		return
	}

	token := r.Header.Get(billing.AccessTokenHeader)

	result, err := h.webhooks.Ingest(r.Context(), token, body)
	if err != nil {
		// Rejections map to 4xx; a failed ledger write maps to 5xx so the
		// processor resends and dedup absorbs the replay.
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := webhookResponse{
		Success:   result.Success,
		Action:    result.Action,
		Error:     result.Error,
		EventID:   result.EventID.String(),
		EventType: result.EventType,
	}
	if !result.Success {
		// Settled in the ledger as a failed attempt; acknowledged anyway.
		h.logger.Warn("webhook acknowledged with processing failure",
			slog.String("event_id", resp.EventID),
			slog.String("event_type", resp.EventType),
			slog.String("error", result.Error))
	}
	handler.JSONResponse(w, http.StatusOK, resp)
}
