package routes

import (
	"net/http"

	"github.com/davishaupt/baldr/internal/handler/api"
	"github.com/davishaupt/baldr/internal/handler/webhook"
	"github.com/davishaupt/baldr/internal/router"
)

// Deps contains the handlers and middleware the route table wires together.
type Deps struct {
	WebhookHandler      *webhook.AsaasHandler
	BillingHandler      *api.BillingHandler
	SubscriptionHandler *api.SubscriptionHandler

	// AccessGate guards tenant product routes on billing state.
	AccessGate func(http.Handler) http.Handler

	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler

	// HealthHandler answers load balancer probes.
	HealthHandler http.HandlerFunc
}

// Register registers all routes.
//
// Webhook routes carry no middleware auth: the handler verifies the
// processor's shared-secret header itself.
func Register(r *router.Router, deps Deps) {
	// Operational endpoints
	r.Get("/health", deps.HealthHandler)
	r.Handle(http.MethodGet, "/metrics", deps.MetricsHandler)

	// Processor webhooks
	r.Post("/webhooks/asaas", deps.WebhookHandler.HandleWebhook)

	// Billing API
	r.Get("/tenants/{tenantID}/access", deps.BillingHandler.GetAccess)
	r.Get("/tenants/{tenantID}/billing", deps.BillingHandler.GetBillingRecord)
	r.Post("/tenants/{tenantID}/billing/sync", deps.BillingHandler.ForceSync)
	r.Get("/plans", deps.BillingHandler.ListPlans)
	r.Get("/plans/{planID}", deps.BillingHandler.GetPlan)

	// Subscription lifecycle
	r.Post("/tenants/{tenantID}/subscription", deps.SubscriptionHandler.Subscribe)
	r.Post("/tenants/{tenantID}/subscription/plan", deps.SubscriptionHandler.ChangePlan)
	r.Post("/tenants/{tenantID}/subscription/cancel", deps.SubscriptionHandler.Cancel)

	// Gated product surface: denied with 402 for suspended and canceled
	// tenants before the handler runs.
	gated := r.Group(router.Middleware(deps.AccessGate))
	gated.Get("/tenants/{tenantID}/overview", deps.BillingHandler.GetOverview)
}
