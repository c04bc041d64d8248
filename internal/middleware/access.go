package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/service"
)

const (
	// AccessContextKey is the context key for the tenant's access projection
	AccessContextKey contextKey = "billing_access"
)

// RequireBillingAccess gates tenant-scoped routes on billing state. It
// resolves the {tenantID} path segment, loads the access projection and
// stores it in the request context for handlers. Suspended and canceled
// tenants get 402 before the handler runs; overdue and pending tenants pass
// through with limited access flagged, feature gating is the handler's call.
func RequireBillingAccess(access service.AccessService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := uuid.Parse(r.PathValue("tenantID"))
			if err != nil {
				respondBadRequest(w, r, "Invalid tenant id")
				return
			}

			ac, err := access.GetAccess(r.Context(), tenantID)
			if err != nil {
				respondWithError(w, r, err)
				return
			}

			if ac.IsSuspended {
				respondPaymentRequired(w, r, "Subscription suspended, payment required to restore access")
				return
			}

			ctx := context.WithValue(r.Context(), AccessContextKey, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccessContext retrieves the access projection stored by
// RequireBillingAccess. Returns nil when the route is not access-gated.
func GetAccessContext(ctx context.Context) *service.AccessContext {
	if ac, ok := ctx.Value(AccessContextKey).(*service.AccessContext); ok {
		return ac
	}
	return nil
}
