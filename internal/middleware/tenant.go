package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/skuld/internal/domain"
)

// TenantHeader carries the acting tenant resolved by the authorization
// collaborator in front of this service. Authentication itself is out of
// scope here; this middleware only threads the explicit tenant ID into
// context so no layer below ever reads ambient session state.
const TenantHeader = "X-Tenant-ID"

// WithTenant resolves the acting tenant from the request and stores it in
// context. Requests without a valid tenant are rejected before reaching any
// handler.
func WithTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(TenantHeader)
		if raw == "" {
			http.Error(w, "missing tenant", http.StatusUnauthorized)
			return
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			http.Error(w, "invalid tenant", http.StatusUnauthorized)
			return
		}

		ctx := domain.NewContextWithTenantID(r.Context(), tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
