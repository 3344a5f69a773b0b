package middleware

import (
	"net/http"

	"github.com/paperhouse/warehouse-backend/api/responses"
	"github.com/paperhouse/warehouse-backend/pkg/authz"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
)

// RequireCapability gates a route on the static role capability table.
func RequireCapability(cap authz.Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authz.Require(RoleFromContext(r.Context()), cap); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
