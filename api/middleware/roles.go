package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/crewsync/api/responses"
	"github.com/angelmondragon/crewsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

// RequireRole rejects callers whose token role is not one of allowed.
func RequireRole(logg *logger.Logger, allowed ...enums.AgentRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if !slices.Contains(allowed, role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeForbidden, "role %s may not call this endpoint", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
