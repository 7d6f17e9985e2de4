package middleware

import (
	"net/http"

	"github.com/angelmondragon/crewsync/api/responses"
	"github.com/angelmondragon/crewsync/api/validators"
	pkgAuth "github.com/angelmondragon/crewsync/pkg/auth"
	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			token, err := validators.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if logg != nil {
				fields := map[string]any{"actor_role": string(claims.Role)}
				if claims.EmployeeID != "" {
					fields["employee_id"] = claims.EmployeeID
				}
				if claims.DeviceID != "" {
					fields["device_id"] = claims.DeviceID
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TrustLocal is used when no JWT secret is configured: every caller acts as
// the gateway role. Only suitable when the API listens on loopback.
func TrustLocal() func(http.Handler) http.Handler {
	claims := &pkgAuth.AccessTokenClaims{Role: enums.AgentRoleGateway}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
