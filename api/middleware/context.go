package middleware

import (
	"context"

	"github.com/angelmondragon/crewsync/pkg/auth"
	"github.com/angelmondragon/crewsync/pkg/enums"
)

type contextKey string

const ctxClaims contextKey = "access_claims"

// WithClaims injects the caller's claims into the context.
func WithClaims(ctx context.Context, claims *auth.AccessTokenClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClaims, claims)
}

func ClaimsFromContext(ctx context.Context) *auth.AccessTokenClaims {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxClaims).(*auth.AccessTokenClaims); ok {
		return v
	}
	return nil
}

func EmployeeIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.EmployeeID
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.AgentRole {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Role
	}
	return ""
}
