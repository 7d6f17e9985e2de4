package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/crewsync/api/validators"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
)

// AuthorizeEmployee fails unless the caller may act for employeeID.
func AuthorizeEmployee(ctx context.Context, employeeID string) error {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	if !claims.CanActFor(strings.TrimSpace(employeeID)) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to act for this employee")
	}
	return nil
}

// ResolveEmployee picks the employee a read request targets: the employeeId
// query parameter, else the caller's own employee. The result may be empty
// for gateway callers listing everything.
func ResolveEmployee(r *http.Request) (string, error) {
	employeeID := validators.QueryID(r, "employeeId")
	if employeeID == "" {
		employeeID = EmployeeIDFromContext(r.Context())
	}
	if employeeID == "" {
		if claims := ClaimsFromContext(r.Context()); claims != nil && claims.CanActFor("") {
			return "", nil
		}
	}
	if err := AuthorizeEmployee(r.Context(), employeeID); err != nil {
		return "", err
	}
	return employeeID, nil
}
