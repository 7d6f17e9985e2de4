package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
)

// QueryID reads an identifier from the query string through CleanID.
func QueryID(r *http.Request, key string) string {
	return CleanID(r.URL.Query().Get(key))
}

// ParseQueryBool reads a boolean flag. Absent means fallback; anything
// strconv.ParseBool rejects is a validation error.
func ParseQueryBool(r *http.Request, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a boolean").
			WithDetails(map[string]string{key: "must be true or false"})
	}
	return value, nil
}
