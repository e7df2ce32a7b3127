package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
)

const maxQueryText = 120

// ParseQueryInt reads key as an int within [min, max]. A missing key yields
// defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a whole number", key).
			WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be between %d and %d", key, min, max).
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// QueryText returns a sanitized free text query parameter such as a search term.
func QueryText(r *http.Request, key string) string {
	return SanitizeString(r.URL.Query().Get(key), maxQueryText)
}
