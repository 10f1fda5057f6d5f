package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidQuery(key, message string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// ParseQueryInt reads an optional integer bounded by [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, "query parameter must be numeric", nil)
	}
	if value < min || value > max {
		return 0, invalidQuery(key, "query parameter out of range", map[string]any{"min": min, "max": max})
	}
	return value, nil
}

// ParseQueryBool reads an optional boolean in any strconv.ParseBool form.
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidQuery(key, "query parameter must be a boolean", nil)
	}
	return value, nil
}
