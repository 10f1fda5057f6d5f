package middleware

import (
	"net/http"

	"github.com/vendorr/vendorr-edge/pkg/auth"
)

// BearerToken lifts the Authorization bearer token into the request context.
// The edge only forwards it; the backend decides whether it is valid.
func BearerToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
		})
	}
}
