package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vendorr/vendorr-edge/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID keeps a well-formed inbound request id, or mints one, and echoes
// it on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if !validClientID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := WithRequestID(r.Context(), id)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
