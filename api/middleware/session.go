package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// SessionHeader carries the client session id in both directions.
const SessionHeader = "X-Vendorr-Session"

// maxClientIDLen bounds ids a client may supply for sessions and requests.
const maxClientIDLen = 128

// Session resolves the client session from SessionHeader, issuing a new id
// when the header is absent or unusable. The id is echoed on the response.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
			if !validClientID(sessionID) {
				sessionID = uuid.NewString()
			}
			w.Header().Set(SessionHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validClientID(id string) bool {
	if id == "" || len(id) > maxClientIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
