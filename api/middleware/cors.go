package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS applies the PWA origin policy. An empty list falls back to local dev origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionHeader, "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{SessionHeader, requestIDHeader, "X-Vendorr-Cache"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
