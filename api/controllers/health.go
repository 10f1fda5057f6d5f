package controllers

import (
	"context"
	"net/http"

	"github.com/vendorr/vendorr-edge/api/responses"
	"github.com/vendorr/vendorr-edge/pkg/config"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// Pinger is any dependency with a health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheStatus reports which cache generation serves traffic.
type CacheStatus interface {
	Ready() bool
	Serving() string
	Generation() string
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vendorr-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready once a cache generation serves and every
// configured dependency answers. Nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, cache CacheStatus, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vendorr-Env", cfg.App.Env)
		checks := map[string]string{}
		ready := true
		for name, p := range pingers {
			if p == nil {
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}
		body := map[string]any{"checks": checks}
		if cache != nil {
			body["generation"] = cache.Generation()
			body["serving"] = cache.Serving()
			if !cache.Ready() {
				checks["cache"] = "no active generation"
				ready = false
			} else {
				checks["cache"] = "ok"
			}
		}
		if !ready {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "edge not ready").WithDetails(body))
			return
		}
		body["status"] = "ready"
		responses.WriteSuccess(w, body)
	}
}
