package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vendorr/vendorr-edge/pkg/config"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
)

type fakeCache struct{ ready bool }

func (f fakeCache) Ready() bool        { return f.ready }
func (f fakeCache) Serving() string    { return "vendorr-v1" }
func (f fakeCache) Generation() string { return "vendorr-v2" }

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthLive(testConfig())(rec, httptest.NewRequest(http.MethodGet, "/_edge/health/live", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Vendorr-Env") != "test" {
		t.Fatalf("unexpected live response %d %v", rec.Code, rec.Header())
	}
}

func TestHealthReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	cases := []struct {
		name    string
		cache   CacheStatus
		pingers map[string]Pinger
		status  int
	}{
		{"all ready", fakeCache{ready: true}, map[string]Pinger{"database": ok, "redis": nil}, http.StatusOK},
		{"dependency down", fakeCache{ready: true}, map[string]Pinger{"database": down}, http.StatusServiceUnavailable},
		{"no active generation", fakeCache{ready: false}, map[string]Pinger{"database": ok}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthReady(testConfig(), nil, tc.cache, tc.pingers)(rec, httptest.NewRequest(http.MethodGet, "/_edge/health/ready", nil))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status != http.StatusOK {
				if got := decodeError(t, rec); got.Code != string(pkgerrors.CodeDependency) || got.Details == nil {
					t.Fatalf("expected dependency error with checks, got %+v", got)
				}
				return
			}
			data := decodeData(t, rec)
			if data["status"] != "ready" || data["serving"] != "vendorr-v1" {
				t.Fatalf("unexpected ready body %v", data)
			}
		})
	}
}
