package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vendorr/vendorr-edge/api/middleware"
	"github.com/vendorr/vendorr-edge/internal/cart"
	"github.com/vendorr/vendorr-edge/pkg/types"
)

type memCartStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCartStore() *memCartStore {
	return &memCartStore{data: map[string][]byte{}}
}

func (m *memCartStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[sessionID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return data, nil
}

func (m *memCartStore) Save(_ context.Context, sessionID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = data
	return nil
}

func newCartSessions(t *testing.T) *cart.Sessions {
	t.Helper()
	sessions, err := cart.NewSessions(newMemCartStore(), nil, cart.SessionLimits{})
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	return sessions
}

func jsonRequest(method, target, body, sessionID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req = req.WithContext(middleware.WithSessionID(req.Context(), sessionID))
	}
	return req
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode success envelope: %v (%s)", err, rec.Body.String())
	}
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data %T", env.Data)
	}
	return data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var env types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return env.Error
}
