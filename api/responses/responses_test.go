package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) || body.Error.Message != "bad input" {
		t.Fatalf("unexpected error %+v", body.Error)
	}
	if body.Error.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorKeepsCustomerMessages(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeUnreachable, "Unable to connect to server.")
	WriteError(context.Background(), nil, w, err)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message != "Unable to connect to server." {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) || body.Error.Message != "internal server error" {
		t.Fatalf("unexpected error %+v", body.Error)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestErrorPayloadHidesDetailsWhenCodeForbidsThem(t *testing.T) {
	status, body := ErrorPayload(pkgerrors.New(pkgerrors.CodeQueueFull, "controller mailbox full").
		WithDetails(map[string]any{"depth": 64}))

	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
	if body.Error.Details != nil {
		t.Fatalf("queue full must not expose details, got %v", body.Error.Details)
	}
	if body.Error.Message != "controller mailbox full" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}

func TestWriteErrorLogsClientErrorsAtWarn(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{Format: logger.FormatJSON, Output: buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeValidation, "missing product id"))
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("expected warn entry, got %s", buf.String())
	}

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), errors.New("disk full"))
	if !strings.Contains(buf.String(), `"level":"error"`) || !strings.Contains(buf.String(), `"status":500`) {
		t.Fatalf("expected error entry with status, got %s", buf.String())
	}
}
