package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vendorr/vendorr-edge/api/middleware"
	"github.com/vendorr/vendorr-edge/api/responses"
	"github.com/vendorr/vendorr-edge/api/validators"
	"github.com/vendorr/vendorr-edge/internal/controller"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

const (
	maxPushBytes = 64 << 10

	// DeliveryHeader lets push senders name a delivery when the payload has no id.
	DeliveryHeader = "X-Vendorr-Delivery"
)

// CommandBus is the controller mailbox plus its event stream.
type CommandBus interface {
	Send(cmd controller.Command) (string, error)
	Subscribe(buffer int) (<-chan controller.Event, func())
}

type messageRequest struct {
	Type    controller.CommandType `json:"type" validate:"required,oneof=SKIP_WAITING CACHE_ORDER"`
	OrderID string                 `json:"order_id"`
	Order   json.RawMessage        `json:"order"`
}

type acceptedResponse struct {
	RequestID string `json:"request_id"`
}

// Messages accepts the foreground commands a page may post to the controller.
func Messages(bus CommandBus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload messageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := bus.Send(controller.Command{
			Type:    payload.Type,
			OrderID: payload.OrderID,
			Order:   payload.Order,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, acceptedResponse{RequestID: id})
	}
}

// SyncTag fires a background sync tag. The caller's bearer token, when
// present, is used for backend calls made by the sync.
func SyncTag(bus CommandBus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := bus.Send(controller.Command{
			Type:  controller.CommandSync,
			Tag:   chi.URLParam(r, "tag"),
			Token: middleware.TokenFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, acceptedResponse{RequestID: id})
	}
}

// Push delivers a raw push payload to the controller.
func Push(bus CommandBus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable push payload"))
			return
		}
		id, err := bus.Send(controller.Command{
			Type:       controller.CommandPush,
			Payload:    body,
			DeliveryID: strings.TrimSpace(r.Header.Get(DeliveryHeader)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, acceptedResponse{RequestID: id})
	}
}

// Events streams controller events as server-sent events until the client
// goes away.
func Events(bus CommandBus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}
		events, stop := bus.Subscribe(32)
		defer stop()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, open := <-events:
				if !open {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					if logg != nil {
						logg.Error(r.Context(), "encode controller event", err)
					}
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
