package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vendorr/vendorr-edge/api/middleware"
	"github.com/vendorr/vendorr-edge/api/responses"
	"github.com/vendorr/vendorr-edge/api/validators"
	"github.com/vendorr/vendorr-edge/internal/notifications"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// Inbox is the device notification inbox.
type Inbox interface {
	List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	MarkRead(ctx context.Context, token, notificationID string) error
	MarkAllRead(ctx context.Context, token string) (int64, error)
	Clear(ctx context.Context, notificationID string) error
	ClearAll(ctx context.Context) (int64, error)
}

type clickRequest struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

// ListNotifications returns the inbox newest first with the unread count.
func ListNotifications(svc Inbox, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := notifications.ListParams{
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unreadOnly,
		}

		resp, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// MarkNotificationRead marks one notification read locally and on the backend.
func MarkNotificationRead(svc Inbox, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "notificationId"))
		if err := svc.MarkRead(r.Context(), middleware.TokenFromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "read": true})
	}
}

func MarkAllNotificationsRead(svc Inbox, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := svc.MarkAllRead(r.Context(), middleware.TokenFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"updated": updated})
	}
}

func ClearNotification(svc Inbox, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "notificationId"))
		if err := svc.Clear(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ClearNotifications(svc Inbox, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := svc.ClearAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"removed": removed})
	}
}

// NotificationClick resolves a notification click to the route to open.
func NotificationClick(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload clickRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		route, open := notifications.ResolveClick(payload.Action, payload.Data)
		responses.WriteSuccess(w, map[string]any{"route": route, "open": open})
	}
}
