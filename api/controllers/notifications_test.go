package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/vendorr/vendorr-edge/api/middleware"
	"github.com/vendorr/vendorr-edge/internal/notifications"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
)

type fakeInbox struct {
	listParams notifications.ListParams
	readID     string
	readToken  string
	cleared    string
}

func (f *fakeInbox) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	f.listParams = params
	return &notifications.ListResult{Items: []notifications.Item{}, UnreadCount: 3}, nil
}

func (f *fakeInbox) MarkRead(_ context.Context, token, id string) error {
	if id == "missing" {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	f.readToken, f.readID = token, id
	return nil
}

func (f *fakeInbox) MarkAllRead(context.Context, string) (int64, error) { return 4, nil }

func (f *fakeInbox) Clear(_ context.Context, id string) error {
	f.cleared = id
	return nil
}

func (f *fakeInbox) ClearAll(context.Context) (int64, error) { return 7, nil }

func notificationsRouter(inbox Inbox) http.Handler {
	r := chi.NewRouter()
	r.Get("/notifications", ListNotifications(inbox, nil))
	r.Delete("/notifications", ClearNotifications(inbox, nil))
	r.Post("/notifications/read-all", MarkAllNotificationsRead(inbox, nil))
	r.Post("/notifications/click", NotificationClick(nil))
	r.Post("/notifications/{notificationId}/read", MarkNotificationRead(inbox, nil))
	r.Delete("/notifications/{notificationId}", ClearNotification(inbox, nil))
	return r
}

func TestListNotificationsParsesQuery(t *testing.T) {
	inbox := &fakeInbox{}
	rec := httptest.NewRecorder()
	notificationsRouter(inbox).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications?limit=5&cursor=abc&unreadOnly=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if inbox.listParams.Limit != 5 || inbox.listParams.Cursor != "abc" || !inbox.listParams.UnreadOnly {
		t.Fatalf("unexpected params %+v", inbox.listParams)
	}
	if decodeData(t, rec)["unread_count"].(float64) != 3 {
		t.Fatalf("expected unread count in response")
	}
}

func TestListNotificationsRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"limit=500", "limit=abc", "unreadOnly=maybe"} {
		rec := httptest.NewRecorder()
		notificationsRouter(&fakeInbox{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications?"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestMarkNotificationReadUsesToken(t *testing.T) {
	inbox := &fakeInbox{}
	req := httptest.NewRequest(http.MethodPost, "/notifications/n1/read", nil)
	req = req.WithContext(middleware.WithToken(req.Context(), "tok"))
	rec := httptest.NewRecorder()
	notificationsRouter(inbox).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if inbox.readID != "n1" || inbox.readToken != "tok" {
		t.Fatalf("unexpected mark read %q/%q", inbox.readID, inbox.readToken)
	}

	rec = httptest.NewRecorder()
	notificationsRouter(inbox).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/missing/read", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestClearNotifications(t *testing.T) {
	inbox := &fakeInbox{}
	rec := httptest.NewRecorder()
	notificationsRouter(inbox).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/notifications/n9", nil))
	if rec.Code != http.StatusNoContent || inbox.cleared != "n9" {
		t.Fatalf("expected 204 clearing n9, got %d %q", rec.Code, inbox.cleared)
	}

	rec = httptest.NewRecorder()
	notificationsRouter(inbox).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/notifications", nil))
	if decodeData(t, rec)["removed"].(float64) != 7 {
		t.Fatalf("unexpected clear all response %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	notificationsRouter(inbox).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/read-all", nil))
	if decodeData(t, rec)["updated"].(float64) != 4 {
		t.Fatalf("unexpected read-all response %s", rec.Body.String())
	}
}

func TestNotificationClickRoutes(t *testing.T) {
	cases := []struct {
		body  string
		route string
		open  bool
	}{
		{`{"action":"view","data":{"orderId":"77"}}`, "/orders/77", true},
		{`{"action":"dismiss","data":{"orderId":"77"}}`, "", false},
		{`{"data":{"url":"/menu"}}`, "/menu", true},
		{`{}`, "/", true},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		notificationsRouter(&fakeInbox{}).ServeHTTP(rec, jsonRequest(http.MethodPost, "/notifications/click", tc.body, ""))
		data := decodeData(t, rec)
		if data["route"] != tc.route || data["open"] != tc.open {
			t.Fatalf("%s: expected %q/%v, got %v", tc.body, tc.route, tc.open, data)
		}
	}
}
