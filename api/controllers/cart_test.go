package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vendorr/vendorr-edge/pkg/currency"
)

const jollof = `{"product":{"id":"p1","name":"Jollof Rice","price":"1500","image":"/img/jollof.png","category":"mains"},"quantity":2}`

func TestCartAddItemAcceptsMenuPayload(t *testing.T) {
	sessions := newCartSessions(t)
	rec := httptest.NewRecorder()
	CartAddItem(sessions, nil)(rec, jsonRequest(http.MethodPost, "/_edge/cart/items", jollof, "s1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["added"] != true {
		t.Fatalf("expected added=true, got %v", data["added"])
	}
	body := data["cart"].(map[string]any)
	if body["item_count"].(float64) != 2 {
		t.Fatalf("expected item_count 2, got %v", body["item_count"])
	}
	if want := currency.FormatNaira(decimal.NewFromInt(3000)); body["total_display"] != want {
		t.Fatalf("expected %s, got %v", want, body["total_display"])
	}
	if _, ok := data["line"]; !ok {
		t.Fatalf("expected added line in response")
	}
}

func TestCartAddItemNegativePriceIsIgnored(t *testing.T) {
	sessions := newCartSessions(t)
	rec := httptest.NewRecorder()
	body := `{"product":{"id":"p1","price":"-5"}}`
	CartAddItem(sessions, nil)(rec, jsonRequest(http.MethodPost, "/_edge/cart/items", body, "s1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := decodeData(t, rec)
	if data["added"] != false {
		t.Fatalf("expected added=false, got %v", data["added"])
	}
	if _, ok := data["line"]; ok {
		t.Fatalf("refused add should not report a line")
	}
}

func TestCartAddItemRequiresProductID(t *testing.T) {
	sessions := newCartSessions(t)
	rec := httptest.NewRecorder()
	CartAddItem(sessions, nil)(rec, jsonRequest(http.MethodPost, "/_edge/cart/items", `{"product":{"price":"10"}}`, "s1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCartRequiresSession(t *testing.T) {
	sessions := newCartSessions(t)
	rec := httptest.NewRecorder()
	CartFetch(sessions, nil)(rec, jsonRequest(http.MethodGet, "/_edge/cart", "", ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session, got %d", rec.Code)
	}
}

func TestCartLookupUpdateAndRemove(t *testing.T) {
	sessions := newCartSessions(t)
	CartAddItem(sessions, nil)(httptest.NewRecorder(), jsonRequest(http.MethodPost, "/", jollof, "s1"))

	rec := httptest.NewRecorder()
	CartLookup(sessions, nil)(rec, jsonRequest(http.MethodPost, "/", `{"product_id":"p1"}`, "s1"))
	data := decodeData(t, rec)
	if data["in_cart"] != true || data["quantity"].(float64) != 2 {
		t.Fatalf("unexpected lookup %v", data)
	}

	rec = httptest.NewRecorder()
	CartUpdateItem(sessions, nil)(rec, jsonRequest(http.MethodPatch, "/", `{"product_id":"p1","quantity":5}`, "s1"))
	if got := decodeData(t, rec)["item_count"].(float64); got != 5 {
		t.Fatalf("expected 5 items after update, got %v", got)
	}

	rec = httptest.NewRecorder()
	CartRemoveItem(sessions, nil)(rec, jsonRequest(http.MethodDelete, "/", `{"product_id":"p1"}`, "s1"))
	data = decodeData(t, rec)
	if data["item_count"].(float64) != 0 {
		t.Fatalf("expected empty cart, got %v", data)
	}
	if items := data["items"].([]any); len(items) != 0 {
		t.Fatalf("expected empty items array, got %v", items)
	}
}

func TestCartUpdateRejectsUnknownFields(t *testing.T) {
	sessions := newCartSessions(t)
	rec := httptest.NewRecorder()
	CartUpdateItem(sessions, nil)(rec, jsonRequest(http.MethodPatch, "/", `{"product_id":"p1","qty":1}`, "s1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCartSessionsAreIsolated(t *testing.T) {
	sessions := newCartSessions(t)
	CartAddItem(sessions, nil)(httptest.NewRecorder(), jsonRequest(http.MethodPost, "/", jollof, "s1"))

	rec := httptest.NewRecorder()
	CartFetch(sessions, nil)(rec, jsonRequest(http.MethodGet, "/", "", "s2"))
	if got := decodeData(t, rec)["item_count"].(float64); got != 0 {
		t.Fatalf("second session should see an empty cart, got %v", got)
	}

	rec = httptest.NewRecorder()
	CartClear(sessions, nil)(rec, jsonRequest(http.MethodDelete, "/", "", "s1"))
	if got := decodeData(t, rec)["item_count"].(float64); got != 0 {
		t.Fatalf("expected cleared cart, got %v", got)
	}
}
