package notifications

import "testing"

func TestPresentInteractive(t *testing.T) {
	p := Present(Envelope{ID: "1", Title: "t", Body: "b", Source: SourcePush, Data: map[string]any{}})
	if p.Icon != "/assets/icon-192x192.svg" || p.Badge != "/assets/icon-72x72.png" {
		t.Fatalf("unexpected icons %+v", p)
	}
	if !p.RequireInteraction || len(p.Actions) != 2 {
		t.Fatalf("push notifications need interaction and two actions: %+v", p)
	}
	if p.Actions[0].Action != ActionView || p.Actions[0].Title != "View Order" || p.Actions[1].Action != ActionDismiss {
		t.Fatalf("unexpected actions %+v", p.Actions)
	}
}

func TestPresentSyncIsPlain(t *testing.T) {
	p := Present(Envelope{ID: "1", Source: SourceSync})
	if p.RequireInteraction || len(p.Actions) != 0 || p.Icon == "" {
		t.Fatalf("reconciled notification should be plain: %+v", p)
	}
}

func TestResolveClick(t *testing.T) {
	cases := []struct {
		name   string
		action string
		data   map[string]any
		route  string
		open   bool
	}{
		{"view order", ActionView, map[string]any{"orderId": "42"}, "/orders/42", true},
		{"view numeric order", ActionView, map[string]any{"order_id": float64(7)}, "/orders/7", true},
		{"dismiss", ActionDismiss, map[string]any{"orderId": "42"}, "", false},
		{"deep link", "", map[string]any{"url": "/menu"}, "/menu", true},
		{"view without order uses url", ActionView, map[string]any{"url": "/promo"}, "/promo", true},
		{"default", "", nil, "/", true},
	}
	for _, tc := range cases {
		route, open := ResolveClick(tc.action, tc.data)
		if route != tc.route || open != tc.open {
			t.Errorf("%s: expected (%q,%v), got (%q,%v)", tc.name, tc.route, tc.open, route, open)
		}
	}
}
