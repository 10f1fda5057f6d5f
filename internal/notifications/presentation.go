package notifications

import (
	"fmt"
	"strings"
)

const (
	iconPath  = "/assets/icon-192x192.svg"
	badgePath = "/assets/icon-72x72.png"

	ActionView    = "view"
	ActionDismiss = "dismiss"
)

// Action is a button shown on a presented notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Presentation is what the device shows for one notification.
type Presentation struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon"`
	Badge              string         `json:"badge,omitempty"`
	Vibrate            []int          `json:"vibrate,omitempty"`
	RequireInteraction bool           `json:"requireInteraction"`
	Actions            []Action       `json:"actions,omitempty"`
	Data               map[string]any `json:"data"`
}

// Present builds the device notification for env. Pushed and realtime
// notifications get the interactive treatment; reconciled ones are plain.
func Present(env Envelope) Presentation {
	p := Presentation{
		ID:    env.ID,
		Title: env.Title,
		Body:  env.Body,
		Icon:  iconPath,
		Data:  env.Data,
	}
	if env.Source == SourceSync {
		return p
	}
	p.Badge = badgePath
	p.Vibrate = []int{100, 50, 100}
	p.RequireInteraction = true
	p.Actions = []Action{
		{Action: ActionView, Title: "View Order", Icon: badgePath},
		{Action: ActionDismiss, Title: "Dismiss", Icon: badgePath},
	}
	return p
}

// ResolveClick maps a notification click to the route the UI should open.
// open is false when the click only dismisses the notification.
func ResolveClick(action string, data map[string]any) (route string, open bool) {
	if action == ActionView {
		if id := orderIDOf(data); id != "" {
			return "/orders/" + id, true
		}
	}
	if action == ActionDismiss {
		return "", false
	}
	if url, ok := data["url"].(string); ok && strings.TrimSpace(url) != "" {
		return url, true
	}
	return "/", true
}

func orderIDOf(data map[string]any) string {
	for _, key := range []string{"orderId", "order_id"} {
		switch v := data[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case int:
			return fmt.Sprintf("%d", v)
		}
	}
	return ""
}
