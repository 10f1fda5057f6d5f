// Package vendorrapi is the REST client for the Vendorr backend.
package vendorrapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout = 10 * time.Second

	PathCreateOrder      = "/api/orders/"
	PathMyOrders         = "/api/orders/my/"
	PathUploadReceipt    = "/api/orders/upload-receipt"
	PathNotifications    = "/api/notifications"
	PathNotificationRead = "/api/notifications/%s/read"
	PathNotificationsAll = "/api/notifications/read-all"
	PathHealth           = "/health"

	HeaderIdempotencyKey = "Idempotency-Key"
)

// ErrUnreachable marks failures where no HTTP response was received.
var ErrUnreachable = errors.New("vendorr api unreachable")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("vendorr api status %d", e.Status)
	}
	return fmt.Sprintf("vendorr api status %d: %s", e.Status, e.Detail)
}

// UpstreamStatus exposes the backend status to error dumps.
func (e *APIError) UpstreamStatus() int { return e.Status }

// StatusOf returns the HTTP status carried by err, or 0 when there was none.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client wraps the backend endpoints the edge calls.
type Client struct {
	http *resty.Client
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = resty.NewWithClient(client).
				SetBaseURL(c.http.BaseURL).
				SetTimeout(c.http.GetClient().Timeout)
		}
	}
}

// NewClient builds a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("vendorr api base url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		http: resty.New().
			SetBaseURL(trimmed).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// OrderItem is one line of an order request.
type OrderItem struct {
	MenuItemID          string         `json:"menu_item_id"`
	Quantity            int            `json:"quantity"`
	Customizations      map[string]any `json:"customizations"`
	SpecialInstructions string         `json:"special_instructions"`
}

// OrderRequest is the create-order payload.
type OrderRequest struct {
	OrderType           string      `json:"order_type"`
	CustomerPhone       string      `json:"customer_phone"`
	SpecialInstructions string      `json:"special_instructions"`
	PaymentMethod       string      `json:"payment_method"`
	PaymentReference    string      `json:"payment_reference"`
	BankTransferReceipt string      `json:"bank_transfer_receipt"`
	Items               []OrderItem `json:"items"`
}

// Order is the subset of the backend order the edge reads; Raw keeps the full body.
type Order struct {
	ID          json.RawMessage `json:"id"`
	OrderNumber string          `json:"order_number"`
	Status      string          `json:"status"`
	Raw         json.RawMessage `json:"-"`
}

// CreateOrder posts an order. idempotencyKey is forwarded so replays are safe.
func (c *Client) CreateOrder(ctx context.Context, token, idempotencyKey string, order OrderRequest) (*Order, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	return c.CreateOrderRaw(ctx, token, idempotencyKey, body)
}

// CreateOrderRaw posts an already serialised order payload.
func (c *Client) CreateOrderRaw(ctx context.Context, token, idempotencyKey string, payload []byte) (*Order, error) {
	req := c.request(ctx, token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	if idempotencyKey != "" {
		req.SetHeader(HeaderIdempotencyKey, idempotencyKey)
	}
	resp, err := req.Post(PathCreateOrder)
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return decodeOrder(resp.Body())
}

// UploadReceipt sends the proof of payment and returns the stored file url.
func (c *Client) UploadReceipt(ctx context.Context, token, filename string, file io.Reader) (string, error) {
	var out struct {
		FileURL string `json:"file_url"`
	}
	resp, err := c.request(ctx, token).
		SetFileReader("file", filename, file).
		SetResult(&out).
		Post(PathUploadReceipt)
	if err := classify(resp, err); err != nil {
		return "", err
	}
	if out.FileURL == "" {
		return "", &APIError{Status: resp.StatusCode(), Detail: "upload response missing file_url"}
	}
	return out.FileURL, nil
}

// MyOrders lists the caller's orders as raw JSON.
func (c *Client) MyOrders(ctx context.Context, token string) (json.RawMessage, error) {
	resp, err := c.request(ctx, token).Get(PathMyOrders)
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body()), nil
}

// RemoteNotification is one entry of the backend notification feed.
type RemoteNotification struct {
	ID               json.RawMessage `json:"id"`
	Title            string          `json:"title"`
	Message          string          `json:"message"`
	Type             string          `json:"type"`
	NotificationType string          `json:"notification_type"`
	Unread           bool            `json:"unread"`
	Data             map[string]any  `json:"data"`
	Timestamp        string          `json:"timestamp"`
}

// Notifications fetches the notification feed.
func (c *Client) Notifications(ctx context.Context, token string) ([]RemoteNotification, error) {
	var out []RemoteNotification
	resp, err := c.request(ctx, token).SetResult(&out).Get(PathNotifications)
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead propagates a read mark.
func (c *Client) MarkNotificationRead(ctx context.Context, token, id string) error {
	resp, err := c.request(ctx, token).Put(fmt.Sprintf(PathNotificationRead, id))
	return classify(resp, err)
}

// MarkAllNotificationsRead propagates a read-all mark.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, token string) error {
	resp, err := c.request(ctx, token).Put(PathNotificationsAll)
	return classify(resp, err)
}

// Health probes the backend. Any answer below 500 counts as reachable.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.request(ctx, "").Get(PathHealth)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return &APIError{Status: resp.StatusCode(), Detail: "health check failed"}
	}
	return nil
}

func classify(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.IsError() || resp.StatusCode() >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode(), Detail: detailOf(resp.Body())}
	}
	return nil
}

// detailOf extracts the "detail" field the backend uses for error messages.
func detailOf(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}
	return string(payload.Detail)
}

func decodeOrder(body []byte) (*Order, error) {
	order := &Order{}
	if err := json.Unmarshal(body, order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	order.Raw = append(json.RawMessage(nil), body...)
	return order, nil
}

// Identifier returns the order id as text whether the backend sent a number or a string.
func (o *Order) Identifier() string {
	return RawID(o.ID)
}

// RawID renders a JSON id (number or string) as text.
func RawID(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
