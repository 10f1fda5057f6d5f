package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorr/vendorr-edge/internal/cart"
	"github.com/vendorr/vendorr-edge/internal/pending"
	"github.com/vendorr/vendorr-edge/pkg/auth"
	pkgcheckout "github.com/vendorr/vendorr-edge/pkg/checkout"
	"github.com/vendorr/vendorr-edge/pkg/db/models"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/vendorrapi"
)

const (
	LoginRoute = "/login"

	defaultPaymentMethod = "bank_transfer"

	msgLoginRequired  = "You must be logged in to place an order. Please log in and try again."
	msgSessionExpired = "Your session has expired. Please log in again to place your order."
	msgNotAuthorized  = "You are not authorized to place orders. Please log in with a valid customer account."
	msgUnavailable    = "One or more items in your cart are no longer available. Please refresh and try again."
	msgInvalidOrder   = "Invalid order data. Please check your information and try again."
	msgServerError    = "Server error occurred. Please try again later or contact support."
	msgGeneric        = "Failed to place order. Please try again."
	msgUnreachable    = "Unable to connect to server. Please check your internet connection and try again."
	msgQueued         = "You appear to be offline. Your order was saved and will be submitted automatically once you are back online."
	msgEmptyCart      = "Your cart is empty."
)

// Carts resolves the cart of a client session.
type Carts interface {
	Get(ctx context.Context, sessionID string) (*cart.Engine, error)
}

// OrderAPI is the part of the backend a checkout talks to.
type OrderAPI interface {
	UploadReceipt(ctx context.Context, token, filename string, file io.Reader) (string, error)
	CreateOrder(ctx context.Context, token, idempotencyKey string, order vendorrapi.OrderRequest) (*vendorrapi.Order, error)
}

// Queue stores orders that could not reach the backend.
type Queue interface {
	Enqueue(ctx context.Context, input pending.EnqueueInput) (*models.PendingSubmission, error)
}

// Receipt is the uploaded proof of payment.
type Receipt struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Input is one checkout attempt.
type Input struct {
	SessionID           string
	Token               string
	OrderType           string
	Phone               string
	SpecialInstructions string
	Receipt             *Receipt
}

// Result describes a placed order.
type Result struct {
	OrderID          string          `json:"order_id"`
	OrderNumber      string          `json:"order_number,omitempty"`
	PaymentReference string          `json:"payment_reference"`
	Redirect         string          `json:"redirect"`
	Summary          Summary         `json:"summary"`
	Order            json.RawMessage `json:"order,omitempty"`
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Carts           Carts
	API             OrderAPI
	Queue           Queue
	Logger          *logger.Logger
	TaxRate         string
	PaymentMethod   string
	MaxReceiptBytes int64
}

type Service struct {
	carts           Carts
	api             OrderAPI
	queue           Queue
	logg            *logger.Logger
	taxRate         decimal.Decimal
	paymentMethod   string
	maxReceiptBytes int64
	now             func() time.Time
	newKey          func() string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart sessions required")
	}
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order api required")
	}
	rate := decimal.Zero
	if strings.TrimSpace(params.TaxRate) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(params.TaxRate))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tax rate")
		}
		if parsed.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must not be negative")
		}
		rate = parsed
	}
	method := strings.TrimSpace(params.PaymentMethod)
	if method == "" {
		method = defaultPaymentMethod
	}
	return &Service{
		carts:           params.Carts,
		api:             params.API,
		queue:           params.Queue,
		logg:            params.Logger,
		taxRate:         rate,
		paymentMethod:   method,
		maxReceiptBytes: params.MaxReceiptBytes,
		now:             time.Now,
		newKey:          uuid.NewString,
	}, nil
}

// Summary prices the session's current cart.
func (s *Service) Summary(ctx context.Context, sessionID string) (Summary, error) {
	engine, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "session required")
	}
	return Summarize(engine.Items(), s.taxRate), nil
}

// Submit places the session's cart as an order. On success the cart is
// cleared. When the backend cannot be reached for the order itself, the
// payload is queued for the order-sync pass and the cart is kept.
func (s *Service) Submit(ctx context.Context, input Input) (*Result, error) {
	if err := s.checkToken(input.Token); err != nil {
		return nil, err
	}

	form := pkgcheckout.FormInput{
		Phone:           input.Phone,
		OrderType:       input.OrderType,
		HasReceipt:      input.Receipt != nil && input.Receipt.Body != nil,
		MaxReceiptBytes: s.maxReceiptBytes,
	}
	if input.Receipt != nil {
		form.ReceiptBytes = input.Receipt.Size
	}
	if err := pkgcheckout.ValidateForm(form); err != nil {
		return nil, err
	}
	orderType, _ := pkgcheckout.ParseOrderType(input.OrderType)

	engine, err := s.carts.Get(ctx, input.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "session required")
	}
	items := engine.Items()
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
	}
	summary := Summarize(items, s.taxRate)

	ctx = s.withSession(ctx, input.SessionID)

	receiptURL, err := s.api.UploadReceipt(ctx, input.Token, input.Receipt.Filename, input.Receipt.Body)
	if err != nil {
		s.warn(ctx, "receipt upload failed", err)
		return nil, translate(err)
	}

	reference := PaymentReference(s.now())
	request, err := buildOrderRequest(items, orderType, input, s.paymentMethod, reference, receiptURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build order request")
	}

	idempotencyKey := s.newKey()
	ctx = s.withIdempotencyKey(ctx, idempotencyKey)
	order, err := s.api.CreateOrder(ctx, input.Token, idempotencyKey, request)
	if err != nil {
		if errors.Is(err, vendorrapi.ErrUnreachable) {
			return nil, s.queueOrder(ctx, input, idempotencyKey, request, summary, err)
		}
		s.warn(ctx, "order rejected", err)
		return nil, translate(err)
	}

	engine.Clear(ctx)

	orderID := order.Identifier()
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID), "order placed")
	}
	return &Result{
		OrderID:          orderID,
		OrderNumber:      order.OrderNumber,
		PaymentReference: reference,
		Redirect:         "/order-confirmation/" + orderID,
		Summary:          summary,
		Order:            order.Raw,
	}, nil
}

func (s *Service) checkToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return loginError(pkgerrors.CodeUnauthorized, msgLoginRequired, nil)
	}
	expired, err := auth.Expired(token, s.now())
	if err != nil {
		return loginError(pkgerrors.CodeUnauthorized, msgLoginRequired, err)
	}
	if expired {
		return loginError(pkgerrors.CodeUnauthorized, msgSessionExpired, nil)
	}
	return nil
}

func (s *Service) queueOrder(ctx context.Context, input Input, idempotencyKey string, request vendorrapi.OrderRequest, summary Summary, cause error) error {
	if s.queue == nil {
		s.warn(ctx, "order unreachable and no queue configured", cause)
		return pkgerrors.Wrap(pkgerrors.CodeUnreachable, cause, msgUnreachable)
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode pending order")
	}
	row, err := s.queue.Enqueue(ctx, pending.EnqueueInput{
		SessionID:      input.SessionID,
		IdempotencyKey: idempotencyKey,
		AuthToken:      input.Token,
		Payload:        payload,
	})
	if err != nil {
		s.warn(ctx, "order unreachable and could not be queued", err)
		return pkgerrors.Wrap(pkgerrors.CodeUnreachable, cause, msgUnreachable)
	}
	s.warn(ctx, "order queued for background sync", cause)
	return pkgerrors.Wrap(pkgerrors.CodeUnreachable, cause, msgQueued).WithDetails(map[string]any{
		"queued":            true,
		"pending_id":        row.ID,
		"payment_reference": request.PaymentReference,
		"summary":           summary,
	})
}

// PaymentReference derives the ORDER-xxxxxx reference from the last six
// digits of the unix millisecond clock. It is a label for the customer's
// bank transfer and repeats every 1000 seconds, so it never identifies an
// order on the wire.
func PaymentReference(now time.Time) string {
	return fmt.Sprintf("ORDER-%06d", now.UnixMilli()%1_000_000)
}

func buildOrderRequest(items []cart.LineItem, orderType pkgcheckout.OrderType, input Input, method, reference, receiptURL string) (vendorrapi.OrderRequest, error) {
	lines := make([]vendorrapi.OrderItem, 0, len(items))
	for _, item := range items {
		custom, err := customizationsPayload(item.Customizations)
		if err != nil {
			return vendorrapi.OrderRequest{}, err
		}
		lines = append(lines, vendorrapi.OrderItem{
			MenuItemID:     item.ProductID,
			Quantity:       item.Quantity,
			Customizations: custom,
		})
	}
	return vendorrapi.OrderRequest{
		OrderType:           string(orderType),
		CustomerPhone:       strings.TrimSpace(input.Phone),
		SpecialInstructions: strings.TrimSpace(input.SpecialInstructions),
		PaymentMethod:       method,
		PaymentReference:    reference,
		BankTransferReceipt: receiptURL,
		Items:               lines,
	}, nil
}

func customizationsPayload(c cart.Customizations) (map[string]any, error) {
	out := map[string]any{}
	if len(c) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode customizations: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode customizations: %w", err)
	}
	return out, nil
}

// translate turns a backend failure into the message shown to the customer.
func translate(err error) error {
	if errors.Is(err, vendorrapi.ErrUnreachable) {
		return pkgerrors.Wrap(pkgerrors.CodeUnreachable, err, msgUnreachable)
	}
	var apiErr *vendorrapi.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgGeneric)
	}
	switch apiErr.Status {
	case http.StatusUnauthorized:
		return loginError(pkgerrors.CodeUnauthorized, msgSessionExpired, err)
	case http.StatusForbidden:
		return loginError(pkgerrors.CodeForbidden, msgNotAuthorized, err)
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, msgUnavailable)
	case http.StatusBadRequest:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, orDefault(apiErr.Detail, msgInvalidOrder))
	case http.StatusInternalServerError:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgServerError)
	}
	code := pkgerrors.CodeValidation
	switch {
	case apiErr.Status == http.StatusConflict:
		code = pkgerrors.CodeConflict
	case apiErr.Status >= http.StatusInternalServerError:
		code = pkgerrors.CodeDependency
	}
	return pkgerrors.Wrap(code, err, orDefault(apiErr.Detail, msgGeneric))
}

func loginError(code pkgerrors.Code, message string, cause error) error {
	return pkgerrors.Wrap(code, cause, message).WithDetails(map[string]any{
		"redirect": LoginRoute,
		"from":     "/checkout",
	})
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func (s *Service) withSession(ctx context.Context, sessionID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithSessionID(ctx, sessionID)
}

func (s *Service) withIdempotencyKey(ctx context.Context, key string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, "idempotency_key", key)
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
