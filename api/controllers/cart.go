package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vendorr/vendorr-edge/api/middleware"
	"github.com/vendorr/vendorr-edge/api/responses"
	"github.com/vendorr/vendorr-edge/api/validators"
	"github.com/vendorr/vendorr-edge/internal/cart"
	"github.com/vendorr/vendorr-edge/pkg/currency"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// CartSessions resolves the cart engine of a client session.
type CartSessions interface {
	Get(ctx context.Context, sessionID string) (*cart.Engine, error)
}

type cartResponse struct {
	Items        []cart.LineItem `json:"items"`
	Total        decimal.Decimal `json:"total"`
	TotalDisplay string          `json:"total_display"`
	ItemCount    int             `json:"item_count"`
}

type addItemRequest struct {
	Product        cart.Product        `json:"product"`
	Customizations cart.Customizations `json:"customizations"`
	Quantity       int                 `json:"quantity"`
}

type updateItemRequest struct {
	ProductID      string              `json:"product_id" validate:"required"`
	Customizations cart.Customizations `json:"customizations"`
	Quantity       int                 `json:"quantity"`
}

type identityRequest struct {
	ProductID      string              `json:"product_id" validate:"required"`
	Customizations cart.Customizations `json:"customizations"`
}

func newCartResponse(engine *cart.Engine) cartResponse {
	snap := engine.Snapshot()
	return cartResponse{
		Items:        snap.Items,
		Total:        snap.Total,
		TotalDisplay: currency.FormatNaira(snap.Total),
		ItemCount:    snap.ItemCount,
	}
}

func sessionCart(r *http.Request, carts CartSessions) (*cart.Engine, error) {
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions unavailable")
	}
	engine, err := carts.Get(r.Context(), middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "session required")
	}
	return engine, nil
}

// CartFetch returns the session cart with its derived totals.
func CartFetch(carts CartSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := sessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(engine))
	}
}

// CartAddItem merges a product into the cart. Products the engine refuses
// leave the cart untouched and report added=false.
func CartAddItem(carts CartSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := sessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addItemRequest
		if err := validators.DecodeLooseJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		line, added := engine.AddItem(r.Context(), payload.Product, payload.Customizations, payload.Quantity)
		resp := map[string]any{"cart": newCartResponse(engine), "added": added}
		if added {
			resp["line"] = line
		}
		responses.WriteSuccess(w, resp)
	}
}

// CartUpdateItem sets an absolute quantity; zero or less removes the line.
func CartUpdateItem(carts CartSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := sessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		engine.UpdateQuantity(r.Context(), payload.ProductID, payload.Customizations, payload.Quantity)
		responses.WriteSuccess(w, newCartResponse(engine))
	}
}

func CartRemoveItem(carts CartSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := sessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload identityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		engine.RemoveItem(r.Context(), payload.ProductID, payload.Customizations)
		responses.WriteSuccess(w, newCartResponse(engine))
	}
}

func CartClear(carts CartSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := sessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		engine.Clear(r.Context())
		responses.WriteSuccess(w, newCartResponse(engine))
	}
}

// CartLookup answers whether a product with the given customizations is in
// the cart and with what quantity.
func CartLookup(carts CartSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := sessionCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload identityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"in_cart":  engine.IsInCart(payload.ProductID, payload.Customizations),
			"quantity": engine.Quantity(payload.ProductID, payload.Customizations),
		})
	}
}
