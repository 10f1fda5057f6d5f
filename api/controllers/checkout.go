package controllers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/vendorr/vendorr-edge/api/middleware"
	"github.com/vendorr/vendorr-edge/api/responses"
	"github.com/vendorr/vendorr-edge/internal/checkout"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

const multipartOverhead = 1 << 20

var receiptFields = []string{"proof_of_payment", "file", "receipt"}

// CheckoutService places the session cart as an order.
type CheckoutService interface {
	Summary(ctx context.Context, sessionID string) (checkout.Summary, error)
	Submit(ctx context.Context, input checkout.Input) (*checkout.Result, error)
}

// CheckoutSummary prices the session cart.
func CheckoutSummary(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		summary, err := svc.Summary(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Checkout accepts the multipart checkout form: order_type, phone,
// special_instructions and the proof of payment file.
func Checkout(svc CheckoutService, maxReceiptBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		if maxReceiptBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes+multipartOverhead)
		}
		if err := r.ParseMultipartForm(multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "proof of payment is too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout form"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		input := checkout.Input{
			SessionID:           middleware.SessionIDFromContext(r.Context()),
			Token:               middleware.TokenFromContext(r.Context()),
			OrderType:           firstValue(r, "order_type", "orderType"),
			Phone:               firstValue(r, "phone", "customer_phone"),
			SpecialInstructions: firstValue(r, "special_instructions", "specialInstructions"),
		}
		if file, header := receiptFile(r); file != nil {
			defer file.Close()
			input.Receipt = &checkout.Receipt{Filename: header.Filename, Size: header.Size, Body: file}
		}

		result, err := svc.Submit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func firstValue(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			return v
		}
	}
	return ""
}

func receiptFile(r *http.Request) (multipart.File, *multipart.FileHeader) {
	for _, field := range receiptFields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header
		}
	}
	return nil, nil
}
