package checkout

import (
	"fmt"
	"strings"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
)

// OrderType is how the customer receives the order.
type OrderType string

const (
	OrderTypePickup   OrderType = "pickup"
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeDelivery OrderType = "delivery"
)

// ParseOrderType accepts the canonical values plus the hyphenated dine-in the UI
// used to send. Empty means pickup.
func ParseOrderType(raw string) (OrderType, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return OrderTypePickup, true
	case "dine-in":
		return OrderTypeDineIn, true
	}
	switch OrderType(value) {
	case OrderTypePickup, OrderTypeDineIn, OrderTypeDelivery:
		return OrderType(value), true
	}
	return "", false
}

// PhoneDigits strips everything but digits from a phone number.
func PhoneDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormInput is the customer-entered part of a checkout.
type FormInput struct {
	Phone           string
	OrderType       string
	HasReceipt      bool
	ReceiptBytes    int64
	MaxReceiptBytes int64
}

// FieldViolation exposes one invalid field to callers.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateForm checks the checkout form and reports every invalid field at once.
func ValidateForm(input FormInput) error {
	var violations []FieldViolation

	if strings.TrimSpace(input.Phone) == "" {
		violations = append(violations, FieldViolation{Field: "phone", Message: "Phone number is required"})
	} else if len(PhoneDigits(input.Phone)) != 11 {
		violations = append(violations, FieldViolation{Field: "phone", Message: "Please enter a valid 11-digit phone number"})
	}

	if _, ok := ParseOrderType(input.OrderType); !ok {
		violations = append(violations, FieldViolation{Field: "order_type", Message: fmt.Sprintf("unsupported order type %q", input.OrderType)})
	}

	switch {
	case !input.HasReceipt:
		violations = append(violations, FieldViolation{Field: "proof_of_payment", Message: "Proof of payment is required"})
	case input.MaxReceiptBytes > 0 && input.ReceiptBytes > input.MaxReceiptBytes:
		violations = append(violations, FieldViolation{
			Field:   "proof_of_payment",
			Message: fmt.Sprintf("Proof of payment must be at most %d MB", input.MaxReceiptBytes/(1<<20)),
		})
	}

	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("checkout form has %d invalid field(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
