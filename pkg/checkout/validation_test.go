package checkout

import (
	"testing"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
)

func TestValidateFormAcceptsValidInput(t *testing.T) {
	err := ValidateForm(FormInput{
		Phone:           "0803-123-4567",
		OrderType:       "dine_in",
		HasReceipt:      true,
		ReceiptBytes:    1024,
		MaxReceiptBytes: 10 << 20,
	})
	if err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}
}

func TestValidateFormCollectsViolations(t *testing.T) {
	err := ValidateForm(FormInput{Phone: "12345", OrderType: "drive_thru"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	violations, ok := details["violations"].([]FieldViolation)
	if !ok || len(violations) != 3 {
		t.Fatalf("expected three violations, got %#v", details["violations"])
	}
	fields := map[string]bool{}
	for _, v := range violations {
		fields[v.Field] = true
	}
	for _, f := range []string{"phone", "order_type", "proof_of_payment"} {
		if !fields[f] {
			t.Fatalf("missing violation for %s", f)
		}
	}
}

func TestValidateFormRequiresPhone(t *testing.T) {
	err := ValidateForm(FormInput{Phone: "  ", HasReceipt: true})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected error")
	}
	violations := typed.Details().(map[string]any)["violations"].([]FieldViolation)
	if len(violations) != 1 || violations[0].Message != "Phone number is required" {
		t.Fatalf("unexpected violations %+v", violations)
	}
}

func TestValidateFormRejectsOversizeReceipt(t *testing.T) {
	err := ValidateForm(FormInput{
		Phone:           "08031234567",
		HasReceipt:      true,
		ReceiptBytes:    11 << 20,
		MaxReceiptBytes: 10 << 20,
	})
	if err == nil {
		t.Fatalf("expected oversize receipt to fail")
	}
}

func TestParseOrderType(t *testing.T) {
	cases := []struct {
		in   string
		want OrderType
		ok   bool
	}{
		{"", OrderTypePickup, true},
		{"Pickup", OrderTypePickup, true},
		{"dine-in", OrderTypeDineIn, true},
		{"delivery", OrderTypeDelivery, true},
		{"takeaway", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseOrderType(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseOrderType(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
