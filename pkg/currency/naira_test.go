package currency

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatNaira(t *testing.T) {
	cases := map[string]string{
		"0":          "₦0.00",
		"5":          "₦5.00",
		"999.999":    "₦1,000.00",
		"1234.5":     "₦1,234.50",
		"1234567.89": "₦1,234,567.89",
		"-2500":      "-₦2,500.00",
		"100000":     "₦100,000.00",
	}
	for in, want := range cases {
		got := FormatNaira(decimal.RequireFromString(in))
		if got != want {
			t.Errorf("FormatNaira(%s) = %q, want %q", in, got, want)
		}
	}
}
