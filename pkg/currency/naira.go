// Package currency formats monetary amounts for display.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NairaSymbol prefixes every formatted amount.
const NairaSymbol = "₦"

// FormatNaira renders amount with two decimals and thousands separators, e.g. ₦1,234.50.
func FormatNaira(amount decimal.Decimal) string {
	fixed := amount.Round(2).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + NairaSymbol + group(whole) + "." + frac
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
