package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/vendorr/vendorr-edge/internal/cart"
	"github.com/vendorr/vendorr-edge/pkg/currency"
)

// Summary is the priced view of a cart shown before and after checkout.
type Summary struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	Display   DisplayAmounts  `json:"display"`
}

// DisplayAmounts are the summary amounts formatted in Naira.
type DisplayAmounts struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

// Summarize prices the items with the given tax rate.
func Summarize(items []cart.LineItem, taxRate decimal.Decimal) Summary {
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
	}
	tax := subtotal.Mul(taxRate).Round(2)
	total := subtotal.Add(tax)
	return Summary{
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     total,
		ItemCount: count,
		Display: DisplayAmounts{
			Subtotal: currency.FormatNaira(subtotal),
			Tax:      currency.FormatNaira(tax),
			Total:    currency.FormatNaira(total),
		},
	}
}
