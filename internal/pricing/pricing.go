// Package pricing is the single source of truth for cart and order totals.
// Both the cart service and the order service compute through CalculateTotals
// so the amount the user saw is the amount that gets billed.
package pricing

import "github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"

// TaxRateBasisPoints is the sales tax rate applied to every subtotal (8%).
const TaxRateBasisPoints = 800

type Totals struct {
	Subtotal  int64
	Tax       int64
	Total     int64
	ItemCount int
}

// CalculateTotals computes subtotal, tax and total in cents. Tax rounds
// half-up on cents: round(subtotal * rate). Guarantees Subtotal+Tax == Total.
func CalculateTotals(items []domain.CartItem) Totals {
	var t Totals
	for _, item := range items {
		t.Subtotal += item.Price * int64(item.Quantity)
		t.ItemCount += item.Quantity
	}
	t.Tax = (t.Subtotal*TaxRateBasisPoints + 5000) / 10000
	t.Total = t.Subtotal + t.Tax
	return t
}

// Apply recomputes a cart's denormalized totals in place.
func Apply(cart *domain.Cart) {
	t := CalculateTotals(cart.Items)
	cart.Subtotal = t.Subtotal
	cart.Tax = t.Tax
	cart.Total = t.Total
	cart.ItemCount = t.ItemCount
}
