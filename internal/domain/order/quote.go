package order

import "github.com/shopspring/decimal"

// DeliveryFee is charged on every non-empty order.
var DeliveryFee = decimal.RequireFromString("2.00")

// Quote is the price breakdown of a cart.
type Quote struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	GrandTotal  decimal.Decimal
}

// NewQuote prices a cart with the given subtotal and discount. The discount is
// clamped to [0, subtotal]; the delivery fee applies only when subtotal > 0.
func NewQuote(subtotal, discount decimal.Decimal) Quote {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	discount = decimal.Min(decimal.Max(discount, decimal.Zero), subtotal)

	fee := decimal.Zero
	if subtotal.IsPositive() {
		fee = DeliveryFee
	}

	return Quote{
		Subtotal:    subtotal.Round(2),
		DeliveryFee: fee,
		Discount:    discount.Round(2),
		GrandTotal:  subtotal.Sub(discount).Add(fee).Round(2),
	}
}

// Subtotal returns Σ price × quantity over items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}
