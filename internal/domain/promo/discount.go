package promo

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply computes the discount rule grants for items. It returns
// ErrInvalidCode when the cart has fewer units than the rule requires.
// The amount is rounded to cents and never exceeds the subtotal.
func Apply(rule *Rule, items []Item) (Discount, error) {
	units := 0
	subtotal := decimal.Zero
	for _, it := range items {
		units += it.Quantity
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if rule.MinItems > 0 && units < rule.MinItems {
		return Discount{}, ErrInvalidCode
	}

	var amount decimal.Decimal
	switch rule.Kind {
	case KindPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case KindFixed:
		amount = rule.Value
	case KindFreeLowest:
		amount = lowestUnitPrice(items)
	default:
		return Discount{}, errors.Errorf("unsupported discount kind: %q", rule.Kind)
	}

	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Amount:      amount.Round(2),
		Description: rule.Description,
	}, nil
}

func lowestUnitPrice(items []Item) decimal.Decimal {
	var (
		lowest decimal.Decimal
		found  bool
	)
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if !found || it.Price.LessThan(lowest) {
			lowest = it.Price
			found = true
		}
	}
	return lowest
}
