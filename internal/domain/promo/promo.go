// Package promo implements promo code rules and the discount math shared by
// the storefront checkout and the order service.
package promo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage off the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed takes a fixed amount off, capped at the subtotal.
	KindFixed Kind = "fixed"
	// KindFreeLowest makes the cheapest unit free.
	KindFreeLowest Kind = "free_lowest"
)

// Valid reports whether k is a known discount strategy.
func (k Kind) Valid() bool {
	switch k {
	case KindPercentage, KindFixed, KindFreeLowest:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidCode is returned when a code is unknown or the cart does not
	// satisfy the rule's minimum item count.
	ErrInvalidCode = errors.New("invalid promo code")
	// ErrExpired is returned when a code is outside its validity window.
	ErrExpired = errors.New("promo code expired")
	// ErrUsageLimitReached is returned when a code has no uses left.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
)

// Rule is a promo code definition.
type Rule struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	MinItems    int
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	MaxUses     int
	Uses        int
}

// CheckAvailable verifies the validity window and remaining uses at now.
func (r *Rule) CheckAvailable(now time.Time) error {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrExpired
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return ErrExpired
	}
	if r.MaxUses > 0 && r.Uses >= r.MaxUses {
		return ErrUsageLimitReached
	}
	return nil
}

// Discount is the computed reduction for a cart.
type Discount struct {
	Amount      decimal.Decimal
	Description string
}

// Item is a priced cart line used for discount calculation.
type Item struct {
	ID       string
	Price    decimal.Decimal
	Quantity int
}

// Repository provides lookup and usage accounting of promo rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// IncrementUses consumes one use of code, failing with
	// ErrUsageLimitReached when none is left.
	IncrementUses(ctx context.Context, code string) error
	// ReleaseUse gives back a use taken by IncrementUses.
	ReleaseUse(ctx context.Context, code string) error
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
