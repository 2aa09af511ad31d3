package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/failure"
)

// ErrEmptyOrder is returned when an order has no items or a zero total.
var ErrEmptyOrder = errors.New("cart is empty or total is zero")

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.ItemID)
}

// InvalidPriceError indicates a line item has a negative price.
type InvalidPriceError struct {
	ItemID string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("price must not be negative for item %s", e.ItemID)
}

// Notifier is told about every placed order.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order) error
}

// Service encapsulates order placement on the backend.
type Service struct {
	orders   Repository
	promos   promo.Redeemer
	notifier Notifier
	validate *validator.Validate
}

// NewService creates an order Service.
func NewService(orders Repository, promos promo.Redeemer, notifier Notifier) *Service {
	return &Service{
		orders:   orders,
		promos:   promos,
		notifier: notifier,
		validate: failure.NewValidator(),
	}
}

// Place validates the request, recomputes the authoritative total from the
// submitted lines, redeems the promo code if any, persists the order and
// sends the confirmation. A redeemed use is released when the order cannot
// be stored. Notification failures never fail the order.
func (s *Service) Place(ctx context.Context, userID int64, req Request) (*Receipt, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ItemID: it.ID}
		}
		if it.Price.IsNegative() {
			return nil, &InvalidPriceError{ItemID: it.ID}
		}
	}
	if err := failure.Validate(s.validate, req.Contact); err != nil {
		return nil, err
	}

	subtotal := Subtotal(req.Items)
	if !subtotal.IsPositive() {
		return nil, ErrEmptyOrder
	}

	var (
		discount = decimal.Zero
		code     = promo.NormalizeCode(req.PromoCode)
	)
	if code != "" {
		lines := make([]promo.Item, len(req.Items))
		for i, it := range req.Items {
			lines[i] = promo.Item{ID: it.ID, Price: it.Price, Quantity: it.Quantity}
		}
		d, err := s.promos.Redeem(ctx, code, lines)
		if err != nil {
			return nil, errors.Wrap(err, "redeem promo")
		}
		discount = d.Amount
	}

	q := NewQuote(subtotal, discount)
	lg := zctx.From(ctx)
	if !req.Total.IsZero() && !req.Total.Equal(q.GrandTotal) {
		lg.Warn("Client total differs from computed total",
			zap.String("client_total", req.Total.String()),
			zap.String("total", q.GrandTotal.String()),
		)
	}

	o := &Order{
		UserID:    userID,
		Contact:   req.Contact,
		Items:     append([]Item(nil), req.Items...),
		Total:     q.GrandTotal,
		Discount:  q.Discount,
		PromoCode: code,
	}
	o.Contact.Username = strings.TrimSpace(o.Contact.Username)
	if err := s.orders.Create(ctx, o); err != nil {
		if code != "" {
			if relErr := s.promos.Release(ctx, code); relErr != nil {
				lg.Error("Release promo use", zap.String("promo_code", code), zap.Error(relErr))
			}
		}
		return nil, errors.Wrap(err, "create order")
	}

	message := "Order placed successfully and email sent"
	if err := s.notifier.OrderPlaced(ctx, o); err != nil {
		lg.Error("Send order confirmation", zap.Int64("order_id", o.ID), zap.Error(err))
		message = "Order placed successfully"
	}

	return &Receipt{Message: message, ID: o.ID, Total: o.Total}, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}
