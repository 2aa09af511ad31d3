package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Contact is the delivery contact block of an order.
type Contact struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Street    string `json:"street" validate:"required"`
	City      string `json:"city" validate:"required"`
	County    string `json:"county" validate:"required"`
	Zip       string `json:"zip" validate:"required"`
	Country   string `json:"country" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	// Username is attached by the client at submission time.
	Username string `json:"username"`
}

// Item is a priced order line, snapshotted at submission time.
type Item struct {
	ID       string          `json:"id" validate:"required"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity" validate:"gt=0"`
	Price    decimal.Decimal `json:"price"`
}

// Order is a placed order as stored by the backend.
type Order struct {
	ID        int64
	UserID    int64
	Contact   Contact
	Items     []Item
	Total     decimal.Decimal
	Discount  decimal.Decimal
	PromoCode string
	CreatedAt time.Time
}

// Request is the payload a client submits to place an order.
type Request struct {
	Contact   Contact
	Items     []Item
	Total     decimal.Decimal
	PromoCode string
}

// Receipt acknowledges a placed order.
type Receipt struct {
	Message string
	ID      int64
	Total   decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
}
