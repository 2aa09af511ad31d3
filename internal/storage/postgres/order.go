package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/user"
	"github.com/xenking/munchify/internal/wire"
)

const (
	createOrderSQL = `INSERT INTO orders (user_id, contact_info, items, total, discount, promo_code)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`

	listOrdersByUserSQL = `SELECT id, user_id, contact_info, items, total, discount, promo_code, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The contact block and the items are stored in
// JSONB columns using the API encoding. Returns user.ErrNotFound when the
// owner no longer exists.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	contact := wire.Marshal((*wire.Contact)(&o.Contact))
	items := wire.Marshal(wire.Items(o.Items))

	err := r.pool.QueryRow(ctx, createOrderSQL,
		o.UserID, contact, items, o.Total, o.Discount, o.PromoCode,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return user.ErrNotFound
		}
		return fmt.Errorf("creating order for user %d: %w", o.UserID, err)
	}
	return nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		contact []byte
		raw     []byte
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &contact, &raw, &o.Total, &o.Discount, &o.PromoCode, &o.CreatedAt,
	); err != nil {
		return o, err
	}
	if err := wire.Unmarshal(contact, (*wire.Contact)(&o.Contact)); err != nil {
		return o, fmt.Errorf("order %d contact: %w", o.ID, err)
	}
	var items wire.Items
	if err := wire.Unmarshal(raw, &items); err != nil {
		return o, fmt.Errorf("order %d items: %w", o.ID, err)
	}
	o.Items = items
	return o, nil
}
