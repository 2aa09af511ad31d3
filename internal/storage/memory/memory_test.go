package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/user"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	ada := &user.User{Username: "ada", Email: "ada@example.com", PasswordHash: "h"}
	require.NoError(t, s.Create(ctx, ada))
	assert.Equal(t, int64(1), ada.ID)
	assert.False(t, ada.CreatedAt.IsZero())

	t.Run("Duplicate", func(t *testing.T) {
		err := s.Create(ctx, &user.User{Username: "ada", Email: "x@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, user.ErrDuplicate)
		err = s.Create(ctx, &user.User{Username: "x", Email: "ADA@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, user.ErrDuplicate)
	})

	t.Run("Find", func(t *testing.T) {
		got, err := s.FindByEmail(ctx, "Ada@Example.com")
		require.NoError(t, err)
		assert.Equal(t, ada.ID, got.ID)

		_, err = s.FindByID(ctx, 42)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		grace := &user.User{Username: "grace", Email: "grace@example.com", PasswordHash: "h"}
		require.NoError(t, s.Create(ctx, grace))

		grace.Username = "ada"
		assert.ErrorIs(t, s.Update(ctx, grace), user.ErrDuplicate)

		grace.Username = "hopper"
		require.NoError(t, s.Update(ctx, grace))
		got, err := s.FindByID(ctx, grace.ID)
		require.NoError(t, err)
		assert.Equal(t, "hopper", got.Username)

		// Renaming to the same name is not a conflict with itself.
		require.NoError(t, s.Update(ctx, got))

		assert.ErrorIs(t, s.Update(ctx, &user.User{ID: 99, Username: "z", Email: "z@example.com"}), user.ErrNotFound)
	})
}

func TestOrders(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	orders := s.Orders()

	u := &user.User{Username: "ada", Email: "ada@example.com", PasswordHash: "h"}
	require.NoError(t, s.Create(ctx, u))
	other := &user.User{Username: "bob", Email: "bob@example.com", PasswordHash: "h"}
	require.NoError(t, s.Create(ctx, other))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, uid := range []int64{u.ID, u.ID, other.ID} {
		o := &order.Order{
			UserID: uid,
			Items:  []order.Item{{ID: "1", Quantity: 1, Price: decimal.NewFromInt(5)}},
			Total:  decimal.NewFromInt(5),
		}
		require.NoError(t, orders.Create(ctx, o))
		assert.NotZero(t, o.ID)
	}

	list, err := orders.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)

	require.NoError(t, s.Delete(ctx, u.ID))
	list, err = orders.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = orders.ListByUser(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, s.Delete(ctx, u.ID), user.ErrNotFound)

	// Orders of a deleted user are rejected.
	err = orders.Create(ctx, &order.Order{UserID: u.ID, Total: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestPromos(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.PutPromos(ctx, promo.Rule{Code: "happyhours", Kind: promo.KindPercentage, Value: decimal.NewFromInt(18)}))

	r, err := s.FindByCode(ctx, " HappyHours ")
	require.NoError(t, err)
	assert.Equal(t, "HAPPYHOURS", r.Code)

	require.NoError(t, s.IncrementUses(ctx, "happyhours"))
	require.NoError(t, s.IncrementUses(ctx, "HAPPYHOURS"))
	r, err = s.FindByCode(ctx, "HAPPYHOURS")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Uses)

	_, err = s.FindByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, promo.ErrInvalidCode)
	assert.ErrorIs(t, s.IncrementUses(ctx, "NOPE"), promo.ErrInvalidCode)
}

func TestPromos_UsageLimit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutPromos(ctx, promo.Rule{Code: "ONCE", Kind: promo.KindFixed, Value: decimal.NewFromInt(1), MaxUses: 1}))

	require.NoError(t, s.IncrementUses(ctx, "once"))
	assert.ErrorIs(t, s.IncrementUses(ctx, "once"), promo.ErrUsageLimitReached)

	require.NoError(t, s.ReleaseUse(ctx, "ONCE"))
	r, err := s.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Uses)
	require.NoError(t, s.IncrementUses(ctx, "ONCE"))

	// Releasing never goes below zero.
	require.NoError(t, s.ReleaseUse(ctx, "ONCE"))
	require.NoError(t, s.ReleaseUse(ctx, "ONCE"))
	r, err = s.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Uses)

	assert.ErrorIs(t, s.ReleaseUse(ctx, "NOPE"), promo.ErrInvalidCode)
}
