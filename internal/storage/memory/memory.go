// Package memory implements the backend repositories on an in-process
// go-memdb database. It backs local development and the handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-memdb"

	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/user"
)

const (
	tableUsers  = "users"
	tableOrders = "orders"
	tablePromos = "promos"
)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableUsers: {
			Name: tableUsers,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "ID"},
				},
				"email": {
					Name:    "email",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
				},
				"username": {
					Name:    "username",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Username"},
				},
			},
		},
		tableOrders: {
			Name: tableOrders,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "ID"},
				},
				"user": {
					Name:    "user",
					Indexer: &memdb.IntFieldIndex{Field: "UserID"},
				},
			},
		},
		tablePromos: {
			Name: tablePromos,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Code"},
				},
			},
		},
	},
}

var (
	_ user.Repository  = (*Store)(nil)
	_ promo.Repository = (*Store)(nil)
	_ order.Repository = orderRepo{}
)

// Store keeps users, orders and promo rules in memory. Stored records are
// never mutated in place; every write inserts a fresh copy.
type Store struct {
	db      *memdb.MemDB
	userSeq atomic.Int64
	ordSeq  atomic.Int64
	now     func() time.Time
}

// New creates an empty Store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, errors.Wrap(err, "create memdb")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Create inserts u and assigns its ID.
func (s *Store) Create(_ context.Context, u *user.User) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := checkUnique(txn, 0, u); err != nil {
		return err
	}
	rec := *u
	rec.ID = s.userSeq.Add(1)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if err := txn.Insert(tableUsers, &rec); err != nil {
		return errors.Wrap(err, "insert user")
	}
	txn.Commit()

	*u = rec
	return nil
}

func checkUnique(txn *memdb.Txn, self int64, u *user.User) error {
	for _, idx := range []struct {
		name, value string
	}{
		{"email", u.Email},
		{"username", u.Username},
	} {
		raw, err := txn.First(tableUsers, idx.name, idx.value)
		if err != nil {
			return errors.Wrapf(err, "lookup %s", idx.name)
		}
		if raw != nil && raw.(*user.User).ID != self {
			return user.ErrDuplicate
		}
	}
	return nil
}

func (s *Store) findUser(index string, arg any) (*user.User, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableUsers, index, arg)
	if err != nil {
		return nil, errors.Wrap(err, "lookup user")
	}
	if raw == nil {
		return nil, user.ErrNotFound
	}
	u := *raw.(*user.User)
	return &u, nil
}

// FindByID returns the user with id.
func (s *Store) FindByID(_ context.Context, id int64) (*user.User, error) {
	return s.findUser("id", id)
}

// FindByEmail returns the user with email, compared case-insensitively.
func (s *Store) FindByEmail(_ context.Context, email string) (*user.User, error) {
	return s.findUser("email", strings.ToLower(email))
}

// Update replaces the stored user with u.
func (s *Store) Update(_ context.Context, u *user.User) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableUsers, "id", u.ID)
	if err != nil {
		return errors.Wrap(err, "lookup user")
	}
	if raw == nil {
		return user.ErrNotFound
	}
	if err := checkUnique(txn, u.ID, u); err != nil {
		return err
	}
	rec := *u
	if err := txn.Insert(tableUsers, &rec); err != nil {
		return errors.Wrap(err, "update user")
	}
	txn.Commit()
	return nil
}

// Delete removes the user with id and all of their orders.
func (s *Store) Delete(_ context.Context, id int64) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableUsers, "id", id)
	if err != nil {
		return errors.Wrap(err, "lookup user")
	}
	if raw == nil {
		return user.ErrNotFound
	}
	if _, err := txn.DeleteAll(tableOrders, "user", id); err != nil {
		return errors.Wrap(err, "delete orders")
	}
	if err := txn.Delete(tableUsers, raw); err != nil {
		return errors.Wrap(err, "delete user")
	}
	txn.Commit()
	return nil
}

// createOrder inserts o and assigns its ID and creation time. The owner must
// exist; a deleted user yields user.ErrNotFound.
func (s *Store) createOrder(o *order.Order) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	owner, err := txn.First(tableUsers, "id", o.UserID)
	if err != nil {
		return errors.Wrap(err, "lookup user")
	}
	if owner == nil {
		return user.ErrNotFound
	}

	rec := *o
	rec.ID = s.ordSeq.Add(1)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	rec.Items = append([]order.Item(nil), o.Items...)
	if err := txn.Insert(tableOrders, &rec); err != nil {
		return errors.Wrap(err, "insert order")
	}
	txn.Commit()

	o.ID, o.CreatedAt = rec.ID, rec.CreatedAt
	return nil
}

// ListByUser returns the orders of userID, newest first.
func (s *Store) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableOrders, "user", userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	var out []order.Order
	for raw := it.Next(); raw != nil; raw = it.Next() {
		o := *raw.(*order.Order)
		o.Items = append([]order.Item(nil), o.Items...)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// FindByCode returns the promo rule for code.
func (s *Store) FindByCode(_ context.Context, code string) (*promo.Rule, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tablePromos, "id", promo.NormalizeCode(code))
	if err != nil {
		return nil, errors.Wrap(err, "lookup promo")
	}
	if raw == nil {
		return nil, promo.ErrInvalidCode
	}
	r := *raw.(*promo.Rule)
	return &r, nil
}

// IncrementUses records one redemption of code.
func (s *Store) IncrementUses(_ context.Context, code string) error {
	return s.updateUses(code, func(r *promo.Rule) error {
		if r.MaxUses > 0 && r.Uses >= r.MaxUses {
			return promo.ErrUsageLimitReached
		}
		r.Uses++
		return nil
	})
}

// ReleaseUse takes back one redemption of code.
func (s *Store) ReleaseUse(_ context.Context, code string) error {
	return s.updateUses(code, func(r *promo.Rule) error {
		if r.Uses > 0 {
			r.Uses--
		}
		return nil
	})
}

func (s *Store) updateUses(code string, fn func(r *promo.Rule) error) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tablePromos, "id", promo.NormalizeCode(code))
	if err != nil {
		return errors.Wrap(err, "lookup promo")
	}
	if raw == nil {
		return promo.ErrInvalidCode
	}
	r := *raw.(*promo.Rule)
	if err := fn(&r); err != nil {
		return err
	}
	if err := txn.Insert(tablePromos, &r); err != nil {
		return errors.Wrap(err, "update promo")
	}
	txn.Commit()
	return nil
}

// PutPromos inserts or replaces rules.
func (s *Store) PutPromos(_ context.Context, rules ...promo.Rule) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	for _, r := range rules {
		r.Code = promo.NormalizeCode(r.Code)
		if err := txn.Insert(tablePromos, &r); err != nil {
			return errors.Wrapf(err, "insert promo %s", r.Code)
		}
	}
	txn.Commit()
	return nil
}

// Orders adapts the Store to order.Repository, whose Create collides with
// the user repository method of the same name.
func (s *Store) Orders() order.Repository { return orderRepo{s} }

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, o *order.Order) error { return r.s.createOrder(o) }

func (r orderRepo) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return r.s.ListByUser(ctx, userID)
}
