package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/munchify/internal/domain/user"
)

const (
	createUserSQL = `INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3) RETURNING id, created_at`

	getUserByIDSQL = `SELECT id, username, email, password_hash, created_at
		FROM users WHERE id = $1`

	getUserByEmailSQL = `SELECT id, username, email, password_hash, created_at
		FROM users WHERE LOWER(email) = LOWER($1)`

	updateUserSQL = `UPDATE users SET username = $2, password_hash = $3 WHERE id = $1`

	deleteUserSQL = `DELETE FROM users WHERE id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. Orders are
// removed with their user by the ON DELETE CASCADE constraint.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u and fills in its ID and creation time.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	err := r.pool.QueryRow(ctx, createUserSQL, u.Username, u.Email, u.PasswordHash).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrDuplicate
		}
		return fmt.Errorf("creating user %q: %w", u.Username, err)
	}
	return nil
}

// FindByID returns the user with id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*user.User, error) {
	return r.findOne(ctx, getUserByIDSQL, id)
}

// FindByEmail returns the user with email, compared case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, getUserByEmailSQL, email)
}

func (r *UserRepository) findOne(ctx context.Context, sql string, arg any) (*user.User, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding user %v: %w", arg, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding user %v: %w", arg, err)
	}
	return &u, nil
}

// Update stores the username and password hash of u.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	tag, err := r.pool.Exec(ctx, updateUserSQL, u.ID, u.Username, u.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrDuplicate
		}
		return fmt.Errorf("updating user %d: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Delete removes the user with id and, through the foreign key, their orders.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteUserSQL, id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}
