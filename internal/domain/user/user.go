// Package user implements backend account management: registration,
// password authentication, profile updates and deletion.
package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when the username or email is already taken.
	ErrDuplicate = errors.New("username or email already exists")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailImmutable is returned when an update tries to change the email.
	ErrEmailImmutable = errors.New("email cannot be changed")
	// ErrPasswordTooShort is returned for passwords under MinPasswordLength.
	ErrPasswordTooShort = errors.New("password must be at least 6 characters long")
	// ErrInvalidEmail is returned for malformed email addresses.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidUsername is returned for an empty username.
	ErrInvalidUsername = errors.New("username is required")
)

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Repository persists users. Create and Update return ErrDuplicate on a
// username or email conflict; lookups return ErrNotFound.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	// Delete removes the user and all of their orders.
	Delete(ctx context.Context, id int64) error
}

// Changes is a partial profile update. Empty fields are left unchanged.
type Changes struct {
	Username string
	Password string
	// EmailSet reports that the request carried an email field.
	EmailSet bool
}

// Service implements the account operations.
type Service struct {
	repo     Repository
	validate *validator.Validate
	cost     int
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a Service over repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cost:     bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

// Register creates a user.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	email = NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	u := &User{Username: username, Email: email, PasswordHash: hash}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// Authenticate checks the password of the user with email.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find user")
	}
	return u, nil
}

// Update applies changes to the user with id.
func (s *Service) Update(ctx context.Context, id int64, c Changes) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.EmailSet {
		return nil, ErrEmailImmutable
	}

	if name := strings.TrimSpace(c.Username); name != "" {
		u.Username = name
	}
	if strings.TrimSpace(c.Password) != "" {
		if u.PasswordHash, err = s.hash(c.Password); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}

// Delete removes the user with id together with their orders.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete user")
	}
	return nil
}
