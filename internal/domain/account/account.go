// Package account implements sign-up, login and account management on top of
// the session manager.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/session"
	"github.com/xenking/munchify/internal/failure"
	"github.com/xenking/munchify/internal/retry"
	"github.com/xenking/munchify/internal/wire"
)

// Messages shown after account operations.
const (
	SignUpMessage  = "Registration successful! Please log in."
	UpdatedMessage = "Account updated successfully."
	DeletedMessage = "Account deleted successfully."
)

// Backend is the subset of the REST API used for accounts.
type Backend interface {
	Register(ctx context.Context, creds wire.Credentials) (string, error)
	Login(ctx context.Context, email, password string) (wire.AuthToken, error)
	Me(ctx context.Context, token string) (wire.Me, error)
	UpdateAccount(ctx context.Context, token string, upd wire.AccountUpdate) (string, error)
	DeleteAccount(ctx context.Context, token string) (string, error)
}

// Session is the subset of the session manager used for accounts.
type Session interface {
	State() session.State
	Login(token, username string) error
	Logout() error
	HandleUnauthorized() error
	SetUsername(username string) error
}

// Service implements account operations.
type Service struct {
	backend    Backend
	session    Session
	validate   *validator.Validate
	retryDelay time.Duration
}

// NewService creates a Service. A non-positive retryDelay selects the default.
func NewService(b Backend, s Session, retryDelay time.Duration) *Service {
	if retryDelay <= 0 {
		retryDelay = retry.DefaultDelay
	}
	return &Service{
		backend:    b,
		session:    s,
		validate:   failure.NewValidator(),
		retryDelay: retryDelay,
	}
}

type signUpForm struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// SignUp registers a new account. The user stays logged out and is asked to
// log in.
func (s *Service) SignUp(ctx context.Context, username, email, password string) (string, error) {
	form := signUpForm{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := failure.Validate(s.validate, form); err != nil {
		return "", err
	}

	_, err := retry.Transient(ctx, s.retryDelay, func(ctx context.Context) (string, error) {
		return s.backend.Register(ctx, wire.Credentials(form))
	})
	if err != nil {
		return "", errors.Wrap(err, "register")
	}
	return SignUpMessage, nil
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LogIn authenticates and starts a session. It returns the username.
func (s *Service) LogIn(ctx context.Context, email, password string) (string, error) {
	form := loginForm{Email: strings.TrimSpace(email), Password: password}
	if err := failure.Validate(s.validate, form); err != nil {
		return "", err
	}

	tok, err := retry.Transient(ctx, s.retryDelay, func(ctx context.Context) (wire.AuthToken, error) {
		return s.backend.Login(ctx, form.Email, form.Password)
	})
	if err != nil {
		return "", errors.Wrap(err, "login")
	}

	username := tok.Username
	if username == "" {
		me, err := s.backend.Me(ctx, tok.AccessToken)
		if err != nil {
			return "", errors.Wrap(err, "whoami")
		}
		username = me.Username
	}
	if err := s.session.Login(tok.AccessToken, username); err != nil {
		return "", errors.Wrap(err, "start session")
	}
	zctx.From(ctx).Info("Logged in", zap.String("username", username))
	return username, nil
}

// LogOut ends the session.
func (s *Service) LogOut() error {
	return s.session.Logout()
}

// Update is an account edit request. Empty fields are left unchanged.
type Update struct {
	Username        string `json:"username" validate:"omitempty,min=3"`
	Password        string `json:"password" validate:"omitempty,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

// Update changes the username and/or password.
func (s *Service) Update(ctx context.Context, u Update) (string, error) {
	u.Username = strings.TrimSpace(u.Username)
	st := s.session.State()
	if !st.LoggedIn {
		return "", failure.ErrNotLoggedIn
	}
	if err := failure.Validate(s.validate, u); err != nil {
		return "", err
	}
	if u.Username == "" && u.Password == "" {
		return "", &failure.ValidationError{Fields: []failure.FieldError{{Field: "username", Rule: "required"}}}
	}

	_, err := s.backend.UpdateAccount(ctx, st.Token, wire.AccountUpdate{
		Username: u.Username,
		Password: u.Password,
	})
	if err != nil {
		return "", s.authFailure(ctx, errors.Wrap(err, "update account"))
	}

	if u.Username != "" && u.Username != st.Username {
		if err := s.session.SetUsername(u.Username); err != nil {
			return "", errors.Wrap(err, "persist username")
		}
	}
	return UpdatedMessage, nil
}

// Delete removes the account and ends the session.
func (s *Service) Delete(ctx context.Context) (string, error) {
	st := s.session.State()
	if !st.LoggedIn {
		return "", failure.ErrNotLoggedIn
	}
	if _, err := s.backend.DeleteAccount(ctx, st.Token); err != nil {
		return "", s.authFailure(ctx, errors.Wrap(err, "delete account"))
	}
	if err := s.session.Logout(); err != nil {
		return "", errors.Wrap(err, "logout")
	}
	return DeletedMessage, nil
}

// WhoAmI returns the username of the session, fetching and persisting it when
// only the token is cached.
func (s *Service) WhoAmI(ctx context.Context) (string, error) {
	st := s.session.State()
	if !st.LoggedIn {
		return "", failure.ErrNotLoggedIn
	}
	if st.Username != "" {
		return st.Username, nil
	}

	me, err := s.backend.Me(ctx, st.Token)
	if err != nil {
		return "", s.authFailure(ctx, errors.Wrap(err, "whoami"))
	}
	if err := s.session.SetUsername(me.Username); err != nil {
		return "", errors.Wrap(err, "persist username")
	}
	return me.Username, nil
}

func (s *Service) authFailure(ctx context.Context, err error) error {
	if errors.Is(err, failure.ErrUnauthorized) {
		if lerr := s.session.HandleUnauthorized(); lerr != nil {
			zctx.From(ctx).Warn("Forced logout", zap.Error(lerr))
		}
	}
	return err
}
