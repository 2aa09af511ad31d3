package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/user"
	"github.com/xenking/munchify/internal/server/auth"
	"github.com/xenking/munchify/internal/wire"
)

type userIDKey struct{}

// UserID returns the authenticated user of the request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// requireUser authenticates the bearer token before calling next.
func (h *Handler) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err == nil {
			var id int64
			if id, err = h.tokens.Verify(raw); err == nil {
				ctx := context.WithValue(r.Context(), userIDKey{}, id)
				ctx = zctx.With(ctx, zap.Int64("user_id", id))
				next(w, r.WithContext(ctx))
				return
			}
		}
		switch {
		case errors.Is(err, auth.ErrMissing):
			writeError(w, http.StatusUnauthorized, "Missing Authorization Header")
		case errors.Is(err, auth.ErrExpired):
			writeError(w, http.StatusUnauthorized, "Token has expired")
		default:
			writeError(w, http.StatusUnprocessableEntity, "Invalid token")
		}
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var creds wire.Credentials
	if !decode(w, r, &creds) {
		return
	}
	u, err := h.users.Register(r.Context(), creds.Username, creds.Email, creds.Password)
	switch {
	case errors.Is(err, user.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, "Username is required")
	case errors.Is(err, user.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "Invalid email address")
	case errors.Is(err, user.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters long.")
	case errors.Is(err, user.ErrDuplicate):
		writeError(w, http.StatusConflict, "Username or email already exists")
	case err != nil:
		internalError(r.Context(), w, "register", err)
	default:
		zctx.From(r.Context()).Info("User registered", zap.Int64("user_id", u.ID))
		writeMessage(w, http.StatusCreated, "User registered successfully")
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds wire.Credentials
	if !decode(w, r, &creds) {
		return
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	u, err := h.users.Authenticate(r.Context(), creds.Email, creds.Password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		internalError(r.Context(), w, "login", err)
		return
	}

	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		internalError(r.Context(), w, "issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.AuthToken{AccessToken: token, Username: u.Username})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := UserID(r.Context())
	u, err := h.users.Get(r.Context(), id)
	if errors.Is(err, user.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(r.Context(), w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, &wire.Me{ID: u.ID, Username: u.Username, Email: u.Email})
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var upd wire.AccountUpdate
	if !decode(w, r, &upd) {
		return
	}
	id, _ := UserID(r.Context())
	_, err := h.users.Update(r.Context(), id, user.Changes{
		Username: upd.Username,
		Password: upd.Password,
		EmailSet: upd.EmailSet,
	})
	switch {
	case errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, user.ErrEmailImmutable):
		writeError(w, http.StatusBadRequest, "Email cannot be changed")
	case errors.Is(err, user.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters long.")
	case errors.Is(err, user.ErrDuplicate):
		writeError(w, http.StatusConflict, "Username already taken")
	case err != nil:
		internalError(r.Context(), w, "update user", err)
	default:
		writeMessage(w, http.StatusOK, "User updated successfully")
	}
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := UserID(r.Context())
	err := h.users.Delete(r.Context(), id)
	switch {
	case errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case err != nil:
		internalError(r.Context(), w, "delete user", err)
	default:
		zctx.From(r.Context()).Info("User deleted")
		writeMessage(w, http.StatusOK, "User deleted successfully")
	}
}
