// Package handler implements the REST API of the ordering backend on top of
// net/http routing patterns.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/user"
	"github.com/xenking/munchify/internal/server/auth"
	"github.com/xenking/munchify/internal/wire"
	"github.com/xenking/munchify/pkg/httpmiddleware"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Config holds the handler dependencies.
type Config struct {
	Users  *user.Service
	Orders *order.Service
	Promos promo.Repository
	Tokens *auth.Tokens
	// AuthLimit throttles the credential endpoints. Nil disables it.
	AuthLimit httpmiddleware.Middleware
}

// Handler serves the API routes.
type Handler struct {
	users     *user.Service
	orders    *order.Service
	promos    promo.Repository
	tokens    *auth.Tokens
	authLimit httpmiddleware.Middleware
}

// New creates a Handler.
func New(cfg Config) *Handler {
	limit := cfg.AuthLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		users:     cfg.Users,
		orders:    cfg.Orders,
		promos:    cfg.Promos,
		tokens:    cfg.Tokens,
		authLimit: limit,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /auth/register", h.authLimit(http.HandlerFunc(h.register)))
	mux.Handle("POST /auth/login", h.authLimit(http.HandlerFunc(h.login)))
	mux.Handle("GET /auth/me", h.requireUser(h.me))
	mux.Handle("PATCH /auth/update", h.requireUser(h.updateAccount))
	mux.Handle("DELETE /auth/delete", h.requireUser(h.deleteAccount))

	mux.Handle("POST /orders", h.requireUser(h.placeOrder))
	mux.Handle("GET /orders", h.requireUser(h.listOrders))

	mux.HandleFunc("GET /promos/{code}", h.getPromo)
}

// decode reads the request body into v. It writes the 400 response itself
// and reports false when the body is unusable.
func decode(w http.ResponseWriter, r *http.Request, v wire.Decoder) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := wire.Unmarshal(data, v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v wire.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(wire.Marshal(v))
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &wire.Reply{Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &wire.Reply{Error: msg})
}

// internalError logs err and hides it from the client.
func internalError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	zctx.From(ctx).Error("Request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
