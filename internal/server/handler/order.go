package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/user"
	"github.com/xenking/munchify/internal/failure"
	"github.com/xenking/munchify/internal/wire"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req wire.OrderRequest
	if !decode(w, r, &req) {
		return
	}
	id, _ := UserID(r.Context())
	receipt, err := h.orders.Place(r.Context(), id, order.Request(req))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if status, msg, ok := orderRejection(err); ok {
			writeError(w, status, msg)
			return
		}
		internalError(r.Context(), w, "place order", err)
		return
	}
	writeJSON(w, http.StatusCreated, (*wire.Receipt)(receipt))
}

// orderRejection maps order placement errors caused by the request.
func orderRejection(err error) (int, string, bool) {
	var (
		qtyErr   *order.InvalidQuantityError
		priceErr *order.InvalidPriceError
		valErr   *failure.ValidationError
	)
	switch {
	case errors.Is(err, order.ErrEmptyOrder):
		return http.StatusBadRequest, "Invalid order: cart is empty or total is zero.", true
	case errors.As(err, &qtyErr):
		return http.StatusBadRequest, qtyErr.Error(), true
	case errors.As(err, &priceErr):
		return http.StatusBadRequest, priceErr.Error(), true
	case errors.As(err, &valErr):
		return http.StatusBadRequest, failure.Message(valErr), true
	case errors.Is(err, promo.ErrInvalidCode):
		return http.StatusBadRequest, "Invalid promo code.", true
	case errors.Is(err, promo.ErrExpired):
		return http.StatusBadRequest, "This promo code has expired.", true
	case errors.Is(err, promo.ErrUsageLimitReached):
		return http.StatusBadRequest, "This promo code is no longer available.", true
	default:
		return 0, "", false
	}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := UserID(r.Context())
	orders, err := h.orders.List(r.Context(), id)
	if err != nil {
		internalError(r.Context(), w, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Orders(orders))
}

func (h *Handler) getPromo(w http.ResponseWriter, r *http.Request) {
	code := promo.NormalizeCode(r.PathValue("code"))
	rule, err := h.promos.FindByCode(r.Context(), code)
	if errors.Is(err, promo.ErrInvalidCode) {
		writeError(w, http.StatusNotFound, "Invalid promo code.")
		return
	}
	if err != nil {
		internalError(r.Context(), w, "find promo", err)
		return
	}
	writeJSON(w, http.StatusOK, (*wire.Promo)(rule))
}
