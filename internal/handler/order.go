package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.History(r.Context(), currentUser(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Checkout(r.Context(), currentUser(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}
