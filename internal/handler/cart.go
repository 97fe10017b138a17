package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/validation"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), currentUser(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID *string
		quantity  *int
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string, c *validation.Collector) error {
		var err error
		switch key {
		case "productId":
			productID, err = readString(d, c, key)
		case "quantity":
			quantity, err = readInt(d, c, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	c, err := h.carts.AddItem(r.Context(), currentUser(r), deref(productID), deref(quantity))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveItem(r.Context(), currentUser(r), r.PathValue("itemId")); err != nil {
		fail(w, r, err)
		return
	}
	writeMessage(w, "Item removed from cart")
}
