// Package handler serves the storefront JSON API on net/http.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// Catalog is the product service used by the handlers.
type Catalog interface {
	List(ctx context.Context, f product.Filter) (*product.Page, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Create(ctx context.Context, in product.Input) (*product.Product, error)
	Update(ctx context.Context, id string, patch product.Patch) (*product.Product, error)
	Delete(ctx context.Context, id string) error
}

// Carts is the cart service used by the handlers.
type Carts interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
}

// Orders is the checkout and history service used by the handlers.
type Orders interface {
	Checkout(ctx context.Context, userID string) (*order.Order, error)
	History(ctx context.Context, userID string) ([]order.Order, error)
}

// Sessions verifies bearer tokens and signs users in.
type Sessions interface {
	auth.Verifier
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	Introspect(token string) (auth.Identity, error)
}

// Handler holds the services behind the API routes.
type Handler struct {
	catalog  Catalog
	carts    Carts
	orders   Orders
	sessions Sessions
}

// New creates a Handler.
func New(catalog Catalog, carts Carts, orders Orders, sessions Sessions) *Handler {
	return &Handler{
		catalog:  catalog,
		carts:    carts,
		orders:   orders,
		sessions: sessions,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	signedIn := h.authenticate
	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return h.authenticate(requireAdmin(next))
	}

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/products", admin(h.createProduct))
	mux.HandleFunc("PUT /api/products/{id}", admin(h.updateProduct))
	mux.HandleFunc("DELETE /api/products/{id}", admin(h.deleteProduct))

	mux.HandleFunc("GET /api/cart", signedIn(h.getCart))
	mux.HandleFunc("POST /api/cart", signedIn(h.addCartItem))
	mux.HandleFunc("DELETE /api/cart/{itemId}", signedIn(h.removeCartItem))

	mux.HandleFunc("GET /api/orders", signedIn(h.listOrders))
	mux.HandleFunc("POST /api/orders", signedIn(h.checkout))

	mux.HandleFunc("POST /api/auth/signin", h.signIn)
	mux.HandleFunc("POST /api/auth/userinfo", h.userInfo)
}
