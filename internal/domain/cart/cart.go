package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrItemNotFound is returned when a cart item does not exist or belongs to
// another user's cart. The two cases are not distinguished.
var ErrItemNotFound = errors.New("cart item not found")

// Cart is a user's staging area of intended purchases. ID is empty until the
// first item is added.
type Cart struct {
	ID     string
	UserID string
	Items  []Item
}

// Item is one product line in a cart, most recently added first.
type Item struct {
	ID        string
	ProductID string
	Quantity  int
	CreatedAt time.Time
	Product   product.Product
}

// Repository defines persistence operations for carts.
type Repository interface {
	// Get returns the user's cart with products populated, or an empty cart
	// when none exists yet.
	Get(ctx context.Context, userID string) (*Cart, error)
	// AddItem creates the cart when missing and inserts the product line or
	// increments its quantity, in one transaction.
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	// RemoveItem deletes itemID if it sits in userID's cart, otherwise it
	// returns ErrItemNotFound.
	RemoveItem(ctx context.Context, userID, itemID string) error
}

// ProductGetter looks up a catalog product.
type ProductGetter interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}
