package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrEmptyCart is returned when checking out a missing or empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCommitFailed wraps any non-business failure of the checkout
	// transaction. Nothing from the attempt is persisted.
	ErrCommitFailed = errors.New("failed to place order")
)

// Status is the lifecycle state of an order.
type Status string

const StatusCompleted Status = "COMPLETED"

// Order is an immutable purchase record.
type Order struct {
	ID        string
	UserID    string
	Total     decimal.Decimal
	Status    Status
	CreatedAt time.Time
	Items     []Item
}

// Item is a frozen order line. Price is the unit price at purchase time.
type Item struct {
	ID        string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	// Product is the current catalog row, populated when reading history.
	Product *product.Product
}

// Line is a cart line joined with the live product row, read inside the
// checkout transaction.
type Line struct {
	CartItemID string
	ProductID  string
	Name       string
	Price      decimal.Decimal
	Stock      int
	Quantity   int
}

// Tx is the set of writes a checkout performs inside one transaction.
type Tx interface {
	// CartLines locks the user's cart and returns its id and lines. cartID
	// is empty when the user has no cart.
	CartLines(ctx context.Context, userID string) (cartID string, lines []Line, err error)
	InsertOrder(ctx context.Context, o *Order) error
	// DecrementStock subtracts quantity from the product stock only when
	// enough remains. It reports false when nothing was decremented.
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
	ClearCart(ctx context.Context, cartID string) error
	Enqueue(ctx context.Context, e Event) error
}

// Store runs checkout transactions and reads order history.
type Store interface {
	// InTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
