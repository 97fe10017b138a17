package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInUse is returned when deleting a product that past orders reference.
	ErrInUse = errors.New("product is referenced by existing orders")
)

// InsufficientStockError indicates a product cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID string
	Name      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product: %s", e.Name)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input holds the fields of a new product.
type Input struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	ImageURL    string
}

// Patch holds a partial product update. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Category    *string
	ImageURL    *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.Stock == nil && p.Category == nil && p.ImageURL == nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Count(ctx context.Context, f Filter) (int, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, patch Patch) (*Product, error)
	Delete(ctx context.Context, id string) error
}
