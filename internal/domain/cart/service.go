package cart

import (
	"context"
	"fmt"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/validation"
)

// Service implements the cart aggregate. Cart operations never touch
// product stock.
type Service struct {
	carts    Repository
	products ProductGetter
}

// NewService creates a cart Service.
func NewService(carts Repository, products ProductGetter) *Service {
	return &Service{carts: carts, products: products}
}

// Get returns the user's cart.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

// AddItem puts quantity units of productID in the user's cart and returns
// the refreshed cart.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	var c validation.Collector
	c.Check(productID != "", "productId", "is required")
	c.Check(quantity >= 1, "quantity", "must be a positive integer")
	if err := c.Err(); err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock < quantity {
		return nil, &product.InsufficientStockError{ProductID: p.ID, Name: p.Name}
	}

	if err := s.carts.AddItem(ctx, userID, productID, quantity); err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return s.Get(ctx, userID)
}

// RemoveItem deletes an item from the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) error {
	return s.carts.RemoveItem(ctx, userID, itemID)
}
