package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	getCartIDSQL = `SELECT id FROM carts WHERE user_id = $1`

	listCartItemsSQL = `SELECT ci.id, ci.product_id, ci.quantity, ci.created_at, ` + productColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at DESC, ci.id`

	// The no-op update makes RETURNING yield the id of an existing cart.
	ensureCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`

	upsertCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	cartItemOwnerSQL = `SELECT c.user_id
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id = $1
		FOR UPDATE OF ci`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart with items newest first.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID, Items: []cart.Item{}}

	err := r.pool.QueryRow(ctx, getCartIDSQL, userID).Scan(&c.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("getting cart of user %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %q: %w", c.ID, err)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %q: %w", c.ID, err)
	}
	c.Items = items
	return c, nil
}

// AddItem creates the user's cart on first use and upserts the product line,
// adding quantity to an existing line.
func (r *CartRepository) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	return execTx(ctx, r.pool, func(tx pgx.Tx) error {
		var cartID string
		if err := tx.QueryRow(ctx, ensureCartSQL, uuid.New().String(), userID).Scan(&cartID); err != nil {
			return fmt.Errorf("ensuring cart of user %q: %w", userID, err)
		}

		_, err := tx.Exec(ctx, upsertCartItemSQL, uuid.New().String(), cartID, productID, quantity)
		if err != nil {
			if hasCode(err, foreignKeyViolation) {
				return product.ErrNotFound
			}
			return fmt.Errorf("upserting item %q into cart %q: %w", productID, cartID, err)
		}
		return nil
	})
}

// RemoveItem deletes itemID after checking, under a row lock in the same
// transaction, that it belongs to userID's cart.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, itemID string) error {
	return execTx(ctx, r.pool, func(tx pgx.Tx) error {
		var owner string
		if err := tx.QueryRow(ctx, cartItemOwnerSQL, itemID).Scan(&owner); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrItemNotFound
			}
			return fmt.Errorf("finding owner of cart item %q: %w", itemID, err)
		}
		if owner != userID {
			return cart.ErrItemNotFound
		}

		if _, err := tx.Exec(ctx, deleteCartItemSQL, itemID); err != nil {
			return fmt.Errorf("deleting cart item %q: %w", itemID, err)
		}
		return nil
	})
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it cart.Item
		p  = &it.Product
	)
	err := row.Scan(
		&it.ID, &it.ProductID, &it.Quantity, &it.CreatedAt,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	return it, err
}
