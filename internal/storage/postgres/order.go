package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	lockCartSQL = `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`

	checkoutLinesSQL = `SELECT ci.id, p.id, p.name, p.price, p.stock, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at DESC, ci.id`

	insertOrderSQL = `INSERT INTO orders (id, user_id, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	insertOutboxSQL = `INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`

	listOrdersSQL = `SELECT id, user_id, total, status, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id`

	listOrderItemsSQL = `SELECT oi.order_id, oi.id, oi.product_id, oi.quantity, oi.price, ` + productColumns + `
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.position`
)

var orderItemColumns = []string{"id", "order_id", "product_id", "position", "quantity", "price"}

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs a checkout inside one READ COMMITTED transaction.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return execTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, checkoutTx{tx: tx})
	})
}

// ListByUser returns the user's orders newest first, each with its lines and
// their current product rows.
func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %q: %w", userID, err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	rows, err = s.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      order.Item
			p       = new(product.Product)
		)
		if err := rows.Scan(
			&orderID, &it.ID, &it.ProductID, &it.Quantity, &it.Price,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
			&p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		it.Product = p
		o := byID[orderID]
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	return orders, nil
}

// checkoutTx implements order.Tx on an open transaction.
type checkoutTx struct {
	tx pgx.Tx
}

func (c checkoutTx) CartLines(ctx context.Context, userID string) (string, []order.Line, error) {
	var cartID string
	if err := c.tx.QueryRow(ctx, lockCartSQL, userID).Scan(&cartID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("locking cart of user %q: %w", userID, err)
	}

	rows, err := c.tx.Query(ctx, checkoutLinesSQL, cartID)
	if err != nil {
		return "", nil, fmt.Errorf("reading lines of cart %q: %w", cartID, err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.CartItemID, &l.ProductID, &l.Name, &l.Price, &l.Stock, &l.Quantity)
		return l, err
	})
	if err != nil {
		return "", nil, fmt.Errorf("reading lines of cart %q: %w", cartID, err)
	}
	return cartID, lines, nil
}

func (c checkoutTx) InsertOrder(ctx context.Context, o *order.Order) error {
	if _, err := c.tx.Exec(ctx, insertOrderSQL, o.ID, o.UserID, o.Total, string(o.Status), o.CreatedAt); err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	_, err := c.tx.CopyFrom(ctx, pgx.Identifier{"order_items"}, orderItemColumns,
		pgx.CopyFromSlice(len(o.Items), func(i int) ([]any, error) {
			it := o.Items[i]
			return []any{it.ID, o.ID, it.ProductID, i, it.Quantity, it.Price}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("inserting items of order %q: %w", o.ID, err)
	}
	return nil
}

func (c checkoutTx) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	tag, err := c.tx.Exec(ctx, decrementStockSQL, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("decrementing stock of %q: %w", productID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (c checkoutTx) ClearCart(ctx context.Context, cartID string) error {
	if _, err := c.tx.Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	return nil
}

func (c checkoutTx) Enqueue(ctx context.Context, e order.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshaling event %q: %w", e.ID, err)
	}
	if _, err := c.tx.Exec(ctx, insertOutboxSQL, e.ID, e.Topic, e.Key, payload); err != nil {
		return fmt.Errorf("inserting outbox event %q: %w", e.ID, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &status, &o.CreatedAt)
	o.Status = order.Status(status)
	return o, err
}
