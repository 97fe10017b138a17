package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `p.id, p.name, p.description, p.price, p.stock, p.category, p.image_url, p.created_at, p.updated_at`

const (
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	createProductSQL = `INSERT INTO products (id, name, description, price, stock, category, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	updateProductSQL = `UPDATE products p SET
		name        = COALESCE($2, p.name),
		description = COALESCE($3, p.description),
		price       = COALESCE($4, p.price),
		stock       = COALESCE($5, p.stock),
		category    = COALESCE($6, p.category),
		image_url   = COALESCE($7, p.image_url),
		updated_at  = now()
		WHERE p.id = $1
		RETURNING ` + productColumns

	upsertProductSQL = `INSERT INTO products (id, name, description, price, stock, category, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			price       = EXCLUDED.price,
			stock       = EXCLUDED.stock,
			category    = EXCLUDED.category,
			image_url   = EXCLUDED.image_url,
			updated_at  = now()
		RETURNING created_at, updated_at`

	existsProductSQL = `SELECT EXISTS (
		SELECT 1 FROM products p
		WHERE lower(p.name) = lower($1) AND lower(p.category) = lower($2))`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var productOrderBy = map[product.Sort]string{
	product.SortNewest:    "p.created_at DESC, p.id",
	product.SortPriceAsc:  "p.price ASC, p.id",
	product.SortPriceDesc: "p.price DESC, p.id",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the page of products selected by f. f must be normalized.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	var q queryArgs
	where := productWhere(f, &q)
	sql := `SELECT ` + productColumns + ` FROM products p` + where +
		` ORDER BY ` + productOrderBy[f.Sort] +
		` LIMIT ` + q.add(f.Limit) + ` OFFSET ` + q.add(f.Offset())

	rows, err := r.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Count returns the number of products matching f, ignoring paging.
func (r *ProductRepository) Count(ctx context.Context, f product.Filter) (int, error) {
	var q queryArgs
	sql := `SELECT count(*) FROM products p` + productWhere(f, &q)

	var n int
	if err := r.pool.QueryRow(ctx, sql, q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create inserts p and fills in its timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.ImageURL,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts p or overwrites the product with the same id. It backs the
// seed tool, which must be re-runnable.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.ImageURL,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Exists reports whether a product with the same name and category is
// already stored, ignoring case.
func (r *ProductRepository) Exists(ctx context.Context, name, category string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, existsProductSQL, name, category).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking product %q in %q: %w", name, category, err)
	}
	return ok, nil
}

// Update writes the non-nil fields of patch in a single statement.
func (r *ProductRepository) Update(ctx context.Context, id string, patch product.Patch) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, updateProductSQL, id,
		patch.Name, patch.Description, patch.Price, patch.Stock, patch.Category, patch.ImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("updating product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("updating product %q: %w", id, err)
	}
	return &p, nil
}

// Delete removes a product. Cart lines cascade; order lines restrict the
// delete, which surfaces as product.ErrInUse.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if hasCode(err, foreignKeyViolation) {
			return product.ErrInUse
		}
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// queryArgs numbers positional parameters as they are added.
type queryArgs struct {
	args []any
}

func (q *queryArgs) add(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// productPredicate renders one optional filter field as a condition, or ""
// when the field is unset.
type productPredicate func(f product.Filter, q *queryArgs) string

var productPredicates = []productPredicate{
	func(f product.Filter, q *queryArgs) string {
		if f.Search == "" {
			return ""
		}
		p := q.add("%" + escapeLike(f.Search) + "%")
		return "(p.name ILIKE " + p + " OR p.description ILIKE " + p + ")"
	},
	func(f product.Filter, q *queryArgs) string {
		if f.Category == "" {
			return ""
		}
		return "p.category = " + q.add(f.Category)
	},
	func(f product.Filter, q *queryArgs) string {
		if f.MinPrice == nil {
			return ""
		}
		return "p.price >= " + q.add(*f.MinPrice)
	},
	func(f product.Filter, q *queryArgs) string {
		if f.MaxPrice == nil {
			return ""
		}
		return "p.price <= " + q.add(*f.MaxPrice)
	},
}

func productWhere(f product.Filter, q *queryArgs) string {
	var conds []string
	for _, pred := range productPredicates {
		if c := pred(f, q); c != "" {
			conds = append(conds, c)
		}
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
