package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service implements catalog browsing and admin mutations.
type Service struct {
	repo Repository
}

// NewService creates a product Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of products matching f together with the total
// match count. The page and the count are fetched concurrently.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	f = f.Normalized()

	var (
		products []Product
		total    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.repo.List(gctx, f)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, f)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if products == nil {
		products = []Product{}
	}
	return &Page{
		Products: products,
		Pagination: Pagination{
			Total: total,
			Pages: (total + f.Limit - 1) / f.Limit,
			Page:  f.Page,
			Limit: f.Limit,
		},
	}, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates in and stores it as a new product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := &Product{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update applies the fields present in patch to product id.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.repo.GetByID(ctx, id)
	}
	if patch.Price != nil {
		rounded := patch.Price.Round(2)
		patch.Price = &rounded
	}

	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return p, nil
}

// Delete removes product id. Cart lines holding it go with it; products that
// appear in order history cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}
