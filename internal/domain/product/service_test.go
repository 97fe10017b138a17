package product

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/validation"
)

// --- Mock implementations ---

type mockRepo struct {
	mu        sync.Mutex
	byID      map[string]*Product
	listed    []Product
	total     int
	lastList  Filter
	lastPatch Patch
	created   *Product
	listErr   error
	countErr  error
	deleteErr error
}

func newMockRepo(products ...Product) *mockRepo {
	m := &mockRepo{byID: make(map[string]*Product)}
	for i := range products {
		m.byID[products[i].ID] = &products[i]
	}
	return m
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = f
	return m.listed, m.listErr
}

func (m *mockRepo) Count(_ context.Context, _ Filter) (int, error) {
	return m.total, m.countErr
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	m.created = p
	m.byID[p.ID] = p
	return nil
}

func (m *mockRepo) Update(_ context.Context, id string, patch Patch) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.lastPatch = patch
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	return p, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// --- Helpers ---

func validInput() Input {
	return Input{
		Name:        "Waffle",
		Description: "Belgian waffle",
		Price:       decimal.RequireFromString("6.50"),
		Stock:       10,
		Category:    "Waffle",
		ImageURL:    "https://cdn.example.com/waffle.jpg",
	}
}

func ptr[T any](v T) *T { return &v }

// --- Tests ---

func TestService_List_Pagination(t *testing.T) {
	repo := newMockRepo()
	repo.listed = []Product{{ID: "a"}, {ID: "b"}}
	repo.total = 23
	svc := NewService(repo)

	page, err := svc.List(context.Background(), Filter{Page: 2, Limit: 10, Category: "all"})
	require.NoError(t, err)

	assert.Len(t, page.Products, 2)
	assert.Equal(t, Pagination{Total: 23, Pages: 3, Page: 2, Limit: 10}, page.Pagination)
	assert.Empty(t, repo.lastList.Category)
	assert.Equal(t, SortNewest, repo.lastList.Sort)
}

func TestService_List_EmptyIsNotNil(t *testing.T) {
	svc := NewService(newMockRepo())

	page, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, page.Products)
	assert.Equal(t, 0, page.Pagination.Pages)
}

func TestService_List_CountError(t *testing.T) {
	repo := newMockRepo()
	repo.countErr = errors.New("boom")
	svc := NewService(repo)

	_, err := svc.List(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count products")
}

func TestService_Create(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	in := validInput()
	in.Price = decimal.RequireFromString("6.499")
	p, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.True(t, decimal.RequireFromString("6.50").Equal(p.Price))
	assert.Same(t, p, repo.created)
}

func TestService_Create_Invalid(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	in := validInput()
	in.Name = "  "
	in.Stock = -1
	_, err := svc.Create(context.Background(), in)

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "stock")
	assert.Nil(t, repo.created)
}

func TestService_Update_Partial(t *testing.T) {
	repo := newMockRepo(Product{ID: "p1", Name: "Old", Price: decimal.NewFromInt(3), Stock: 4})
	svc := NewService(repo)

	p, err := svc.Update(context.Background(), "p1", Patch{Price: ptr(decimal.RequireFromString("9.999"))})
	require.NoError(t, err)

	assert.Equal(t, "Old", p.Name)
	assert.Equal(t, 4, p.Stock)
	assert.True(t, decimal.RequireFromString("10.00").Equal(p.Price))
	assert.Nil(t, repo.lastPatch.Name)
}

func TestService_Update_EmptyPatchReturnsCurrent(t *testing.T) {
	repo := newMockRepo(Product{ID: "p1", Name: "Same"})
	svc := NewService(repo)

	p, err := svc.Update(context.Background(), "p1", Patch{})
	require.NoError(t, err)
	assert.Equal(t, "Same", p.Name)
}

func TestService_Update_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Update(context.Background(), "missing", Patch{Name: ptr("x")})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_Update_InvalidField(t *testing.T) {
	svc := NewService(newMockRepo(Product{ID: "p1"}))

	_, err := svc.Update(context.Background(), "p1", Patch{ImageURL: ptr("not a url")})

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid URL", verr.Fields["imageUrl"])
}

func TestService_Delete(t *testing.T) {
	tests := []struct {
		name    string
		repo    *mockRepo
		wantErr error
	}{
		{name: "existing", repo: newMockRepo(Product{ID: "p1"})},
		{name: "missing", repo: newMockRepo(), wantErr: ErrNotFound},
		{name: "in use", repo: func() *mockRepo {
			m := newMockRepo(Product{ID: "p1"})
			m.deleteErr = ErrInUse
			return m
		}(), wantErr: ErrInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewService(tt.repo).Delete(context.Background(), "p1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotContains(t, tt.repo.byID, "p1")
		})
	}
}
