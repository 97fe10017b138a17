package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/domain/validation"
)

// --- Mock implementations ---

type mockCatalog struct {
	list   func(f product.Filter) (*product.Page, error)
	get    func(id string) (*product.Product, error)
	create func(in product.Input) (*product.Product, error)
	update func(id string, p product.Patch) (*product.Product, error)
	delete func(id string) error
}

func (m *mockCatalog) List(_ context.Context, f product.Filter) (*product.Page, error) {
	return m.list(f)
}

func (m *mockCatalog) Get(_ context.Context, id string) (*product.Product, error) {
	return m.get(id)
}

func (m *mockCatalog) Create(_ context.Context, in product.Input) (*product.Product, error) {
	return m.create(in)
}

func (m *mockCatalog) Update(_ context.Context, id string, p product.Patch) (*product.Product, error) {
	return m.update(id, p)
}

func (m *mockCatalog) Delete(_ context.Context, id string) error {
	return m.delete(id)
}

type mockCarts struct {
	get    func(userID string) (*cart.Cart, error)
	add    func(userID, productID string, qty int) (*cart.Cart, error)
	remove func(userID, itemID string) error
}

func (m *mockCarts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	return m.get(userID)
}

func (m *mockCarts) AddItem(_ context.Context, userID, productID string, qty int) (*cart.Cart, error) {
	return m.add(userID, productID, qty)
}

func (m *mockCarts) RemoveItem(_ context.Context, userID, itemID string) error {
	return m.remove(userID, itemID)
}

type mockOrders struct {
	checkout func(userID string) (*order.Order, error)
	history  func(userID string) ([]order.Order, error)
}

func (m *mockOrders) Checkout(_ context.Context, userID string) (*order.Order, error) {
	return m.checkout(userID)
}

func (m *mockOrders) History(_ context.Context, userID string) ([]order.Order, error) {
	return m.history(userID)
}

// mockSessions accepts the tokens "customer" and "admin".
type mockSessions struct {
	signIn func(email, password string) (*auth.Session, error)
}

func (m *mockSessions) Verify(_ context.Context, token string) (auth.Identity, error) {
	switch token {
	case "customer":
		return auth.Identity{UserID: "u-1", Email: "jane@example.com", Role: user.RoleCustomer}, nil
	case "admin":
		return auth.Identity{UserID: "u-admin", Email: "admin@example.com", Role: user.RoleAdmin}, nil
	case "broken":
		return auth.Identity{}, errors.New("connection reset")
	default:
		return auth.Identity{}, auth.ErrUnauthenticated
	}
}

func (m *mockSessions) SignIn(_ context.Context, email, password string) (*auth.Session, error) {
	return m.signIn(email, password)
}

func (m *mockSessions) Introspect(token string) (auth.Identity, error) {
	if token != "customer" {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return auth.Identity{UserID: "u-1", Email: "jane@example.com"}, nil
}

// --- Helpers ---

var created = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func waffle() *product.Product {
	return &product.Product{
		ID:          "p-1",
		Name:        "Waffle",
		Description: "Belgian waffle",
		Price:       decimal.RequireFromString("6.5"),
		Stock:       4,
		Category:    "Waffle",
		ImageURL:    "https://cdn.example.com/waffle.jpg",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

type fixture struct {
	catalog  *mockCatalog
	carts    *mockCarts
	orders   *mockOrders
	sessions *mockSessions
	mux      *http.ServeMux
}

func newFixture() *fixture {
	f := &fixture{
		catalog:  &mockCatalog{},
		carts:    &mockCarts{},
		orders:   &mockOrders{},
		sessions: &mockSessions{},
		mux:      http.NewServeMux(),
	}
	New(f.catalog, f.carts, f.orders, f.sessions).Register(f.mux)
	return f
}

func (f *fixture) do(method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// --- Tests ---

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		token      string
		wantStatus int
		wantError  string
	}{
		{name: "missing token", method: http.MethodGet, target: "/api/cart", wantStatus: http.StatusUnauthorized, wantError: "unauthorized"},
		{name: "invalid token", method: http.MethodGet, target: "/api/orders", token: "nope", wantStatus: http.StatusUnauthorized, wantError: "unauthorized"},
		{name: "verifier failure", method: http.MethodGet, target: "/api/cart", token: "broken", wantStatus: http.StatusInternalServerError, wantError: "internal server error"},
		{name: "customer on admin route", method: http.MethodDelete, target: "/api/products/p-1", token: "customer", wantStatus: http.StatusForbidden, wantError: "forbidden"},
		{name: "anonymous on admin route", method: http.MethodPost, target: "/api/products", wantStatus: http.StatusUnauthorized, wantError: "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newFixture().do(tt.method, tt.target, tt.token, "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decode[errorBody](t, w).Error)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "Basic abc"},
		{header: "Bearer "},
		{header: "abc"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		got, ok := bearerToken(req)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestListProducts(t *testing.T) {
	f := newFixture()
	var got product.Filter
	f.catalog.list = func(filter product.Filter) (*product.Page, error) {
		got = filter
		return &product.Page{
			Products:   []product.Product{*waffle()},
			Pagination: product.Pagination{Total: 11, Pages: 2, Page: 2, Limit: 10},
		}, nil
	}

	w := f.do(http.MethodGet, "/api/products?page=2&search=+waf+&category=Waffle&minPrice=1.5&maxPrice=10&sort=price-desc", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, got.Page)
	assert.Equal(t, "waf", got.Search)
	assert.Equal(t, "Waffle", got.Category)
	assert.Equal(t, product.SortPriceDesc, got.Sort)
	assert.True(t, decimal.RequireFromString("1.5").Equal(*got.MinPrice))
	assert.True(t, decimal.RequireFromString("10").Equal(*got.MaxPrice))

	assert.JSONEq(t, `{
		"products": [{
			"id": "p-1",
			"name": "Waffle",
			"description": "Belgian waffle",
			"price": 6.50,
			"stock": 4,
			"category": "Waffle",
			"imageUrl": "https://cdn.example.com/waffle.jpg",
			"createdAt": "2026-05-01T10:00:00Z",
			"updatedAt": "2026-05-01T10:00:00Z"
		}],
		"pagination": {"total": 11, "pages": 2, "page": 2, "limit": 10}
	}`, w.Body.String())
}

func TestListProducts_BadFilter(t *testing.T) {
	tests := []struct {
		query string
		field string
	}{
		{query: "page=two", field: "page"},
		{query: "limit=1.5", field: "limit"},
		{query: "minPrice=cheap", field: "minPrice"},
		{query: "maxPrice=-1", field: "maxPrice"},
		{query: "minPrice=10&maxPrice=5", field: "minPrice"},
		{query: "sort=popular", field: "sort"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := newFixture().do(http.MethodGet, "/api/products?"+tt.query, "", "")
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[errorBody](t, w).Fields, tt.field)
		})
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture()
	f.catalog.get = func(id string) (*product.Product, error) {
		assert.Equal(t, "missing", id)
		return nil, product.ErrNotFound
	}

	w := f.do(http.MethodGet, "/api/products/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "product not found", decode[errorBody](t, w).Error)
}

func TestCreateProduct(t *testing.T) {
	f := newFixture()
	var got product.Input
	f.catalog.create = func(in product.Input) (*product.Product, error) {
		got = in
		return waffle(), nil
	}

	w := f.do(http.MethodPost, "/api/products", "admin", `{
		"name": "Waffle",
		"description": "Belgian waffle",
		"price": 6.5,
		"stock": 4,
		"category": "Waffle",
		"imageUrl": "https://cdn.example.com/waffle.jpg",
		"unknown": {"nested": [1, 2]}
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Waffle", got.Name)
	assert.True(t, decimal.RequireFromString("6.5").Equal(got.Price))
	assert.Equal(t, 4, got.Stock)
	assert.Equal(t, "p-1", decode[map[string]any](t, w)["id"])
}

func TestCreateProduct_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantError  string
		wantFields []string
	}{
		{
			name:       "missing numbers and name",
			body:       `{"description": "d", "category": "c", "imageUrl": "https://x.example/i.png"}`,
			wantError:  "validation failed",
			wantFields: []string{"price", "stock", "name"},
		},
		{
			name:       "wrong types",
			body:       `{"name": 1, "price": "abc", "stock": 1.5}`,
			wantError:  "validation failed",
			wantFields: []string{"name", "price", "stock"},
		},
		{
			name:       "numbers beyond column range",
			body:       `{"name": "n", "description": "d", "category": "c", "imageUrl": "https://x.example/i.png", "price": 1e13, "stock": 2147483648}`,
			wantError:  "validation failed",
			wantFields: []string{"price", "stock"},
		},
		{name: "not json", body: `{"name":`, wantError: "malformed JSON body"},
		{name: "array body", body: `[]`, wantError: "request body must be a JSON object"},
		{name: "empty body", body: ``, wantError: "request body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.catalog.create = func(product.Input) (*product.Product, error) {
				t.Fatal("service must not be called")
				return nil, nil
			}

			w := f.do(http.MethodPost, "/api/products", "admin", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			body := decode[errorBody](t, w)
			assert.Equal(t, tt.wantError, body.Error)
			for _, field := range tt.wantFields {
				assert.Contains(t, body.Fields, field)
			}
		})
	}
}

func TestCreateProduct_ServiceValidation(t *testing.T) {
	f := newFixture()
	f.catalog.create = func(product.Input) (*product.Product, error) {
		return nil, &validation.Error{Fields: map[string]string{"imageUrl": "must be an absolute http(s) URL"}}
	}

	w := f.do(http.MethodPost, "/api/products", "admin", `{"name":"n","description":"d","price":1,"stock":1,"category":"c","imageUrl":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "must be an absolute http(s) URL", decode[errorBody](t, w).Fields["imageUrl"])
}

func TestUpdateProduct_PartialPatch(t *testing.T) {
	f := newFixture()
	var (
		gotID    string
		gotPatch product.Patch
	)
	f.catalog.update = func(id string, p product.Patch) (*product.Product, error) {
		gotID, gotPatch = id, p
		return waffle(), nil
	}

	w := f.do(http.MethodPut, "/api/products/p-1", "admin", `{"stock": 0, "price": "7.25"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-1", gotID)
	require.NotNil(t, gotPatch.Stock)
	assert.Zero(t, *gotPatch.Stock)
	require.NotNil(t, gotPatch.Price)
	assert.Equal(t, "7.25", gotPatch.Price.String())
	assert.Nil(t, gotPatch.Name)
	assert.Nil(t, gotPatch.ImageURL)
}

func TestDeleteProduct(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "deleted", wantStatus: http.StatusOK},
		{name: "missing", err: product.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "ordered before", err: product.ErrInUse, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.catalog.delete = func(string) error { return tt.err }

			w := f.do(http.MethodDelete, "/api/products/p-1", "admin", "")
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.err == nil {
				assert.Equal(t, "Product deleted successfully", decode[map[string]string](t, w)["message"])
			}
		})
	}
}

func TestGetCart_NoCart(t *testing.T) {
	f := newFixture()
	f.carts.get = func(userID string) (*cart.Cart, error) {
		return &cart.Cart{UserID: userID, Items: []cart.Item{}}, nil
	}

	w := f.do(http.MethodGet, "/api/cart", "customer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items": []}`, w.Body.String())
}

func TestAddCartItem(t *testing.T) {
	f := newFixture()
	f.carts.add = func(userID, productID string, qty int) (*cart.Cart, error) {
		assert.Equal(t, "u-1", userID)
		assert.Equal(t, "p-1", productID)
		assert.Equal(t, 2, qty)
		return &cart.Cart{ID: "c-1", UserID: userID, Items: []cart.Item{{
			ID:        "ci-1",
			ProductID: productID,
			Quantity:  qty,
			CreatedAt: created,
			Product:   *waffle(),
		}}}, nil
	}

	w := f.do(http.MethodPost, "/api/cart", "customer", `{"productId": "p-1", "quantity": 2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ID    string `json:"id"`
		Items []struct {
			ID       string `json:"id"`
			CartID   string `json:"cartId"`
			Quantity int    `json:"quantity"`
			Product  struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
			} `json:"product"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "c-1", body.ID)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "c-1", body.Items[0].CartID)
	assert.Equal(t, 2, body.Items[0].Quantity)
	assert.Equal(t, "Waffle", body.Items[0].Product.Name)
	assert.Equal(t, 6.5, body.Items[0].Product.Price)
}

func TestAddCartItem_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "quantity as string",
			body:       `{"productId": "p-1", "quantity": "2"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed",
		},
		{
			name:       "insufficient stock",
			body:       `{"productId": "p-1", "quantity": 9}`,
			err:        &product.InsufficientStockError{ProductID: "p-1", Name: "Waffle"},
			wantStatus: http.StatusBadRequest,
			wantError:  "insufficient stock for product: Waffle",
		},
		{
			name:       "unknown product",
			body:       `{"productId": "nope", "quantity": 1}`,
			err:        product.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "product not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.carts.add = func(string, string, int) (*cart.Cart, error) { return nil, tt.err }

			w := f.do(http.MethodPost, "/api/cart", "customer", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decode[errorBody](t, w).Error)
		})
	}
}

func TestRemoveCartItem(t *testing.T) {
	f := newFixture()
	f.carts.remove = func(userID, itemID string) error {
		if userID == "u-1" && itemID == "ci-1" {
			return nil
		}
		return cart.ErrItemNotFound
	}

	w := f.do(http.MethodDelete, "/api/cart/ci-1", "customer", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Item removed from cart", decode[map[string]string](t, w)["message"])

	w = f.do(http.MethodDelete, "/api/cart/ci-2", "customer", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout(t *testing.T) {
	placed := &order.Order{
		ID:        "o-1",
		UserID:    "u-1",
		Total:     decimal.RequireFromString("35"),
		Status:    order.StatusCompleted,
		CreatedAt: created,
		Items: []order.Item{
			{ID: "oi-1", ProductID: "x", Quantity: 2, Price: decimal.RequireFromString("10")},
			{ID: "oi-2", ProductID: "y", Quantity: 3, Price: decimal.RequireFromString("5")},
		},
	}

	tests := []struct {
		name       string
		result     *order.Order
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "completed", result: placed, wantStatus: http.StatusCreated},
		{name: "empty cart", err: order.ErrEmptyCart, wantStatus: http.StatusBadRequest, wantError: "cart is empty"},
		{
			name:       "insufficient stock",
			err:        &product.InsufficientStockError{ProductID: "x", Name: "Product X"},
			wantStatus: http.StatusBadRequest,
			wantError:  "insufficient stock for product: Product X",
		},
		{
			name:       "commit failure",
			err:        errors.Wrap(order.ErrCommitFailed, "serialization failure"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "failed to place order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.checkout = func(userID string) (*order.Order, error) {
				assert.Equal(t, "u-1", userID)
				return tt.result, tt.err
			}

			w := f.do(http.MethodPost, "/api/orders", "customer", "")
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.err != nil {
				assert.Equal(t, tt.wantError, decode[errorBody](t, w).Error)
				return
			}
			assert.JSONEq(t, `{
				"id": "o-1",
				"userId": "u-1",
				"total": 35.00,
				"status": "COMPLETED",
				"createdAt": "2026-05-01T10:00:00Z",
				"items": [
					{"id": "oi-1", "orderId": "o-1", "productId": "x", "quantity": 2, "price": 10.00},
					{"id": "oi-2", "orderId": "o-1", "productId": "y", "quantity": 3, "price": 5.00}
				]
			}`, w.Body.String())
		})
	}
}

func TestListOrders(t *testing.T) {
	f := newFixture()
	f.orders.history = func(string) ([]order.Order, error) {
		return []order.Order{}, nil
	}

	w := f.do(http.MethodGet, "/api/orders", "customer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSignIn(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "ok", body: `{"email": "jane@example.com", "password": "secret"}`, wantStatus: http.StatusOK},
		{name: "wrong password", body: `{"email": "jane@example.com", "password": "guess"}`, wantStatus: http.StatusUnauthorized, wantError: "invalid credentials"},
		{name: "missing password", body: `{"email": "jane@example.com"}`, wantStatus: http.StatusBadRequest, wantError: "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.sessions.signIn = func(email, password string) (*auth.Session, error) {
				if password != "secret" {
					return nil, auth.ErrInvalidCredentials
				}
				return &auth.Session{
					Token: "tok",
					User:  &user.User{ID: "u-1", Email: email, FirstName: "Jane", LastName: "Doe", Role: user.RoleCustomer},
				}, nil
			}

			w := f.do(http.MethodPost, "/api/auth/signin", "", tt.body)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decode[errorBody](t, w).Error)
				return
			}
			assert.JSONEq(t, `{
				"token": "tok",
				"user": {"id": "u-1", "email": "jane@example.com", "firstName": "Jane", "lastName": "Doe", "role": "CUSTOMER"}
			}`, w.Body.String())
		})
	}
}

func TestUserInfo(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodPost, "/api/auth/userinfo", "", `{"token": "customer"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId": "u-1", "email": "jane@example.com"}`, w.Body.String())

	w = f.do(http.MethodPost, "/api/auth/userinfo", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing token", decode[errorBody](t, w).Error)

	w = f.do(http.MethodPost, "/api/auth/userinfo", "", `{"token": "expired"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
