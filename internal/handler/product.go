package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/validation"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.catalog.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePage(e, page) })
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	body, err := decodeProduct(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := body.input()
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := decodeProduct(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), r.PathValue("id"), body.patch())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	writeMessage(w, "Product deleted successfully")
}

// productBody is a create or update request. Nil fields were absent.
type productBody struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Category    *string
	ImageURL    *string
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (productBody, error) {
	var b productBody
	err := decodeObject(w, r, func(d *jx.Decoder, key string, c *validation.Collector) error {
		var err error
		switch key {
		case "name":
			b.Name, err = readString(d, c, key)
		case "description":
			b.Description, err = readString(d, c, key)
		case "price":
			b.Price, err = readDecimal(d, c, key)
		case "stock":
			b.Stock, err = readInt(d, c, key)
		case "category":
			b.Category, err = readString(d, c, key)
		case "imageUrl":
			b.ImageURL, err = readString(d, c, key)
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

// input converts a create request, reporting missing numeric fields along
// with any other invalid field.
func (b productBody) input() (product.Input, error) {
	in := product.Input{
		Name:        deref(b.Name),
		Description: deref(b.Description),
		Price:       deref(b.Price),
		Stock:       deref(b.Stock),
		Category:    deref(b.Category),
		ImageURL:    deref(b.ImageURL),
	}

	var c validation.Collector
	c.Check(b.Price != nil, "price", "is required")
	c.Check(b.Stock != nil, "stock", "is required")
	if c.Err() == nil {
		return in, nil
	}
	var verr *validation.Error
	if errors.As(in.Validate(), &verr) {
		for field, msg := range verr.Fields {
			c.Add(field, msg)
		}
	}
	return in, c.Err()
}

func (b productBody) patch() product.Patch {
	return product.Patch{
		Name:        b.Name,
		Description: b.Description,
		Price:       b.Price,
		Stock:       b.Stock,
		Category:    b.Category,
		ImageURL:    b.ImageURL,
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// parseFilter reads the listing query. Out-of-range paging is clamped by
// the service; unparseable values are rejected.
func parseFilter(q url.Values) (product.Filter, error) {
	var c validation.Collector
	f := product.Filter{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: strings.TrimSpace(q.Get("category")),
		Page:     queryInt(q, "page", &c),
		Limit:    queryInt(q, "limit", &c),
		MinPrice: queryDecimal(q, "minPrice", &c),
		MaxPrice: queryDecimal(q, "maxPrice", &c),
	}

	switch s := product.Sort(q.Get("sort")); s {
	case "":
	case product.SortNewest, product.SortPriceAsc, product.SortPriceDesc:
		f.Sort = s
	default:
		c.Add("sort", "must be one of newest, price-asc, price-desc")
	}

	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		c.Add("minPrice", "must not exceed maxPrice")
	}
	return f, c.Err()
}

func queryInt(q url.Values, key string, c *validation.Collector) int {
	raw := q.Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.Add(key, "must be an integer")
	}
	return v
}

func queryDecimal(q url.Values, key string, c *validation.Collector) *decimal.Decimal {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		c.Add(key, "must be a number")
		return nil
	}
	if v.IsNegative() {
		c.Add(key, "must not be negative")
		return nil
	}
	return &v
}
