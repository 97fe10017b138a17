package handler

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/domain/validation"
)

const maxBodyBytes = 1 << 20

// decodeObject reads the request body as one JSON object, calling field for
// each key. Type mismatches are collected into a *validation.Error.
func decodeObject(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string, c *validation.Collector) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("request body is too large or unreadable")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return badRequest("request body is required")
	}

	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return badRequest("request body must be a JSON object")
	}

	var c validation.Collector
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		return field(d, key, &c)
	}); err != nil {
		return badRequest("malformed JSON body")
	}
	return c.Err()
}

func readString(d *jx.Decoder, c *validation.Collector, field string) (*string, error) {
	if d.Next() != jx.String {
		c.Add(field, "must be a string")
		return nil, d.Skip()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func readInt(d *jx.Decoder, c *validation.Collector, field string) (*int, error) {
	if d.Next() != jx.Number {
		c.Add(field, "must be an integer")
		return nil, d.Skip()
	}
	n, err := d.Num()
	if err != nil {
		return nil, err
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		c.Add(field, "must be an integer")
		return nil, nil
	}
	return &v, nil
}

// readDecimal accepts a JSON number or a numeric string.
func readDecimal(d *jx.Decoder, c *validation.Collector, field string) (*decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		raw = s
	default:
		c.Add(field, "must be a number")
		return nil, d.Skip()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		c.Add(field, "must be a number")
		return nil, nil
	}
	return &v, nil
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(p.ImageURL) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, p.UpdatedAt) })
	})
}

func encodePage(e *jx.Encoder, page *product.Page) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range page.Products {
					encodeProduct(e, &page.Products[i])
				}
			})
		})
		e.Field("pagination", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("total", func(e *jx.Encoder) { e.Int(page.Pagination.Total) })
				e.Field("pages", func(e *jx.Encoder) { e.Int(page.Pagination.Pages) })
				e.Field("page", func(e *jx.Encoder) { e.Int(page.Pagination.Page) })
				e.Field("limit", func(e *jx.Encoder) { e.Int(page.Pagination.Limit) })
			})
		})
	})
}

// encodeCart writes {"items": []} for a user without a cart row.
func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		if c.ID != "" {
			e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
			e.Field("userId", func(e *jx.Encoder) { e.Str(c.UserID) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range c.Items {
					it := &c.Items[i]
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
						e.Field("cartId", func(e *jx.Encoder) { e.Str(c.ID) })
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, it.CreatedAt) })
						e.Field("product", func(e *jx.Encoder) { encodeProduct(e, &it.Product) })
					})
				}
			})
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Items {
					it := &o.Items[i]
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
						e.Field("orderId", func(e *jx.Encoder) { e.Str(o.ID) })
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Price) })
						if it.Product != nil {
							e.Field("product", func(e *jx.Encoder) { encodeProduct(e, it.Product) })
						}
					})
				}
			})
		})
	})
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(u.ID) })
		e.Field("email", func(e *jx.Encoder) { e.Str(u.Email) })
		e.Field("firstName", func(e *jx.Encoder) { e.Str(u.FirstName) })
		e.Field("lastName", func(e *jx.Encoder) { e.Str(u.LastName) })
		e.Field("role", func(e *jx.Encoder) { e.Str(string(u.Role)) })
	})
}
