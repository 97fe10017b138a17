package product

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/validation"
)

// Upper bounds of the price NUMERIC(12,2) and stock INTEGER columns.
var (
	MaxPrice = decimal.RequireFromString("9999999999.99")
	MaxStock = math.MaxInt32
)

// Validate checks a complete product definition.
func (in Input) Validate() error {
	var c validation.Collector
	checkText(&c, "name", in.Name)
	checkText(&c, "description", in.Description)
	checkText(&c, "category", in.Category)
	checkPrice(&c, in.Price)
	checkStock(&c, in.Stock)
	checkImageURL(&c, in.ImageURL)
	return c.Err()
}

// Validate checks only the fields present in the patch.
func (p Patch) Validate() error {
	var c validation.Collector
	if p.Name != nil {
		checkText(&c, "name", *p.Name)
	}
	if p.Description != nil {
		checkText(&c, "description", *p.Description)
	}
	if p.Category != nil {
		checkText(&c, "category", *p.Category)
	}
	if p.Price != nil {
		checkPrice(&c, *p.Price)
	}
	if p.Stock != nil {
		checkStock(&c, *p.Stock)
	}
	if p.ImageURL != nil {
		checkImageURL(&c, *p.ImageURL)
	}
	return c.Err()
}

func checkText(c *validation.Collector, field, v string) {
	c.Check(strings.TrimSpace(v) != "", field, "must not be empty")
}

func checkPrice(c *validation.Collector, v decimal.Decimal) {
	switch {
	case v.IsNegative():
		c.Add("price", "must be greater than or equal to 0")
	case v.Round(2).GreaterThan(MaxPrice):
		c.Add("price", "must not exceed "+MaxPrice.StringFixed(2))
	}
}

func checkStock(c *validation.Collector, v int) {
	switch {
	case v < 0:
		c.Add("stock", "must be a non-negative integer")
	case v > MaxStock:
		c.Add("stock", "must not exceed "+strconv.Itoa(MaxStock))
	}
}

func checkImageURL(c *validation.Collector, v string) {
	u, err := url.Parse(v)
	ok := err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	c.Check(ok, "imageUrl", "must be a valid URL")
}
