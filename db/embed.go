// Package db embeds the storefront schema.
package db

import _ "embed"

// Schema holds the idempotent DDL for users, catalog, carts, orders and the
// event outbox.
//
//go:embed migrations/001_schema.sql
var Schema string
