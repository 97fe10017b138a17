package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Role gates access to catalog mutation.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// User is a storefront account.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	PasswordHash string
}

// Repository provides user lookups.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
