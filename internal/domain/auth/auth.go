// Package auth resolves bearer tokens to identities and issues tokens on
// sign-in.
package auth

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/user"
)

var (
	ErrUnauthenticated    = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID string
	Email  string
	Role   user.Role
}

// IsAdmin reports whether the identity may mutate the catalog.
func (i Identity) IsAdmin() bool {
	return i.Role == user.RoleAdmin
}

// Verifier resolves a bearer token to an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by NewContext.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
