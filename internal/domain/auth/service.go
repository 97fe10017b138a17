package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/user"
)

var _ Verifier = (*Service)(nil)

// Session is the result of a successful sign-in.
type Session struct {
	Token string
	User  *user.User
}

// Service verifies bearer tokens against live user rows and signs users in.
type Service struct {
	users  user.Repository
	tokens *Tokens
}

// NewService creates an auth Service.
func NewService(users user.Repository, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Verify parses token and resolves it to the current user row. The role is
// taken from the row, so demotions apply to tokens issued earlier.
func (s *Service) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, errors.Wrap(err, "resolve token user")
	}

	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// SignIn checks the password of the account registered under email and
// issues a token for it.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}

// Introspect returns the identity claimed by token without consulting the
// user store.
func (s *Service) Introspect(token string) (Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}
