package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/user"
)

const (
	userColumns = `id, email, first_name, last_name, role, password_hash`

	getUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	upsertUserSQL = `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ((lower(email))) DO UPDATE SET
			first_name    = EXCLUDED.first_name,
			last_name     = EXCLUDED.last_name,
			role          = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash
		RETURNING id`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns the user registered under email, compared case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// Upsert inserts u or updates the profile of the user holding its email.
// u.ID is replaced by the stored id.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	err := r.pool.QueryRow(ctx, upsertUserSQL,
		u.ID, u.Email, u.FirstName, u.LastName, string(u.Role), u.PasswordHash,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, sql, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", arg, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (user.User, error) {
		var (
			u    user.User
			role string
		)
		err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &u.PasswordHash)
		u.Role = user.Role(role)
		return u, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", arg, err)
	}
	return &u, nil
}
