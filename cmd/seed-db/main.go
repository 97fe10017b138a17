package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl"`
}

type seedUser struct {
	email     string
	password  string
	firstName string
	lastName  string
	role      user.Role
}

func main() {
	var (
		databaseURL      string
		productsFile     string
		adminEmail       string
		adminPassword    string
		customerEmail    string
		customerPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&adminEmail, "admin-email", "admin@storefront.local", "email of the seeded admin")
	flag.StringVar(&adminPassword, "admin-password", "", "password of the seeded admin (or STOREFRONT_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&customerEmail, "customer-email", "customer@storefront.local", "email of the seeded customer")
	flag.StringVar(&customerPassword, "customer-password", "", "password of the seeded customer (or STOREFRONT_SEED_CUSTOMER_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("STOREFRONT_SEED_ADMIN_PASSWORD")
	}
	if customerPassword == "" {
		customerPassword = os.Getenv("STOREFRONT_SEED_CUSTOMER_PASSWORD")
	}

	var users []seedUser
	if adminPassword != "" {
		users = append(users, seedUser{email: adminEmail, password: adminPassword, firstName: "Store", lastName: "Admin", role: user.RoleAdmin})
	}
	if customerPassword != "" {
		users = append(users, seedUser{email: customerEmail, password: customerPassword, firstName: "Jane", lastName: "Customer", role: user.RoleCustomer})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, users); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, users []seedUser) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedUsers(ctx, postgres.NewUserRepository(pool), users); err != nil {
		return errors.Wrap(err, "seed users")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		in := product.Input{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Stock,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
		}
		if err := in.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}

		row := &product.Product{
			ID:          p.ID,
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price.Round(2),
			Stock:       in.Stock,
			Category:    in.Category,
			ImageURL:    in.ImageURL,
		}
		if row.ID == "" {
			row.ID = uuid.New().String()
		}
		if err := repo.Upsert(ctx, row); err != nil {
			return errors.Wrapf(err, "upsert product %s", row.ID)
		}

		slog.Info("upserted product", slog.String("id", row.ID), slog.String("name", row.Name))
	}

	return nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository, users []seedUser) error {
	if len(users) == 0 {
		slog.Warn("no user passwords given, skipping users")
		return nil
	}

	for _, su := range users {
		hash, err := auth.HashPassword(su.password)
		if err != nil {
			return err
		}

		u := &user.User{
			ID:           uuid.New().String(),
			Email:        su.email,
			FirstName:    su.firstName,
			LastName:     su.lastName,
			Role:         su.role,
			PasswordHash: hash,
		}
		if err := repo.Upsert(ctx, u); err != nil {
			return errors.Wrapf(err, "upsert user %s", su.email)
		}

		slog.Info("upserted user", slog.String("id", u.ID), slog.String("email", u.Email), slog.String("role", string(u.Role)))
	}

	return nil
}
