package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		capacity    uint
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing product files")
	flag.StringVar(&pattern, "pattern", "*.ndjson.gz", "glob of gzip NDJSON product files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "expected-products", 1_000_000, "expected catalog size, sizes the duplicate filter")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, capacity); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, capacity uint) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "match %s", glob)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := newImporter(postgres.NewProductRepository(pool), capacity)
	stats, err := imp.Run(ctx, files)
	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Int("read", stats.Read),
		slog.Int("invalid", stats.Invalid),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("inserted", stats.Inserted),
	)
	return err
}
