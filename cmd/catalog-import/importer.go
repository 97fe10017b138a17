package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	bloomFPR      = 0.001
	maxLineBytes  = 1 << 20
	progressEvery = 10_000
)

// catalogStore is the slice of the product repository the import needs.
type catalogStore interface {
	List(ctx context.Context, f product.Filter) ([]product.Product, error)
	Exists(ctx context.Context, name, category string) (bool, error)
	Create(ctx context.Context, p *product.Product) error
}

// record is one decoded NDJSON line.
type record struct {
	id   string
	in   product.Input
	file string
	line int
}

type stats struct {
	Read       int
	Invalid    int
	Duplicates int
	Inserted   int
}

// importer streams product files concurrently and inserts every valid,
// previously unseen (name, category) pair through a single writer.
type importer struct {
	store  catalogStore
	filter *bloom.BloomFilter
}

func newImporter(store catalogStore, capacity uint) *importer {
	return &importer{
		store:  store,
		filter: bloom.NewWithEstimates(max(capacity, 1), bloomFPR),
	}
}

func (imp *importer) Run(ctx context.Context, files []string) (stats, error) {
	var st stats

	if err := imp.loadExisting(ctx); err != nil {
		return st, errors.Wrap(err, "load existing catalog")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan record, 1024)
	readers, rctx := errgroup.WithContext(ctx)
	invalid := make([]int, len(files))
	read := make([]int, len(files))
	for i, path := range files {
		readers.Go(func() error {
			n, bad, err := readFile(rctx, path, records)
			read[i], invalid[i] = n, bad
			return err
		})
	}

	var readErr error
	go func() {
		readErr = readers.Wait()
		close(records)
	}()

	writeErr := imp.write(ctx, records, &st)
	if writeErr != nil {
		cancel()
	}
	for range records {
	}

	for i := range files {
		st.Read += read[i]
		st.Invalid += invalid[i]
	}
	if readErr != nil {
		return st, readErr
	}
	return st, writeErr
}

// loadExisting seeds the filter with the keys already in the catalog.
func (imp *importer) loadExisting(ctx context.Context) error {
	for page := 1; ; page++ {
		f := product.Filter{Page: page, Limit: product.MaxLimit}.Normalized()
		rows, err := imp.store.List(ctx, f)
		if err != nil {
			return err
		}
		for _, p := range rows {
			imp.filter.AddString(dedupKey(p.Name, p.Category))
		}
		if len(rows) < f.Limit {
			return nil
		}
	}
}

func (imp *importer) write(ctx context.Context, records <-chan record, st *stats) error {
	for r := range records {
		dup, err := imp.seen(ctx, r.in)
		if err != nil {
			return err
		}
		if dup {
			st.Duplicates++
			continue
		}

		p := &product.Product{
			ID:          r.id,
			Name:        strings.TrimSpace(r.in.Name),
			Description: strings.TrimSpace(r.in.Description),
			Price:       r.in.Price.Round(2),
			Stock:       r.in.Stock,
			Category:    strings.TrimSpace(r.in.Category),
			ImageURL:    strings.TrimSpace(r.in.ImageURL),
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if err := imp.store.Create(ctx, p); err != nil {
			return errors.Wrapf(err, "%s:%d", r.file, r.line)
		}
		imp.filter.AddString(dedupKey(p.Name, p.Category))

		st.Inserted++
		if st.Inserted%progressEvery == 0 {
			slog.Info("import progress", slog.Int("inserted", st.Inserted))
		}
	}
	return nil
}

// seen reports whether in duplicates a stored product. A filter miss is
// definitive; a hit is confirmed against the store.
func (imp *importer) seen(ctx context.Context, in product.Input) (bool, error) {
	if !imp.filter.TestString(dedupKey(in.Name, in.Category)) {
		return false, nil
	}
	return imp.store.Exists(ctx, strings.TrimSpace(in.Name), strings.TrimSpace(in.Category))
}

func dedupKey(name, category string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "\x1f" + strings.ToLower(strings.TrimSpace(category))
}

// readFile decodes and validates each line of a gzip NDJSON file. Invalid
// lines are logged and counted, not fatal.
func readFile(ctx context.Context, path string, out chan<- record) (read, invalid int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		read++

		id, in, err := decodeRecord(raw)
		if err == nil {
			err = in.Validate()
		}
		if err != nil {
			invalid++
			slog.Warn("skipping product",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			continue
		}

		select {
		case out <- record{id: id, in: in, file: path, line: line}:
		case <-ctx.Done():
			return read, invalid, ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return read, invalid, errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("file complete", slog.String("file", path), slog.Int("read", read), slog.Int("invalid", invalid))
	return read, invalid, nil
}

// decodeRecord reads one product object. Unknown keys are ignored; price
// may be a number or a numeric string.
func decodeRecord(raw []byte) (string, product.Input, error) {
	var (
		id string
		in product.Input
	)
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			id, err = d.Str()
		case "name":
			in.Name, err = d.Str()
		case "description":
			in.Description, err = d.Str()
		case "category":
			in.Category, err = d.Str()
		case "imageUrl":
			in.ImageURL, err = d.Str()
		case "stock":
			in.Stock, err = d.Int()
		case "price":
			in.Price, err = decodePrice(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return "", product.Input{}, errors.Wrap(err, "decode product")
	}
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return "", product.Input{}, errors.Wrap(err, "id")
		}
	}
	return id, in, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.New("must be a number")
	}
	return decimal.NewFromString(raw)
}
