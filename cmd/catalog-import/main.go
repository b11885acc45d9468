// Command catalog-import bulk-loads a product catalog from one or more
// gzip-compressed NDJSON dumps (one product per line). Files are
// decompressed and parsed concurrently; rows stream into PostgreSQL via
// COPY.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bazarhub/checkout/internal/repository"
)

const progressEvery = 100_000

type productRow struct {
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	Description  string           `json:"description"`
	ImageURL     string           `json:"image_url"`
	Stock        int              `json:"stock_quantity"`
	CostPrice    decimal.Decimal  `json:"cost_price"`
	RegularPrice decimal.Decimal  `json:"regular_price"`
	SalePrice    *decimal.Decimal `json:"sale_price"`
	IsPublished  *bool            `json:"is_published"`
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: catalog-import [flags] dump1.ndjson.gz [dump2.ndjson.gz ...]")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	rows := make(chan productRow, 1024)

	g, ctx := errgroup.WithContext(ctx)

	// Parsers: one goroutine per dump file.
	parsers, parseCtx := errgroup.WithContext(ctx)
	for _, f := range files {
		parsers.Go(parseFile(parseCtx, f, rows))
	}
	g.Go(func() error {
		defer close(rows)
		return parsers.Wait()
	})

	// Single writer streams rows into the products table via COPY.
	g.Go(func() error {
		return copyProducts(ctx, pool, rows)
	})

	return g.Wait()
}

// parseFile streams one gzipped NDJSON file and sends parsed rows to out.
func parseFile(ctx context.Context, path string, out chan<- productRow) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var count uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			var row productRow
			if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
				return errors.Wrapf(err, "parse line %d of %s", count+1, path)
			}

			select {
			case out <- row:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress", slog.String("file", path), slog.Uint64("rows", count))
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("parse complete", slog.String("file", path), slog.Uint64("rows", count))
		return nil
	}
}

func copyProducts(ctx context.Context, pool *pgxpool.Pool, rows <-chan productRow) error {
	copied, err := pool.CopyFrom(ctx,
		pgx.Identifier{"products"},
		[]string{
			"id", "name", "slug", "description", "image_url",
			"stock_quantity", "cost_price", "regular_price", "sale_price", "is_published",
		},
		pgx.CopyFromFunc(func() ([]any, error) {
			select {
			case row, ok := <-rows:
				if !ok {
					return nil, nil
				}
				var description, image any
				if row.Description != "" {
					description = row.Description
				}
				if row.ImageURL != "" {
					image = row.ImageURL
				}
				published := true
				if row.IsPublished != nil {
					published = *row.IsPublished
				}
				return []any{
					uuid.New(), row.Name, row.Slug, description, image,
					row.Stock, row.CostPrice, row.RegularPrice, row.SalePrice, published,
				}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	)
	if err != nil {
		return errors.Wrap(err, "copy products")
	}

	slog.Info("copied products", slog.Int64("rows", copied))
	return nil
}
