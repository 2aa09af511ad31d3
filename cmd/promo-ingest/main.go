// Command promo-ingest imports promo codes found in gzip-compressed code
// dumps into the promos table.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/ingest"
	"github.com/xenking/munchify/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		minFiles    int
		dryRun      bool
	)
	flag.StringVar(&dataDir, "data-dir", "data", "directory containing the code dumps")
	flag.StringVar(&pattern, "pattern", "*.gz", "glob selecting the dumps inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&minFiles, "min-files", ingest.DefaultOptions.MinFiles, "number of dumps a code must appear in")
	flag.BoolVar(&dryRun, "dry-run", false, "report accepted codes without writing them")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" && !dryRun {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		files, err := filepath.Glob(filepath.Join(dataDir, pattern))
		if err != nil {
			return errors.Wrap(err, "list dumps")
		}
		sort.Strings(files)

		opts := ingest.DefaultOptions
		opts.MinFiles = minFiles
		codes, err := ingest.NewScanner(opts).Scan(ctx, files)
		if err != nil {
			return errors.Wrap(err, "scan dumps")
		}
		lg.Info("Accepted codes", zap.Int("count", len(codes)), zap.Int("files", len(files)))
		if dryRun || len(codes) == 0 {
			return nil
		}

		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}

		rules := ingest.Rules(codes)
		if err := postgres.NewPromoRepository(pool).Upsert(ctx, rules, func(done int) {
			lg.Info("Write progress", zap.Int("written", done), zap.Int("total", len(rules)))
		}); err != nil {
			return errors.Wrap(err, "write promos")
		}
		lg.Info("Promo ingest completed")
		return nil
	})
}
