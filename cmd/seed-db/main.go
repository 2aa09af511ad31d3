// Command seed-db prepares a database: it runs the migrations, loads the
// promo codes and optionally creates a demo account.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/munchify/db"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/user"
	"github.com/xenking/munchify/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	promosFile   string
	demoUser     string
	demoEmail    string
	demoPassword string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.promosFile, "promos-file", "", "YAML promo list replacing the bundled one")
	flag.StringVar(&opts.demoUser, "demo-username", "", "create a demo account with this username")
	flag.StringVar(&opts.demoEmail, "demo-email", "demo@munchify.local", "email of the demo account")
	flag.StringVar(&opts.demoPassword, "demo-password", "", "password of the demo account (or MUNCH_SEED_DEMO_PASSWORD env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.demoPassword == "" {
		opts.demoPassword = os.Getenv("MUNCH_SEED_DEMO_PASSWORD")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		return run(ctx, lg, opts)
	})
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	if opts.databaseURL == "" {
		return errors.New("database URL is required: set --database-url or DATABASE_URL")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	rules, err := loadPromos(opts.promosFile)
	if err != nil {
		return err
	}
	if err := postgres.NewPromoRepository(pool).Upsert(ctx, rules, nil); err != nil {
		return errors.Wrap(err, "seed promos")
	}
	for _, r := range rules {
		lg.Info("Upserted promo", zap.String("code", r.Code), zap.String("description", r.Description))
	}

	if opts.demoUser == "" {
		return nil
	}
	users := user.NewService(postgres.NewUserRepository(pool))
	u, err := users.Register(ctx, opts.demoUser, opts.demoEmail, opts.demoPassword)
	switch {
	case errors.Is(err, user.ErrDuplicate):
		lg.Info("Demo account already exists", zap.String("email", opts.demoEmail))
	case err != nil:
		return errors.Wrap(err, "create demo account")
	default:
		lg.Info("Created demo account", zap.Int64("id", u.ID), zap.String("username", u.Username))
	}
	return nil
}

func loadPromos(path string) ([]promo.Rule, error) {
	if path == "" {
		return db.SeedPromos()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read promos file")
	}
	return db.ParsePromos(data)
}
