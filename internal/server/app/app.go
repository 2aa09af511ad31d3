// Package app wires the ordering backend: storage, domain services, the
// HTTP handler and its middleware chain.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/munchify/db"
	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/user"
	"github.com/xenking/munchify/internal/server/auth"
	"github.com/xenking/munchify/internal/server/handler"
	"github.com/xenking/munchify/internal/server/notify"
	"github.com/xenking/munchify/internal/storage/memory"
	"github.com/xenking/munchify/internal/storage/postgres"
	"github.com/xenking/munchify/pkg/health"
	"github.com/xenking/munchify/pkg/httpmiddleware"
)

// repositories is the storage a backend runs on.
type repositories struct {
	users  user.Repository
	orders order.Repository
	promos promo.Repository
	seed   func(ctx context.Context, rules []promo.Rule) error
	close  func()
}

func openStorage(ctx context.Context, cfg *Config, h *health.Health) (*repositories, error) {
	if cfg.Storage == StorageMemory {
		store, err := memory.New()
		if err != nil {
			return nil, errors.Wrap(err, "create memory store")
		}
		return &repositories{
			users:  store,
			orders: store.Orders(),
			promos: store,
			seed: func(ctx context.Context, rules []promo.Rule) error {
				return store.PutPromos(ctx, rules...)
			},
			close: func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	h.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	promos := postgres.NewPromoRepository(pool)
	return &repositories{
		users:  postgres.NewUserRepository(pool),
		orders: postgres.NewOrderRepository(pool),
		promos: promos,
		seed: func(ctx context.Context, rules []promo.Rule) error {
			return promos.Upsert(ctx, rules, nil)
		},
		close: pool.Close,
	}, nil
}

func newMailer(cfg SMTPConfig) notify.Mailer {
	if cfg.Host == "" {
		return notify.LogMailer{}
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
}

// backend is the assembled HTTP surface and its resources.
type backend struct {
	handler http.Handler
	health  *health.Health
	close   func()
}

func newBackend(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) (*backend, error) {
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	repos, err := openStorage(ctx, cfg, healthSvc)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*backend, error) {
		repos.close()
		return nil, err
	}

	if cfg.SeedPromos {
		rules, err := db.SeedPromos()
		if err != nil {
			return fail(errors.Wrap(err, "load seed promos"))
		}
		if err := repos.seed(ctx, rules); err != nil {
			return fail(errors.Wrap(err, "seed promos"))
		}
		lg.Info("Promo codes loaded", zap.Int("count", len(rules)))
	}

	tokens, err := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return fail(errors.Wrap(err, "create token issuer"))
	}

	// Domain services.
	users := user.NewService(repos.users)
	orders := order.NewService(
		repos.orders,
		promo.NewRepoRedeemer(repos.promos),
		notify.NewConfirmations(newMailer(cfg.SMTP), cfg.SMTP.Sender),
	)

	h := handler.New(handler.Config{
		Users:  users,
		Orders: orders,
		Promos: repos.promos,
		Tokens: tokens,
		AuthLimit: httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.AuthLimit.Max,
			Window: cfg.AuthLimit.Window,
		}),
	})

	// Mux: health endpoints + API routes gated on readiness.
	api := http.NewServeMux()
	h.Register(api)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", healthSvc.Gate(api))
	routeFinder := httpmiddleware.MakeRouteFinder(api)

	return &backend{
		health: healthSvc,
		close:  repos.close,
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("munchify-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the backend.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage))

	b, err := newBackend(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	b.health.Start(ctx, 10*time.Second)
	b.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           b.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		b.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		b.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
