// Package storefront wires the client-side state containers together: one
// shared cart, one session, one event bus, and the flows built on them.
package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/account"
	"github.com/xenking/munchify/internal/domain/cart"
	"github.com/xenking/munchify/internal/domain/catalog"
	"github.com/xenking/munchify/internal/domain/checkout"
	"github.com/xenking/munchify/internal/domain/history"
	"github.com/xenking/munchify/internal/domain/session"
	"github.com/xenking/munchify/internal/events"
	"github.com/xenking/munchify/internal/kv"
)

// Backend is everything the storefront needs from the REST API.
type Backend interface {
	checkout.Backend
	account.Backend
	history.Fetcher
}

// Config tunes the storefront flows.
type Config struct {
	RetryDelay    time.Duration
	RedirectDelay time.Duration
}

// Store is the composition root handed to front-ends.
type Store struct {
	catalog  *catalog.Catalog
	cart     *cart.Cart
	session  *session.Manager
	bus      *events.Bus
	checkout *checkout.Flow
	account  *account.Service
	backend  Backend
	lg       *zap.Logger

	refresh chan struct{}
	unsubs  []func()

	mu   sync.Mutex
	view *history.View

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds a Store and loads the persisted session from store.
func New(cat *catalog.Catalog, store kv.Store, b Backend, lg *zap.Logger, cfg Config) (*Store, error) {
	bus := events.NewBus()
	sess := session.NewManager(store, bus, lg.Named("session"))
	if err := sess.Initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize session")
	}

	c := cart.New()
	acct := account.NewService(b, sess, cfg.RetryDelay)
	s := &Store{
		catalog: cat,
		cart:    c,
		session: sess,
		bus:     bus,
		checkout: checkout.NewFlow(cat, c, sess, b, bus, checkout.Config{
			Identity:      acct,
			RetryDelay:    cfg.RetryDelay,
			RedirectDelay: cfg.RedirectDelay,
		}),
		account: acct,
		backend: b,
		lg:      lg,
		refresh: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}

	s.unsubs = append(s.unsubs,
		c.Subscribe(func(ch cart.Change) {
			bus.Publish(events.Event{Topic: events.CartChanged, Payload: ch})
		}),
		bus.Subscribe(events.SessionChanged, func(events.Event) { s.requestRefresh() }),
		bus.Subscribe(events.OrderPlaced, func(events.Event) { s.requestRefresh() }),
	)
	return s, nil
}

// Catalog returns the menu.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// Cart returns the shared cart.
func (s *Store) Cart() *cart.Cart { return s.cart }

// Session returns the session manager.
func (s *Store) Session() *session.Manager { return s.session }

// Bus returns the event bus.
func (s *Store) Bus() *events.Bus { return s.bus }

// Checkout returns the order submission flow.
func (s *Store) Checkout() *checkout.Flow { return s.checkout }

// Account returns the account service.
func (s *Store) Account() *account.Service { return s.account }

// OpenHistory creates a fresh order history view, closing the previous one.
// The view is refreshed on session changes and placed orders once it has been
// loaded.
func (s *Store) OpenHistory() *history.View {
	v := history.NewView(s.backend, s.session)

	s.mu.Lock()
	prev := s.view
	s.view = v
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return v
}

// CloseHistory tears down the current history view, if any.
func (s *Store) CloseHistory() {
	s.mu.Lock()
	v := s.view
	s.view = nil
	s.mu.Unlock()

	if v != nil {
		v.Close()
	}
}

func (s *Store) requestRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// Start runs the history refresh worker until ctx is done or Close is called.
// Close cancels a refresh that is still in flight.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx)
		}()
	})
}

func (s *Store) run(ctx context.Context) {
	lg := zctx.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-s.refresh:
		}

		s.mu.Lock()
		v := s.view
		s.mu.Unlock()
		if v == nil || !v.Mounted() {
			continue
		}

		snap := v.Load(ctx)
		lg.Debug("History refreshed", zap.Stringer("status", snap.Status))
	}
}

// Close closes the history view, stops the worker and detaches
// subscriptions. A refresh in flight is cancelled and its result dropped.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.CloseHistory()

		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		s.wg.Wait()
		for _, fn := range s.unsubs {
			fn()
		}
	})
}
