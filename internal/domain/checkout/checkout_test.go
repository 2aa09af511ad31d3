package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/cart"
	"github.com/xenking/munchify/internal/domain/catalog"
	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/session"
	"github.com/xenking/munchify/internal/events"
	"github.com/xenking/munchify/internal/failure"
	"github.com/xenking/munchify/internal/kv"
)

// --- Mock implementations ---

type mockBackend struct {
	mu       sync.Mutex
	requests []order.Request
	tokens   []string
	results  []error
	onSubmit func()
	rules    map[string]*promo.Rule
}

func (m *mockBackend) SubmitOrder(_ context.Context, token string, req order.Request) (*order.Receipt, error) {
	if m.onSubmit != nil {
		m.onSubmit()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	m.tokens = append(m.tokens, token)
	n := len(m.requests)
	if n <= len(m.results) && m.results[n-1] != nil {
		return nil, m.results[n-1]
	}
	return &order.Receipt{Message: "Order placed successfully and email sent", ID: int64(100 + n), Total: req.Total}, nil
}

func (m *mockBackend) Promo(_ context.Context, code string) (*promo.Rule, error) {
	if r, ok := m.rules[code]; ok {
		return r, nil
	}
	return nil, promo.ErrInvalidCode
}

func (m *mockBackend) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type stubIdentity struct {
	name  string
	err   error
	calls int
}

func (s *stubIdentity) WhoAmI(context.Context) (string, error) {
	s.calls++
	return s.name, s.err
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) topics() []events.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Topic
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}

// --- Helpers ---

type fixture struct {
	cart    *cart.Cart
	store   *kv.Memory
	session *session.Manager
	backend *mockBackend
	bus     *recorder
	flow    *Flow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.New([]catalog.Item{
		{ID: "A", Name: "Alpha", Price: decimal.RequireFromString("10.00")},
		{ID: "B", Name: "Beta", Price: decimal.RequireFromString("5.00")},
	})
	require.NoError(t, err)

	fx := &fixture{
		cart:    cart.New(),
		store:   kv.NewMemory(),
		backend: &mockBackend{},
		bus:     &recorder{},
	}
	fx.session = session.NewManager(fx.store, fx.bus, zap.NewNop())
	require.NoError(t, fx.session.Initialize())
	fx.flow = NewFlow(cat, fx.cart, fx.session, fx.backend, fx.bus, Config{RetryDelay: time.Millisecond})
	return fx
}

func (fx *fixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, fx.session.Login("tok", "ada"))
}

func (fx *fixture) fillForm(t *testing.T) {
	t.Helper()
	values := map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com",
		"street": "1 Analytical Way", "city": "London", "county": "Greater London",
		"zip": "N1", "country": "UK", "phone": "+44 20 0000 0000",
	}
	for k, v := range values {
		require.NoError(t, fx.flow.Form().Set(k, v))
	}
}

func (fx *fixture) fillCart() {
	fx.cart.Add("A")
	fx.cart.Add("A")
	fx.cart.Add("B")
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- Tests ---

func TestSubmit_Success(t *testing.T) {
	fx := newFixture(t)
	fx.login(t)
	fx.fillForm(t)
	fx.fillCart()

	q := fx.flow.Quote()
	assert.True(t, dec("25.00").Equal(q.Subtotal))
	assert.True(t, dec("27.00").Equal(q.GrandTotal))

	receipt, err := fx.flow.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SuccessMessage, receipt.Message)
	assert.Equal(t, "Order placed successfully and email sent", receipt.ServerMessage)
	assert.Equal(t, HomeRoute, receipt.Redirect)
	assert.Equal(t, DefaultRedirectDelay, receipt.RedirectAfter)
	assert.Equal(t, int64(101), receipt.OrderID)

	require.Len(t, fx.backend.requests, 1)
	req := fx.backend.requests[0]
	assert.Equal(t, "tok", fx.backend.tokens[0])
	assert.Equal(t, "ada", req.Contact.Username)
	assert.Equal(t, "Ada", req.Contact.FirstName)
	assert.True(t, dec("27").Equal(req.Total))
	assert.Empty(t, req.PromoCode)
	assert.Equal(t, []order.Item{
		{ID: "A", Name: "Alpha", Quantity: 2, Price: dec("10.00")},
		{ID: "B", Name: "Beta", Quantity: 1, Price: dec("5.00")},
	}, req.Items)

	assert.True(t, fx.cart.Empty())
	assert.Equal(t, order.Contact{}, fx.flow.Form().Values())
	assert.Contains(t, fx.bus.topics(), events.OrderPlaced)
}

func TestSubmit_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, fx *fixture)
		wantErr error
		check   func(t *testing.T, err error)
	}{
		{
			name: "logged out",
			setup: func(t *testing.T, fx *fixture) {
				fx.fillForm(t)
				fx.fillCart()
			},
			wantErr: failure.ErrNotLoggedIn,
		},
		{
			name: "logged out is checked before empty cart",
			setup: func(t *testing.T, fx *fixture) {
			},
			wantErr: failure.ErrNotLoggedIn,
		},
		{
			name: "empty cart",
			setup: func(t *testing.T, fx *fixture) {
				fx.login(t)
				fx.fillForm(t)
			},
			wantErr: failure.ErrEmptyCart,
		},
		{
			name: "only unknown items",
			setup: func(t *testing.T, fx *fixture) {
				fx.login(t)
				fx.fillForm(t)
				fx.cart.Add("ghost")
			},
			wantErr: failure.ErrEmptyCart,
		},
		{
			name: "invalid form",
			setup: func(t *testing.T, fx *fixture) {
				fx.login(t)
				fx.fillCart()
				require.NoError(t, fx.flow.Form().Set("firstName", "Ada"))
				require.NoError(t, fx.flow.Form().Set("email", "not-an-email"))
			},
			check: func(t *testing.T, err error) {
				var vErr *failure.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.True(t, vErr.Has("email"))
				assert.True(t, vErr.Has("lastName"))
				assert.False(t, vErr.Has("firstName"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			tt.setup(t, fx)
			before := fx.cart.Lines()

			_, err := fx.flow.Submit(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
			assert.Zero(t, fx.backend.calls(), "no network call on local failure")
			assert.Equal(t, before, fx.cart.Lines())
		})
	}
}

func TestSubmit_Rejection(t *testing.T) {
	fx := newFixture(t)
	fx.login(t)
	fx.fillForm(t)
	fx.fillCart()
	fx.backend.results = []error{&failure.RejectionError{Status: 400, Message: "Invalid order: cart is empty or total is zero."}}

	_, err := fx.flow.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Invalid order: cart is empty or total is zero.", failure.Message(err))

	assert.Equal(t, 1, fx.backend.calls())
	assert.Equal(t, 3, fx.cart.Count())
	assert.Equal(t, "Ada", fx.flow.Form().Get("firstName"))
	assert.True(t, fx.session.State().LoggedIn)
	assert.NotContains(t, fx.bus.topics(), events.OrderPlaced)
}

func TestSubmit_Unauthorized(t *testing.T) {
	fx := newFixture(t)
	fx.login(t)
	fx.fillForm(t)
	fx.fillCart()
	fx.backend.results = []error{errors.Wrap(failure.ErrUnauthorized, "POST /orders")}

	_, err := fx.flow.Submit(context.Background())
	require.ErrorIs(t, err, failure.ErrUnauthorized)

	assert.False(t, fx.session.State().LoggedIn)
	_, ok, _ := fx.store.Get(session.KeyToken)
	assert.False(t, ok)
	_, ok, _ = fx.store.Get(session.KeyUsername)
	assert.False(t, ok)
	assert.Equal(t, 3, fx.cart.Count(), "cart is not tied to identity")
}

func TestSubmit_TransientRetry(t *testing.T) {
	t.Run("retried once then succeeds", func(t *testing.T) {
		fx := newFixture(t)
		fx.login(t)
		fx.fillForm(t)
		fx.fillCart()
		fx.backend.results = []error{failure.ErrTransient}

		_, err := fx.flow.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, fx.backend.calls())
		assert.True(t, fx.cart.Empty())
	})
	t.Run("second failure surfaces", func(t *testing.T) {
		fx := newFixture(t)
		fx.login(t)
		fx.fillForm(t)
		fx.fillCart()
		fx.backend.results = []error{failure.ErrTransient, failure.ErrTransient, nil}

		_, err := fx.flow.Submit(context.Background())
		require.ErrorIs(t, err, failure.ErrTransient)
		assert.Equal(t, 2, fx.backend.calls())
		assert.Equal(t, 3, fx.cart.Count())
	})
}

func TestSubmit_SnapshotIsolation(t *testing.T) {
	fx := newFixture(t)
	fx.login(t)
	fx.fillForm(t)
	fx.fillCart()

	fx.backend.onSubmit = func() {
		// The user keeps shopping while the request is in flight.
		fx.cart.Add("B")
		fx.cart.Remove("A")
	}
	fx.backend.results = []error{&failure.RejectionError{Status: 500}}

	_, err := fx.flow.Submit(context.Background())
	require.Error(t, err)

	req := fx.backend.requests[0]
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.Equal(t, 1, req.Items[1].Quantity)
	assert.True(t, dec("27").Equal(req.Total))
}

func TestSubmit_Concurrent(t *testing.T) {
	fx := newFixture(t)
	fx.login(t)
	fx.fillForm(t)
	fx.fillCart()

	entered := make(chan struct{})
	release := make(chan struct{})
	fx.backend.onSubmit = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := fx.flow.Submit(context.Background())
		done <- err
	}()

	<-entered
	assert.True(t, fx.flow.Submitting())
	_, err := fx.flow.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitting)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, fx.flow.Submitting())
	assert.Equal(t, 1, fx.backend.calls())
}

func TestApplyPromo(t *testing.T) {
	fx := newFixture(t)
	fx.login(t)
	fx.fillForm(t)
	fx.fillCart()
	fx.backend.rules = map[string]*promo.Rule{
		"TENOFF": {Code: "TENOFF", Kind: promo.KindPercentage, Value: dec("10"), Description: "10% off"},
		"BIG":    {Code: "BIG", Kind: promo.KindFixed, Value: dec("5"), MinItems: 10},
	}
	ctx := context.Background()

	_, err := fx.flow.ApplyPromo(ctx, "unknown")
	require.ErrorIs(t, err, promo.ErrInvalidCode)

	_, err = fx.flow.ApplyPromo(ctx, "big")
	require.ErrorIs(t, err, promo.ErrInvalidCode)
	assert.Empty(t, fx.flow.Quote().PromoCode)

	q, err := fx.flow.ApplyPromo(ctx, " tenoff ")
	require.NoError(t, err)
	assert.Equal(t, "TENOFF", q.PromoCode)
	assert.True(t, dec("2.5").Equal(q.Discount))
	assert.True(t, dec("24.5").Equal(q.GrandTotal))

	_, err = fx.flow.Submit(ctx)
	require.NoError(t, err)
	req := fx.backend.requests[0]
	assert.Equal(t, "TENOFF", req.PromoCode)
	assert.True(t, dec("24.5").Equal(req.Total))

	assert.Empty(t, fx.flow.Quote().PromoCode, "promo is cleared after a successful order")
}

func TestQuote_PromoNoLongerApplies(t *testing.T) {
	fx := newFixture(t)
	fx.fillCart()
	fx.backend.rules = map[string]*promo.Rule{
		"THREE": {Code: "THREE", Kind: promo.KindFixed, Value: dec("4"), MinItems: 3},
	}

	_, err := fx.flow.ApplyPromo(context.Background(), "THREE")
	require.NoError(t, err)
	assert.True(t, dec("4").Equal(fx.flow.Quote().Discount))

	fx.cart.Remove("B")
	q := fx.flow.Quote()
	assert.ErrorIs(t, q.PromoErr, promo.ErrInvalidCode)
	assert.True(t, q.Discount.IsZero())
	assert.True(t, dec("22").Equal(q.GrandTotal))

	fx.flow.ClearPromo()
	assert.NoError(t, fx.flow.Quote().PromoErr)
}

func TestQuote_Empty(t *testing.T) {
	fx := newFixture(t)
	q := fx.flow.Quote()
	assert.True(t, q.Subtotal.IsZero())
	assert.True(t, q.DeliveryFee.IsZero())
	assert.True(t, q.GrandTotal.IsZero())
}

func TestForm(t *testing.T) {
	var f Form
	require.NoError(t, f.Set("FIRSTNAME", "  Ada "))
	assert.Equal(t, "Ada", f.Get("firstName"))
	assert.Equal(t, "Ada", f.Get("FIRSTNAME"))
	assert.Equal(t, "Ada", f.Get("firstname"))
	assert.Empty(t, f.Get("nickname"))

	err := f.Set("nickname", "x")
	require.ErrorIs(t, err, ErrUnknownField)

	f.Fill(order.Contact{City: "Paris", Username: "ignored"})
	assert.Equal(t, order.Contact{City: "Paris"}, f.Values())

	f.Reset()
	assert.Equal(t, order.Contact{}, f.Values())
}

func TestSubmit_UsernameFallback(t *testing.T) {
	t.Run("Resolved", func(t *testing.T) {
		fx := newFixture(t)
		id := &stubIdentity{name: "ada"}
		fx.flow.cfg.Identity = id
		require.NoError(t, fx.session.Login("tok", ""))
		fx.fillForm(t)
		fx.fillCart()

		_, err := fx.flow.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, id.calls)
		require.Len(t, fx.backend.requests, 1)
		assert.Equal(t, "ada", fx.backend.requests[0].Contact.Username)
	})
	t.Run("NotResolvedOnLocalFailure", func(t *testing.T) {
		fx := newFixture(t)
		id := &stubIdentity{name: "ada"}
		fx.flow.cfg.Identity = id
		require.NoError(t, fx.session.Login("tok", ""))
		fx.fillForm(t)

		_, err := fx.flow.Submit(context.Background())
		require.ErrorIs(t, err, failure.ErrEmptyCart)
		assert.Zero(t, id.calls)
	})
	t.Run("Unauthorized", func(t *testing.T) {
		fx := newFixture(t)
		fx.flow.cfg.Identity = &stubIdentity{err: failure.ErrUnauthorized}
		require.NoError(t, fx.session.Login("tok", ""))
		fx.fillForm(t)
		fx.fillCart()
		before := fx.cart.Lines()

		_, err := fx.flow.Submit(context.Background())
		require.ErrorIs(t, err, failure.ErrUnauthorized)
		assert.Zero(t, fx.backend.calls())
		assert.Equal(t, before, fx.cart.Lines())
	})
	t.Run("NoIdentity", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.session.Login("tok", ""))
		fx.fillForm(t)
		fx.fillCart()

		_, err := fx.flow.Submit(context.Background())
		require.ErrorIs(t, err, failure.ErrNotLoggedIn)
	})
}
