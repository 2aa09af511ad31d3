// Package checkout implements order submission: it composes the cart, the
// session and the contact form into an order request and resets the cart once
// the backend acknowledges it.
package checkout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/cart"
	"github.com/xenking/munchify/internal/domain/catalog"
	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/session"
	"github.com/xenking/munchify/internal/events"
	"github.com/xenking/munchify/internal/failure"
	"github.com/xenking/munchify/internal/retry"
)

// ErrSubmitting is returned when a submission is already in flight.
var ErrSubmitting = errors.New("order submission already in progress")

const (
	// HomeRoute is where the client navigates after a successful order.
	HomeRoute = "/"
	// DefaultRedirectDelay is how long the confirmation is shown before navigating.
	DefaultRedirectDelay = 2 * time.Second
	// SuccessMessage is shown after a successful order.
	SuccessMessage = "Order placed successfully!"
	// UnknownItemName labels cart entries missing from the catalog.
	UnknownItemName = "Unknown"
)

// Backend is the subset of the REST API used by checkout.
type Backend interface {
	SubmitOrder(ctx context.Context, token string, req order.Request) (*order.Receipt, error)
	Promo(ctx context.Context, code string) (*promo.Rule, error)
}

// Session is the subset of the session manager used by checkout.
type Session interface {
	State() session.State
	HandleUnauthorized() error
}

// Identity resolves the username of a session that only has a token.
type Identity interface {
	WhoAmI(ctx context.Context) (string, error)
}

// Config tunes the flow.
type Config struct {
	// Identity, if set, fills in a username missing from the session.
	// Without it such a session counts as logged out.
	Identity Identity
	// RetryDelay is the pause before the single retry of a transient failure.
	RetryDelay time.Duration
	// RedirectDelay is carried in the receipt for the front-end.
	RedirectDelay time.Duration
}

// Receipt is the result of a successful submission.
type Receipt struct {
	OrderID       int64
	Total         decimal.Decimal
	Message       string
	ServerMessage string
	Redirect      string
	RedirectAfter time.Duration
}

// Quote is the current price breakdown including the attached promo code.
type Quote struct {
	order.Quote
	PromoCode        string
	PromoDescription string
	// PromoErr is set when the attached code does not apply to the current cart.
	PromoErr error
}

// Flow is the order submission flow.
type Flow struct {
	catalog  *catalog.Catalog
	cart     *cart.Cart
	session  Session
	backend  Backend
	bus      events.Publisher
	form     *Form
	validate *validator.Validate
	cfg      Config
	now      func() time.Time

	submitting atomic.Bool

	mu    sync.Mutex
	promo *promo.Rule
}

// NewFlow creates a Flow over the shared cart and session.
func NewFlow(
	cat *catalog.Catalog,
	c *cart.Cart,
	s Session,
	b Backend,
	bus events.Publisher,
	cfg Config,
) *Flow {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = retry.DefaultDelay
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = DefaultRedirectDelay
	}
	return &Flow{
		catalog:  cat,
		cart:     c,
		session:  s,
		backend:  b,
		bus:      bus,
		form:     &Form{},
		validate: failure.NewValidator(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Form returns the contact form.
func (f *Flow) Form() *Form { return f.form }

// Submitting reports whether a submission is in flight.
func (f *Flow) Submitting() bool { return f.submitting.Load() }

// Quote prices the current cart.
func (f *Flow) Quote() Quote {
	f.mu.Lock()
	rule := f.promo
	f.mu.Unlock()

	return f.quote(f.snapshot(), rule)
}

// ApplyPromo looks up code and attaches it to the checkout if it applies to
// the current cart.
func (f *Flow) ApplyPromo(ctx context.Context, code string) (Quote, error) {
	code = promo.NormalizeCode(code)
	if code == "" {
		return f.Quote(), promo.ErrInvalidCode
	}

	rule, err := f.backend.Promo(ctx, code)
	if err != nil {
		return f.Quote(), errors.Wrap(err, "lookup promo")
	}

	q := f.quote(f.snapshot(), rule)
	if q.PromoErr != nil {
		return f.Quote(), q.PromoErr
	}

	f.mu.Lock()
	f.promo = rule
	f.mu.Unlock()

	zctx.From(ctx).Debug("Promo applied",
		zap.String("code", rule.Code),
		zap.String("discount", q.Discount.String()),
	)
	return q, nil
}

// ClearPromo detaches the promo code.
func (f *Flow) ClearPromo() {
	f.mu.Lock()
	f.promo = nil
	f.mu.Unlock()
}

// Submit places the order. Preconditions are checked locally in order:
// logged in, non-zero cart total, valid contact form. On success the cart and
// form are reset and events.OrderPlaced is published. On failure they are left
// untouched; an authorization failure logs the session out.
func (f *Flow) Submit(ctx context.Context) (*Receipt, error) {
	if !f.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmitting
	}
	defer f.submitting.Store(false)

	st := f.session.State()
	if !st.LoggedIn || (st.Username == "" && f.cfg.Identity == nil) {
		return nil, failure.ErrNotLoggedIn
	}

	items := f.snapshot()
	f.mu.Lock()
	rule := f.promo
	f.mu.Unlock()
	q := f.quote(items, rule)
	if !q.Subtotal.IsPositive() {
		return nil, failure.ErrEmptyCart
	}

	contact := f.form.Values()
	if err := failure.Validate(f.validate, contact); err != nil {
		return nil, err
	}
	contact.Username = st.Username
	if contact.Username == "" {
		name, err := f.cfg.Identity.WhoAmI(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "resolve username")
		}
		contact.Username = name
	}

	req := order.Request{
		Contact: contact,
		Items:   items,
		Total:   q.GrandTotal,
	}
	if q.PromoErr == nil {
		req.PromoCode = q.PromoCode
	}

	lg := zctx.From(ctx)
	lg.Debug("Submitting order",
		zap.Int("lines", len(items)),
		zap.String("total", req.Total.String()),
	)

	ack, err := retry.Transient(ctx, f.cfg.RetryDelay, func(ctx context.Context) (*order.Receipt, error) {
		return f.backend.SubmitOrder(ctx, st.Token, req)
	})
	if err != nil {
		if errors.Is(err, failure.ErrUnauthorized) {
			if lerr := f.session.HandleUnauthorized(); lerr != nil {
				lg.Warn("Forced logout", zap.Error(lerr))
			}
		}
		lg.Info("Order rejected", zap.Error(err))
		return nil, errors.Wrap(err, "submit order")
	}

	f.cart.Clear()
	f.form.Reset()
	f.ClearPromo()

	r := &Receipt{
		OrderID:       ack.ID,
		Total:         ack.Total,
		Message:       SuccessMessage,
		ServerMessage: ack.Message,
		Redirect:      HomeRoute,
		RedirectAfter: f.cfg.RedirectDelay,
	}
	f.bus.Publish(events.Event{Topic: events.OrderPlaced, Payload: *r})
	lg.Info("Order placed", zap.Int64("order_id", r.OrderID))
	return r, nil
}

// snapshot copies the cart lines with their catalog name and price.
func (f *Flow) snapshot() []order.Item {
	lines := f.cart.Lines()
	items := make([]order.Item, 0, len(lines))
	for _, l := range lines {
		it, ok := f.catalog.Lookup(l.ItemID)
		if !ok {
			it = catalog.Item{ID: l.ItemID, Name: UnknownItemName, Price: decimal.Zero}
		}
		items = append(items, order.Item{
			ID:       l.ItemID,
			Name:     it.Name,
			Quantity: l.Quantity,
			Price:    it.Price,
		})
	}
	return items
}

func (f *Flow) quote(items []order.Item, rule *promo.Rule) Quote {
	subtotal := order.Subtotal(items)
	if rule == nil {
		return Quote{Quote: order.NewQuote(subtotal, decimal.Zero)}
	}

	q := Quote{PromoCode: rule.Code, PromoDescription: rule.Description}
	if err := rule.CheckAvailable(f.now()); err != nil {
		q.PromoErr = err
		q.Quote = order.NewQuote(subtotal, decimal.Zero)
		return q
	}

	lines := make([]promo.Item, len(items))
	for i, it := range items {
		lines[i] = promo.Item{ID: it.ID, Price: it.Price, Quantity: it.Quantity}
	}
	d, err := promo.Apply(rule, lines)
	if err != nil {
		q.PromoErr = err
		q.Quote = order.NewQuote(subtotal, decimal.Zero)
		return q
	}
	q.Quote = order.NewQuote(subtotal, d.Amount)
	return q
}
