// Package history implements the order history view: a read-only,
// server-authoritative list of the user's past orders.
package history

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/session"
	"github.com/xenking/munchify/internal/failure"
)

// Status is the view state.
type Status int

const (
	// StatusIdle means nothing was loaded yet.
	StatusIdle Status = iota
	// StatusLoginRequired means there is no session to load orders for.
	StatusLoginRequired
	// StatusLoading means a fetch is in flight.
	StatusLoading
	// StatusLoaded means Orders holds the server's answer.
	StatusLoaded
	// StatusFailed means the last fetch failed; Err holds the cause.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoginRequired:
		return "login_required"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Messages rendered for the empty states.
const (
	LoginRequiredMessage = "Please log in to view your orders."
	NoOrdersMessage      = "You have no past orders."
)

// Snapshot is the rendered state of the view.
type Snapshot struct {
	Status Status
	Orders []order.Order
	Err    error
}

// Fetcher loads orders from the backend.
type Fetcher interface {
	FetchOrders(ctx context.Context, token string) ([]order.Order, error)
}

// Session is the subset of the session manager used by the view.
type Session interface {
	State() session.State
	HandleUnauthorized() error
}

// View loads and holds the order history. Every Load takes a new generation;
// results of superseded loads, or loads finishing after Close, are dropped.
type View struct {
	fetcher Fetcher
	session Session

	mu       sync.Mutex
	gen      uint64
	closed   bool
	snap     Snapshot
	onChange func(Snapshot)
}

// NewView creates an idle view.
func NewView(f Fetcher, s Session) *View {
	return &View{fetcher: f, session: s}
}

// OnChange registers fn to receive every state change. Only one callback is
// kept.
func (v *View) OnChange(fn func(Snapshot)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// Snapshot returns the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// Mounted reports whether the view has been loaded and not closed.
func (v *View) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen > 0 && !v.closed
}

// Close tears the view down. In-flight loads are discarded when they finish.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.gen++
	v.mu.Unlock()
}

// Load fetches the orders for the current session and returns the resulting
// state. If the load is superseded while in flight, the newer state is
// returned unchanged.
func (v *View) Load(ctx context.Context) Snapshot {
	lg := zctx.From(ctx)

	v.mu.Lock()
	if v.closed {
		snap := v.snap
		v.mu.Unlock()
		return snap
	}
	v.gen++
	gen := v.gen
	prev := v.snap.Orders
	v.mu.Unlock()

	token := v.session.State().Token
	if token == "" {
		return v.commit(gen, Snapshot{Status: StatusLoginRequired})
	}
	// Previously loaded orders stay visible while refreshing.
	v.commit(gen, Snapshot{Status: StatusLoading, Orders: prev})

	orders, err := v.fetcher.FetchOrders(ctx, token)

	var next Snapshot
	switch {
	case err == nil:
		if orders == nil {
			orders = []order.Order{}
		}
		next = Snapshot{Status: StatusLoaded, Orders: orders}
	case errors.Is(err, failure.ErrUnauthorized):
		// A newer login may have replaced the rejected token meanwhile.
		if v.session.State().Token == token {
			if lerr := v.session.HandleUnauthorized(); lerr != nil {
				lg.Warn("Forced logout", zap.Error(lerr))
			}
		}
		next = Snapshot{Status: StatusLoginRequired}
	default:
		lg.Info("Load order history", zap.Error(err))
		next = Snapshot{Status: StatusFailed, Err: err}
	}

	if !v.current(gen) {
		lg.Debug("Dropped superseded history result", zap.Uint64("generation", gen))
	}
	return v.commit(gen, next)
}

func (v *View) current(gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return gen == v.gen
}

// commit stores snap if gen is still current and notifies the callback. It
// returns the state of the view afterwards.
func (v *View) commit(gen uint64, snap Snapshot) Snapshot {
	v.mu.Lock()
	if gen != v.gen {
		cur := v.snap
		v.mu.Unlock()
		return cur
	}
	v.snap = snap
	fn := v.onChange
	v.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return snap
}
