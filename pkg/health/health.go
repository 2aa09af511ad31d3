// Package health serves liveness and readiness probes and holds API traffic
// back while the service is still warming up.
//
// Checks run on background tickers. A check flips to unhealthy only after
// three consecutive failures and back to healthy after one success, so a
// single slow ping does not take the service out of rotation.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

const (
	failAfter = 3
	passAfter = 1
)

// CheckFunc reports whether a dependency is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Owned by the goroutine running probe.
	fails, oks int
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	return c
}

func (c *check) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
	if err != nil {
		c.oks = 0
		if c.fails++; c.fails >= failAfter {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	if c.oks++; c.oks >= passAfter {
		c.healthy.Store(true)
	}
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error(), true
	}
	return "check is unhealthy", true
}

// Health tracks liveness and readiness of the service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process is alive.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn))
}

// AddReadinessCheck registers a check that decides whether the service may
// receive traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn))
}

func (h *Health) snapshot() (live, ready []*check) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*check(nil), h.liveness...), append([]*check(nil), h.readiness...)
}

// Start probes every check once right away and then every interval, until
// Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	live, ready := h.snapshot()
	for _, c := range append(live, ready...) {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				c.probe(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop halts the background probes. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service ready once initialization is complete, or not
// ready when it starts draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	_, ready := h.snapshot()
	for _, c := range ready {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	live, _ := h.snapshot()
	writeStatus(w, failures(live))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	_, ready := h.snapshot()
	failed := failures(ready)
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

// Gate answers 503 with {"error":"service is waking up"} while the service is
// not ready. Clients treat that reply as transient and retry.
func (h *Health) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.IsReady() {
			next.ServeHTTP(w, r)
			return
		}
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		e.ObjStart()
		e.FieldStart("error")
		e.Str("service is waking up")
		e.ObjEnd()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write(e.Bytes())
	})
}

func failures(checks []*check) map[string]string {
	out := make(map[string]string)
	for _, c := range checks {
		if msg, failed := c.failure(); failed {
			out[c.name] = msg
		}
	}
	return out
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")

		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failed[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
