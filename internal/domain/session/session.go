// Package session tracks the logged-in identity derived from the persisted
// token.
package session

import (
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/events"
	"github.com/xenking/munchify/internal/kv"
)

// Persisted keys.
const (
	KeyToken    = "token"
	KeyUsername = "username"
)

// ErrEmptyToken is returned by Login when no token is given.
var ErrEmptyToken = errors.New("empty token")

// State is a snapshot of the session. LoggedIn is true iff Token is set.
type State struct {
	LoggedIn bool
	Token    string
	Username string
}

// Manager owns the session state and keeps it in sync with the store.
type Manager struct {
	store kv.Store
	bus   events.Publisher
	lg    *zap.Logger

	mu    sync.RWMutex
	state State

	subsMu  sync.Mutex
	subs    map[uint64]func(State)
	nextSub uint64
}

// NewManager creates a logged-out Manager. Call Initialize to load the
// persisted session.
func NewManager(store kv.Store, bus events.Publisher, lg *zap.Logger) *Manager {
	return &Manager{store: store, bus: bus, lg: lg, subs: make(map[uint64]func(State))}
}

// Initialize loads token and username from the store.
func (m *Manager) Initialize() error {
	token, _, err := m.store.Get(KeyToken)
	if err != nil {
		return errors.Wrap(err, "load token")
	}
	username, _, err := m.store.Get(KeyUsername)
	if err != nil {
		return errors.Wrap(err, "load username")
	}

	m.mu.Lock()
	m.state = State{LoggedIn: token != "", Token: token}
	if token != "" {
		m.state.Username = username
	}
	m.mu.Unlock()
	return nil
}

// State returns the current session snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Login persists the credentials and marks the session logged in.
func (m *Manager) Login(token, username string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := m.store.Set(KeyToken, token); err != nil {
		return errors.Wrap(err, "persist token")
	}
	if err := m.store.Set(KeyUsername, username); err != nil {
		return errors.Wrap(err, "persist username")
	}

	m.set(State{LoggedIn: true, Token: token, Username: username})
	m.lg.Debug("Logged in", zap.String("username", username))
	return nil
}

// Logout removes the credentials. The in-memory state is cleared even when
// the store fails.
func (m *Manager) Logout() error {
	return m.clear("logout")
}

// HandleUnauthorized is called when the backend rejects the token. It always
// ends logged out with credentials removed.
func (m *Manager) HandleUnauthorized() error {
	m.lg.Info("Session rejected by server, logging out")
	return m.clear("unauthorized")
}

// SetUsername persists a changed username for the current session.
func (m *Manager) SetUsername(username string) error {
	if err := m.store.Set(KeyUsername, username); err != nil {
		return errors.Wrap(err, "persist username")
	}

	m.mu.Lock()
	m.state.Username = username
	st := m.state
	m.mu.Unlock()

	m.publish(st)
	return nil
}

func (m *Manager) clear(reason string) error {
	err := m.store.Delete(KeyToken, KeyUsername)
	if err != nil {
		m.lg.Error("Remove credentials", zap.String("reason", reason), zap.Error(err))
		err = errors.Wrap(err, "remove credentials")
	}
	m.set(State{})
	return err
}

func (m *Manager) set(st State) {
	m.mu.Lock()
	changed := m.state != st
	m.state = st
	m.mu.Unlock()

	if changed {
		m.publish(st)
	}
}

// Subscribe registers fn to be called with the new state after every change.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

func (m *Manager) publish(st State) {
	m.subsMu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for i := uint64(0); i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
	m.bus.Publish(events.Event{Topic: events.SessionChanged, Payload: st})
}
