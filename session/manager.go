// Package session keeps the authenticated session of one identity class: it restores
// the persisted session at start, logs in and out, and refreshes the token on demand.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/rallyapi"
	"github.com/jrsteele09/rally-session/tokenstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Authenticator calls the login and refresh endpoints of an identity class.
// *rallyapi.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, class identity.Class, creds rallyapi.Credentials) (*rallyapi.TokenResponse, error)
	Refresh(ctx context.Context, class identity.Class, token string) (*rallyapi.TokenResponse, error)
}

var _ Authenticator = (*rallyapi.Client)(nil)

type observer struct {
	id int
	fn func(State)
}

// Manager is the session state machine of one identity class.
//
// States: Initializing -> {Unauthenticated, Authenticated}. Initializing is left once,
// by Restore. Afterwards only Login, Logout and Refresh move the session.
type Manager struct {
	class identity.Class
	store *tokenstore.Store
	auth  Authenticator
	log   zerolog.Logger

	mu            sync.Mutex
	state         State
	restored      bool
	pendingLogins int
	observers     []observer
	nextObserver  int
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger, which gets a "class" field added
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager creates a Manager in the Initializing state. Call Restore to load the
// persisted session.
func NewManager(class identity.Class, store *tokenstore.Store, auth Authenticator, opts ...Option) (*Manager, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("[session NewManager] unknown identity class %q", class)
	}
	if store == nil {
		return nil, errors.New("[session NewManager] store is required")
	}
	if auth == nil {
		return nil, errors.New("[session NewManager] authenticator is required")
	}

	m := &Manager{
		class: class,
		store: store,
		auth:  auth,
		log:   log.Logger,
		state: State{Phase: PhaseInitializing},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("class", class.String()).Logger()
	return m, nil
}

// Open creates a Manager and restores its persisted session.
// On a storage read error the returned Manager is usable and unauthenticated.
func Open(ctx context.Context, class identity.Class, store *tokenstore.Store, auth Authenticator, opts ...Option) (*Manager, error) {
	m, err := NewManager(class, store, auth, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Restore(ctx); err != nil {
		return m, err
	}
	return m, nil
}

// Class returns the identity class the Manager serves
func (m *Manager) Class() identity.Class {
	return m.class
}

// State returns a snapshot of the session
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Token returns the current bearer token, "" when unauthenticated
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Token
}

// IsAuthenticated reports whether the class currently holds a session
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAuthenticated
}

// Subscribe registers fn to receive every state change. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers = append(m.observers, observer{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Restore reads the persisted session and leaves Initializing. Only the first call
// does anything.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	if m.restored {
		m.mu.Unlock()
		return nil
	}
	m.restored = true
	m.mu.Unlock()

	entry, err := m.store.Read(ctx, m.class)
	if err != nil {
		m.log.Err(err).Msg("Failed to read persisted session")
		m.settle(unauthenticated())
		return fmt.Errorf("[session Restore] %w", err)
	}
	if entry == nil {
		m.settle(unauthenticated())
		return nil
	}

	next := resolve(m.class, entry.Token, entry.Metadata)
	if !next.IsAuthenticated {
		m.log.Warn().Msg("Persisted token carries no identity, discarding it")
		if err := m.store.Clear(ctx, m.class); err != nil {
			m.log.Err(err).Msg("Failed to discard persisted session")
		}
	}
	m.settle(next)
	return nil
}

// settle ends Initializing unless a login or logout already did
func (m *Manager) settle(next State) {
	m.mu.Lock()
	if m.state.Phase != PhaseInitializing {
		m.mu.Unlock()
		return
	}
	m.state = next
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
}

// Login sends creds to the class login endpoint and persists the resulting session.
// On failure the session is left as it was.
func (m *Manager) Login(ctx context.Context, creds rallyapi.Credentials) (State, error) {
	m.mu.Lock()
	m.pendingLogins++
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	resp, err := m.auth.Login(ctx, m.class, creds)
	if err != nil {
		m.log.Err(err).Msg("Login failed")
		return m.loginDone(nil), m.loginError(err)
	}

	next := resolve(m.class, resp.AccessToken, tokenstore.Metadata{TeamID: resp.TeamID, TeamName: resp.TeamName})
	if !next.IsAuthenticated {
		return m.loginDone(nil), &AuthenticationError{Class: m.class, Reason: "the server returned a token without an identity"}
	}

	if err := m.store.Write(ctx, m.class, next.Token, next.Metadata); err != nil {
		return m.loginDone(nil), fmt.Errorf("[session Login] failed to persist session: %w", err)
	}

	m.log.Info().Str("subject", next.Claims.Subject).Msg("Logged in")
	return m.loginDone(&next), nil
}

func (m *Manager) loginDone(next *State) State {
	m.mu.Lock()
	m.pendingLogins--
	if next != nil {
		m.state = *next
		m.restored = true
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return snap
}

func (m *Manager) loginError(err error) error {
	var apiErr *rallyapi.APIError
	if errors.As(err, &apiErr) {
		return &AuthenticationError{Class: m.class, Reason: apiErr.Message(defaultLoginFailure), Err: err}
	}
	return err
}

// Logout clears the persisted session of this class and moves to Unauthenticated.
// Logging out twice is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	changed, snap := m.reset()
	err := m.store.Clear(ctx, m.class)
	if changed {
		m.log.Info().Msg("Logged out")
		m.notify(snap)
	}
	if err != nil {
		return fmt.Errorf("[session Logout] %w", err)
	}
	return nil
}

func (m *Manager) reset() (bool, State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := m.state.Phase != PhaseUnauthenticated
	m.state = unauthenticated()
	m.restored = true
	return changed, m.snapshotLocked()
}

// Refresh exchanges the current session for a new token and returns it.
//
// A rejection logs this class out and returns a *RefreshFailure. A network failure is
// returned as is and leaves the session untouched. The other identity class is never
// affected.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	current := m.state.Token
	md := m.state.Metadata
	m.mu.Unlock()

	resp, err := m.auth.Refresh(ctx, m.class, current)
	if err != nil {
		if rallyapi.IsNetworkError(err) {
			m.log.Warn().Err(err).Msg("Refresh did not reach the server")
			return "", err
		}
		var apiErr *rallyapi.APIError
		reason := defaultRefreshFailure
		if errors.As(err, &apiErr) {
			reason = apiErr.Message(defaultRefreshFailure)
		}
		m.expire(ctx, reason)
		return "", &RefreshFailure{Class: m.class, Reason: reason, Err: err}
	}

	// Known metadata is kept and extended with whatever the refresh returned
	if resp.TeamID != nil {
		md.TeamID = resp.TeamID
	}
	if resp.TeamName != "" {
		md.TeamName = resp.TeamName
	}

	next := resolve(m.class, resp.AccessToken, md)
	if !next.IsAuthenticated {
		reason := "refreshed token carries no identity"
		m.expire(ctx, reason)
		return "", &RefreshFailure{Class: m.class, Reason: reason}
	}

	if err := m.store.Write(ctx, m.class, next.Token, next.Metadata); err != nil {
		return "", fmt.Errorf("[session Refresh] failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.state = next
	m.restored = true
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.log.Debug().Msg("Session refreshed")
	m.notify(snap)
	return next.Token, nil
}

func (m *Manager) expire(ctx context.Context, reason string) {
	changed, snap := m.reset()
	if err := m.store.Clear(ctx, m.class); err != nil {
		m.log.Err(err).Msg("Failed to clear expired session")
	}
	m.log.Info().Str("reason", reason).Msg("Session expired")
	if changed {
		m.notify(snap)
	}
}

func (m *Manager) snapshotLocked() State {
	s := m.state
	s.IsLoading = s.Phase == PhaseInitializing || m.pendingLogins > 0
	return s
}

func (m *Manager) notify(s State) {
	m.mu.Lock()
	fns := make([]func(State), 0, len(m.observers))
	for _, o := range m.observers {
		fns = append(fns, o.fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
