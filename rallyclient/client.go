// Package rallyclient wires the token store, both session managers, the auth API
// client and the refreshing transport into one client.
package rallyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/rally-session/identity"
	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/rallyapi"
	"github.com/jrsteele09/rally-session/session"
	"github.com/jrsteele09/rally-session/tokenstore"
	"github.com/jrsteele09/rally-session/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config locates the Rally API
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client is the entry point for applications talking to the Rally API.
type Client struct {
	cfg       Config
	api       *rallyapi.Client
	store     *tokenstore.Store
	sessions  map[identity.Class]*session.Manager
	transport *transport.Transport
	http      *http.Client
}

type options struct {
	log      zerolog.Logger
	registry prometheus.Registerer
	base     http.RoundTripper
}

// Option configures a Client
type Option func(*options)

// WithLogger sets the logger shared by every component
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMetrics registers the transport counters on reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithBaseTransport sets the RoundTripper API requests finally go through
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// New builds a Client over backend and restores both persisted sessions.
// A session that cannot be restored starts out unauthenticated.
func New(ctx context.Context, cfg Config, backend tokenstore.Backend, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, errors.New("[rallyclient New] storage backend is required")
	}
	o := options{log: log.Logger, base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	apiOpts := []rallyapi.ClientOption{
		rallyapi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout, Transport: o.base}),
		rallyapi.WithCookieJar(),
	}
	if cfg.UserAgent != "" {
		apiOpts = append(apiOpts, rallyapi.WithUserAgent(cfg.UserAgent))
	}
	api, err := rallyapi.NewClient(cfg.BaseURL, apiOpts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		api:      api,
		store:    tokenstore.New(backend, tokenstore.WithLogger(o.log)),
		sessions: make(map[identity.Class]*session.Manager, len(identity.Classes)),
	}
	for _, class := range identity.Classes {
		m, err := session.Open(ctx, class, c.store, api, session.WithLogger(o.log))
		if m == nil {
			return nil, err
		}
		if err != nil {
			o.log.Warn().Err(err).Str("class", class.String()).Msg("Starting without a persisted session")
		}
		c.sessions[class] = m
	}

	trOpts := []transport.Option{transport.WithBase(o.base), transport.WithLogger(o.log)}
	if o.registry != nil {
		trOpts = append(trOpts, transport.WithMetrics(transport.NewMetrics(o.registry)))
	}
	c.transport, err = transport.New(c.sessions[identity.Staff], c.sessions[identity.Team], trOpts...)
	if err != nil {
		return nil, err
	}
	c.http = &http.Client{Transport: c.transport, Timeout: cfg.Timeout}
	return c, nil
}

// Staff returns the staff session
func (c *Client) Staff() *session.Manager {
	return c.sessions[identity.Staff]
}

// Team returns the team session
func (c *Client) Team() *session.Manager {
	return c.sessions[identity.Team]
}

// Session returns the session of class
func (c *Client) Session(class identity.Class) (*session.Manager, error) {
	m, ok := c.sessions[class]
	if !ok {
		return nil, autherrors.Wrapf(autherrors.ErrUnknownClass, "[rallyclient] class %q", class)
	}
	return m, nil
}

// API returns the auth endpoint client
func (c *Client) API() *rallyapi.Client {
	return c.api
}

// HTTPClient returns a client that authenticates as the active class
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// ClientFor returns a client whose requests always belong to class
func (c *Client) ClientFor(class identity.Class) *http.Client {
	hc := c.transport.ClientFor(class)
	hc.Timeout = c.cfg.Timeout
	return hc
}

// ActiveClass is the class requests without an explicit class are sent as
func (c *Client) ActiveClass() identity.Class {
	return c.transport.ActiveClass()
}

// Login logs class in with creds
func (c *Client) Login(ctx context.Context, class identity.Class, creds rallyapi.Credentials) (session.State, error) {
	m, err := c.Session(class)
	if err != nil {
		return session.State{}, err
	}
	return m.Login(ctx, creds)
}

// Logout logs out the given classes, every class when none is given.
func (c *Client) Logout(ctx context.Context, classes ...identity.Class) error {
	if len(classes) == 0 {
		classes = identity.Classes
	}
	var errs []error
	for _, class := range classes {
		m, err := c.Session(class)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.Logout(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Do sends req through the refreshing transport
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Get sends a GET for path as class. An empty class uses the active class.
func (c *Client) Get(ctx context.Context, class identity.Class, path string) (*http.Response, error) {
	if class != "" {
		ctx = transport.WithClass(ctx, class)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api.URL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("[rallyclient Get] %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.Do(req)
}

// GetJSON sends a GET for path as class and decodes the JSON body into out.
// Non-2xx responses are returned as *rallyapi.APIError.
func (c *Client) GetJSON(ctx context.Context, class identity.Class, path string, out any) error {
	resp, err := c.Get(ctx, class, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := rallyapi.CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("[rallyclient GetJSON] failed to decode %s: %w", strings.TrimLeft(path, "/"), err)
	}
	return nil
}

// Status returns a snapshot of every session
func (c *Client) Status() map[identity.Class]session.State {
	status := make(map[identity.Class]session.State, len(c.sessions))
	for class, m := range c.sessions {
		status[class] = m.State()
	}
	return status
}
