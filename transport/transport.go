// Package transport attaches the bearer token of the owning identity class to outgoing
// requests and, on a 401, refreshes that class once and retries the request.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/rallyapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Session is the part of a session manager the transport drives.
// *session.Manager implements it.
type Session interface {
	Class() identity.Class
	Token() string
	Refresh(ctx context.Context) (string, error)
}

// Transport is an http.RoundTripper that authenticates requests and recovers from
// expired tokens.
type Transport struct {
	base     http.RoundTripper
	sessions map[identity.Class]Session
	group    singleflight.Group
	metrics  *Metrics
	log      zerolog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// Option configures a Transport
type Option func(*Transport)

// WithBase sets the RoundTripper requests are sent through. Defaults to
// http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = rt
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = l
	}
}

// WithMetrics enables the refresh and retry counters
func WithMetrics(m *Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// New creates a Transport for the staff and team sessions.
func New(staff, team Session, opts ...Option) (*Transport, error) {
	if staff == nil || team == nil {
		return nil, errors.New("[transport New] staff and team sessions are required")
	}
	if staff.Class() != identity.Staff || team.Class() != identity.Team {
		return nil, fmt.Errorf("[transport New] sessions are for %s and %s, expected staff and team", staff.Class(), team.Class())
	}

	t := &Transport{
		base: http.DefaultTransport,
		sessions: map[identity.Class]Session{
			identity.Staff: staff,
			identity.Team:  team,
		},
		log: log.Logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Client returns an *http.Client that sends its requests through t. The owning class
// of each request is taken from its context, or inferred.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// ClientFor returns an *http.Client whose requests always belong to class.
func (t *Transport) ClientFor(class identity.Class) *http.Client {
	return &http.Client{Transport: classTransport{class: class, next: t}}
}

type classTransport struct {
	class identity.Class
	next  *Transport
}

func (c classTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if _, ok := ClassFrom(req.Context()); ok {
		return c.next.RoundTrip(req)
	}
	return c.next.RoundTrip(req.WithContext(WithClass(req.Context(), c.class)))
}

// ActiveClass is the class a request without an explicit class is sent as:
// staff when a staff token is present, else team when a team token is present,
// else staff.
func (t *Transport) ActiveClass() identity.Class {
	if t.sessions[identity.Staff].Token() != "" {
		return identity.Staff
	}
	if t.sessions[identity.Team].Token() != "" {
		return identity.Team
	}
	return identity.Staff
}

// RoundTrip sends req with the bearer token of its class. A 401 triggers a single
// refresh of that class:
//   - on success the request is retried once with the new token and the retry's
//     outcome is returned;
//   - on rejection the original 401 is returned and the class is logged out;
//   - on a network failure the original response is closed and the error returned.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	class, ok := ClassFrom(req.Context())
	if !ok {
		class = t.ActiveClass()
	}
	sess := t.sessions[class]

	getBody, err := rewindable(req)
	if err != nil {
		return nil, err
	}

	a := &attempt{phase: PhaseNormal}
	sent := sess.Token()
	resp, err := t.send(req, getBody, sent)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !a.canRefresh() {
		_ = a.advance(PhaseDone)
		return resp, nil
	}

	_ = a.advance(PhaseRefreshPending)
	logger := t.log.With().Str("class", class.String()).Str("url", req.URL.Redacted()).Logger()
	logger.Debug().Msg("Got 401, refreshing session")

	token, err := t.refresh(req.Context(), sess, sent)
	if err != nil {
		_ = a.advance(PhaseFailed)
		if rallyapi.IsNetworkError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Err(err).Msg("Refresh did not complete")
			drain(resp)
			return nil, err
		}
		logger.Info().Err(err).Msg("Refresh rejected, returning the original 401")
		return resp, nil
	}

	drain(resp)
	_ = a.advance(PhaseRetrying)
	retry, err := t.send(req, getBody, token)
	_ = a.advance(PhaseDone)
	if err != nil {
		t.metrics.retry(class, 0)
		return nil, err
	}
	t.metrics.retry(class, retry.StatusCode)
	// A second 401 is final: RefreshPending is only reachable from Normal
	return retry, nil
}

// refresh coalesces concurrent refreshes of one class. The refresh itself is detached
// from the caller: a cancelled request stops waiting but the refresh completes.
func (t *Transport) refresh(ctx context.Context, sess Session, sent string) (string, error) {
	class := sess.Class()

	// Another request already replaced the token this one was sent with
	if current := sess.Token(); current != "" && current != sent {
		t.metrics.refresh(class, outcomeReused)
		return current, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := t.group.DoChan(class.String(), func() (any, error) {
		return sess.Refresh(detached)
	})

	select {
	case <-ctx.Done():
		t.metrics.refresh(class, outcomeCancelled)
		return "", ctx.Err()
	case res := <-ch:
		switch {
		case res.Err == nil:
			t.metrics.refresh(class, outcomeRefreshed)
			return res.Val.(string), nil
		case rallyapi.IsNetworkError(res.Err):
			t.metrics.refresh(class, outcomeNetworkError)
		default:
			t.metrics.refresh(class, outcomeRejected)
		}
		return "", res.Err
	}
}

func (t *Transport) send(req *http.Request, getBody func() (io.ReadCloser, error), token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("[transport] failed to rewind request body: %w", err)
		}
		out.Body = body
	}
	out.GetBody = getBody
	out.Header.Del("Authorization")
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(out)
	}
	return t.base.RoundTrip(out)
}

// rewindable returns a function producing req's body again for every attempt. The
// original body is always consumed and closed here, req itself is left untouched.
func rewindable(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, req.Body.Close()
	}

	buf, err := io.ReadAll(req.Body)
	closeErr := req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("[transport] failed to buffer request body: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("[transport] failed to close request body: %w", closeErr)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
