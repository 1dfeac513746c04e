// Package rallyapi talks to the Rally auth endpoints: login and refresh for staff
// accounts and for teams.
package rallyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/rally-session/identity"
	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"golang.org/x/oauth2"
)

const defaultTimeout = 10 * time.Second

// Client calls the auth endpoints of the Rally API.
// It uses its own plain http.Client, never the refreshing transport.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCookieJar keeps server cookies between calls, which the cookie based staff
// refresh relies on.
func WithCookieJar() ClientOption {
	return func(c *Client) {
		jar, err := cookiejar.New(nil)
		if err == nil {
			c.httpClient.Jar = jar
		}
	}
}

// WithUserAgent sets the User-Agent header of every call
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a Client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[rallyapi NewClient] invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[rallyapi NewClient] base URL %q needs a scheme and host", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "rally-session",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL resolves path against the API root
func (c *Client) URL(path string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// Login exchanges credentials for a token at the class login endpoint.
func (c *Client) Login(ctx context.Context, class identity.Class, creds Credentials) (*TokenResponse, error) {
	var req *http.Request
	var err error

	switch class {
	case identity.Staff:
		form := url.Values{}
		form.Set("username", creds.Username)
		form.Set("password", creds.Password)
		req, err = c.newRequest(ctx, RouteStaffLogin, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	case identity.Team:
		body, merr := json.Marshal(TeamLoginRequest{AccessCode: creds.AccessCode})
		if merr != nil {
			return nil, fmt.Errorf("[rallyapi Login] %w", merr)
		}
		req, err = c.newRequest(ctx, RouteTeamLogin, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		return nil, autherrors.Wrapf(autherrors.ErrUnknownClass, "[rallyapi Login] class %q", class)
	}
	if err != nil {
		return nil, err
	}

	return c.doToken(req, "login "+class.String())
}

// Refresh asks the class refresh endpoint for a new token. An empty token sends no
// Authorization header and relies on cookies alone.
func (c *Client) Refresh(ctx context.Context, class identity.Class, token string) (*TokenResponse, error) {
	var route string
	switch class {
	case identity.Staff:
		route = RouteStaffRefresh
	case identity.Team:
		route = RouteTeamRefresh
	default:
		return nil, autherrors.Wrapf(autherrors.ErrUnknownClass, "[rallyapi Refresh] class %q", class)
	}

	req, err := c.newRequest(ctx, route, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	return c.doToken(req, "refresh "+class.String())
}

func (c *Client) newRequest(ctx context.Context, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("[rallyapi] failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func (c *Client) doToken(req *http.Request, op string) (*TokenResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: "invalid token response: " + err.Error()}
	}
	if token.AccessToken == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: "token response has no access_token"}
	}
	return &token, nil
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
