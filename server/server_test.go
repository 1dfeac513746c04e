package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/internal/config"
	"github.com/jrsteele09/rally-session/rallyapi"
	"github.com/jrsteele09/rally-session/server"
	teamrepofakes "github.com/jrsteele09/rally-session/teams/repofakes"
	"github.com/jrsteele09/rally-session/token/claims"
	"github.com/jrsteele09/rally-session/token/jwt"
	fakeuserrepo "github.com/jrsteele09/rally-session/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	config.Config
}

func (testConfig) GetEnv() string                      { return "TEST" }
func (testConfig) GetAccessTokenExpiry() time.Duration { return time.Minute }
func (testConfig) GetRefreshWindow() time.Duration     { return time.Hour }
func (testConfig) GetAllowedOrigins() config.AllowedOrigins {
	return config.ParseAllowedOrigins("https://rally.test")
}

func newServer(t *testing.T) (*httptest.Server, *rallyapi.Client) {
	t.Helper()
	srv, err := server.New(testConfig{Config: config.New()}, server.Repos{
		Users: fakeuserrepo.NewFakeUserRepo(),
		Teams: teamrepofakes.NewFakeTeamRepo(),
	}, server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	api, err := rallyapi.NewClient(ts.URL, rallyapi.WithCookieJar())
	require.NoError(t, err)
	return ts, api
}

func freezeTime(t *testing.T, now time.Time) {
	t.Helper()
	previous := jwt.NowTimeFunc
	jwt.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.NowTimeFunc = previous })
}

func get(t *testing.T, ts *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestStaffLogin(t *testing.T) {
	ts, api := newServer(t)
	ctx := context.Background()

	resp, err := api.Login(ctx, identity.Staff, rallyapi.Credentials{Username: "admin", Password: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Nil(t, resp.TeamID)

	id, err := claims.Decode(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", id.Subject)
	assert.True(t, id.IsAdmin())
	assert.True(t, id.IsStaff())

	me := get(t, ts, rallyapi.RouteStaffMe, resp.AccessToken)
	require.Equal(t, http.StatusOK, me.StatusCode)
	var user map[string]any
	require.NoError(t, json.NewDecoder(me.Body).Decode(&user))
	assert.Equal(t, "admin", user["username"])
	assert.NotContains(t, user, "PasswordHash")
}

func TestStaffLogin_Errors(t *testing.T) {
	_, api := newServer(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		creds      rallyapi.Credentials
		wantStatus int
		wantDetail string
		wantField  string
	}{
		{name: "wrong password", creds: rallyapi.Credentials{Username: "admin", Password: "nope"}, wantStatus: http.StatusUnauthorized, wantDetail: "Incorrect username or password"},
		{name: "unknown user", creds: rallyapi.Credentials{Username: "ghost", Password: "admin"}, wantStatus: http.StatusUnauthorized, wantDetail: "Incorrect username or password"},
		{name: "missing password", creds: rallyapi.Credentials{Username: "admin"}, wantStatus: http.StatusUnprocessableEntity, wantField: "body.password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := api.Login(ctx, identity.Staff, tt.creds)
			var apiErr *rallyapi.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, apiErr.Detail)
			}
			if tt.wantField != "" {
				require.NotEmpty(t, apiErr.Fields)
				assert.Equal(t, tt.wantField, apiErr.Fields[0].Field())
			}
		})
	}
}

func TestTeamLogin(t *testing.T) {
	ts, api := newServer(t)
	ctx := context.Background()

	resp, err := api.Login(ctx, identity.Team, rallyapi.Credentials{AccessCode: "abcd-1234"})
	require.NoError(t, err)
	require.NotNil(t, resp.TeamID)
	assert.Equal(t, 1, *resp.TeamID)
	assert.Equal(t, "Team Alpha", resp.TeamName)

	me := get(t, ts, rallyapi.RouteTeamMe, resp.AccessToken)
	require.Equal(t, http.StatusOK, me.StatusCode)
	var team map[string]any
	require.NoError(t, json.NewDecoder(me.Body).Decode(&team))
	assert.Equal(t, "Team Alpha", team["name"])
	assert.NotContains(t, team, "AccessCode")

	// A team token does not open staff endpoints
	assert.Equal(t, http.StatusUnauthorized, get(t, ts, rallyapi.RouteStaffMe, resp.AccessToken).StatusCode)

	_, err = api.Login(ctx, identity.Team, rallyapi.Credentials{AccessCode: "WRONG"})
	var apiErr *rallyapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid access code", apiErr.Message("Login failed"))

	_, err = api.Login(ctx, identity.Team, rallyapi.Credentials{})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "body.access_code: Field required", apiErr.Message("Login failed"))
}

func TestTeamRefresh(t *testing.T) {
	_, api := newServer(t)
	ctx := context.Background()
	issued := time.Now()
	freezeTime(t, issued)

	login, err := api.Login(ctx, identity.Team, rallyapi.Credentials{AccessCode: "ABCD-1234"})
	require.NoError(t, err)

	// Expired, still inside the refresh window
	freezeTime(t, issued.Add(10*time.Minute))
	refreshed, err := api.Refresh(ctx, identity.Team, login.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.AccessToken, refreshed.AccessToken)
	assert.Equal(t, 1, *refreshed.TeamID)
	assert.Equal(t, "Team Alpha", refreshed.TeamName)

	// The refreshed token was retired
	_, err = api.Refresh(ctx, identity.Team, login.AccessToken)
	var apiErr *rallyapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	// Past the refresh window
	freezeTime(t, issued.Add(3*time.Hour))
	_, err = api.Refresh(ctx, identity.Team, refreshed.AccessToken)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Session expired, please log in again", apiErr.Detail)

	// Staff tokens are not accepted by the team endpoint and vice versa
	staff, err := api.Login(ctx, identity.Staff, rallyapi.Credentials{Username: "admin", Password: "admin"})
	require.NoError(t, err)
	_, err = api.Refresh(ctx, identity.Team, staff.AccessToken)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestStaffRefresh_FromCookie(t *testing.T) {
	_, api := newServer(t)
	ctx := context.Background()

	login, err := api.Login(ctx, identity.Staff, rallyapi.Credentials{Username: "admin", Password: "admin"})
	require.NoError(t, err)

	refreshed, err := api.Refresh(ctx, identity.Staff, "")
	require.NoError(t, err)
	assert.NotEqual(t, login.AccessToken, refreshed.AccessToken)

	id, err := claims.Decode(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", id.Subject)
}

func TestRefresh_WithoutToken(t *testing.T) {
	_, api := newServer(t)

	_, err := api.Refresh(context.Background(), identity.Team, "")
	var apiErr *rallyapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Not authenticated", apiErr.Detail)
}

func TestRequireAuth(t *testing.T) {
	ts, _ := newServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header"},
		{name: "wrong scheme", header: "Basic YWRtaW46YWRtaW4="},
		{name: "garbage token", header: "Bearer not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+rallyapi.RouteTeamMe, nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := ts.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
			apiErr := rallyapi.CheckResponse(resp).(*rallyapi.APIError)
			assert.NotEmpty(t, apiErr.Detail)
		})
	}
}

func TestCors(t *testing.T) {
	ts, _ := newServer(t)

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+rallyapi.RouteTeamLogin, nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	allowed := preflight("https://rally.test")
	assert.Equal(t, http.StatusNoContent, allowed.StatusCode)
	assert.Equal(t, "https://rally.test", allowed.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", allowed.Header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, allowed.Header.Get("Access-Control-Allow-Headers"), "Authorization")

	denied := preflight("https://evil.test")
	assert.Equal(t, http.StatusNoContent, denied.StatusCode)
	assert.Empty(t, denied.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthAndNotFound(t *testing.T) {
	ts, _ := newServer(t)

	health := get(t, ts, rallyapi.RouteHealth, "")
	assert.Equal(t, http.StatusOK, health.StatusCode)

	missing := get(t, ts, "/scores", "")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(missing.Body).Decode(&body))
	assert.Equal(t, "Not Found", body["detail"])
}

func TestStaffLogin_FormEncoding(t *testing.T) {
	ts, _ := newServer(t)

	form := url.Values{"username": {"admin"}, "password": {"admin"}}
	resp, err := ts.Client().Post(ts.URL+rallyapi.RouteStaffLogin, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "rally_refresh" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, rallyapi.RouteStaffRefresh, cookie.Path)
}
