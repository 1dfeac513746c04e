package jwt_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/internal/config"
	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/teams"
	"github.com/jrsteele09/rally-session/token"
	"github.com/jrsteele09/rally-session/token/claims"
	"github.com/jrsteele09/rally-session/token/jwt"
	"github.com/jrsteele09/rally-session/token/keys"
	"github.com/jrsteele09/rally-session/users"
	"github.com/stretchr/testify/require"
)

type tokenConfig struct {
	config.Tokens
}

func (tokenConfig) GetIssuer() string                   { return "rally-test" }
func (tokenConfig) GetAccessTokenExpiry() time.Duration { return time.Minute }
func (tokenConfig) GetRefreshWindow() time.Duration     { return time.Hour }

type fixture struct {
	creator   *jwt.Creator
	inspector *jwt.Inspector
	revoked   *token.InMemoryRevokedTokenCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := keys.NewHMACSigner("test", "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	revoked := token.NewInMemoryRevokedTokenCache()
	return &fixture{
		creator:   jwt.NewCreator(tokenConfig{}, signer),
		inspector: jwt.NewInspector(signer, "rally-test", revoked),
		revoked:   revoked,
	}
}

func freezeTime(t *testing.T, now time.Time) {
	t.Helper()
	previous := jwt.NowTimeFunc
	jwt.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.NowTimeFunc = previous })
}

func TestStaffToken(t *testing.T) {
	f := newFixture(t)
	user := &users.User{ID: 7, Username: "ana", Name: "Ana Staff", Email: "ana@rally.test", Scopes: []string{claims.ScopeAdmin, claims.ScopeManagerRally}}

	raw, err := f.creator.CreateStaffToken(user)
	require.NoError(t, err)

	// What the client decodes without a key
	id, err := claims.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "7", id.Subject)
	require.Equal(t, []string{"admin", "manager-rally"}, id.Scopes)
	require.Equal(t, "Ana Staff", id.Name)
	require.NotNil(t, id.Exp)

	verified, err := f.inspector.Verify(raw, identity.Staff)
	require.NoError(t, err)
	require.Equal(t, "7", verified.Identity.Subject)
	require.NotEmpty(t, verified.JTI)

	_, err = f.inspector.Verify(raw, identity.Team)
	require.ErrorIs(t, err, autherrors.ErrWrongTokenClass)
}

func TestTeamToken(t *testing.T) {
	f := newFixture(t)

	raw, err := f.creator.CreateTeamToken(&teams.Team{ID: 1, Name: "Team Alpha"})
	require.NoError(t, err)

	verified, err := f.inspector.Verify(raw, identity.Team)
	require.NoError(t, err)
	require.Equal(t, "1", verified.Identity.Subject)
	require.Equal(t, "Team Alpha", verified.Identity.Name)
	require.EqualValues(t, 1, verified.Claims["team_id"])
}

func TestVerify_Expiry(t *testing.T) {
	f := newFixture(t)
	issued := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, issued)

	raw, err := f.creator.CreateTeamToken(&teams.Team{ID: 1, Name: "Team Alpha"})
	require.NoError(t, err)

	freezeTime(t, issued.Add(10*time.Minute))
	_, err = f.inspector.Verify(raw, identity.Team)
	require.ErrorIs(t, err, autherrors.ErrTokenExpired)

	verified, err := f.inspector.VerifyForRefresh(raw, identity.Team, time.Hour)
	require.NoError(t, err)
	require.Equal(t, issued.Add(time.Minute), verified.ExpiresAt.UTC())

	freezeTime(t, issued.Add(2*time.Hour))
	_, err = f.inspector.VerifyForRefresh(raw, identity.Team, time.Hour)
	require.ErrorIs(t, err, autherrors.ErrRefreshWindowEnded)
}

func TestVerify_Rejections(t *testing.T) {
	f := newFixture(t)
	raw, err := f.creator.CreateTeamToken(&teams.Team{ID: 1, Name: "Team Alpha"})
	require.NoError(t, err)

	otherSigner, err := keys.NewHMACSigner("test", "ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	forged, err := jwt.NewCreator(tokenConfig{}, otherSigner).CreateTeamToken(&teams.Team{ID: 1, Name: "Team Alpha"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "forged signature", token: forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.inspector.Verify(tt.token, identity.Team)
			require.ErrorIs(t, err, autherrors.ErrInvalidToken)
		})
	}

	t.Run("revoked", func(t *testing.T) {
		verified, err := f.inspector.Verify(raw, identity.Team)
		require.NoError(t, err)
		require.NoError(t, f.revoked.Add(verified.JTI, verified.ExpiresAt))

		_, err = f.inspector.Verify(raw, identity.Team)
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})
}
