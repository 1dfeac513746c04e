package jwt

import (
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/internal/config"
	"github.com/jrsteele09/rally-session/teams"
	"github.com/jrsteele09/rally-session/token/keys"
	"github.com/jrsteele09/rally-session/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ClaimTokenUse names the identity class a token was issued to
const ClaimTokenUse = "token_use"

// Creator issues the access tokens of the stub API
type Creator struct {
	config config.TokenConfig
	signer keys.Signer
}

// NewCreator creates a new JWT creator
func NewCreator(cfg config.TokenConfig, signer keys.Signer) *Creator {
	return &Creator{
		config: cfg,
		signer: signer,
	}
}

// CreateStaffToken creates an access token for a staff account
func (c *Creator) CreateStaffToken(user *users.User) (string, error) {
	claims := user.Identity().MapClaims()
	c.stamp(claims, identity.Staff)
	return c.sign(claims)
}

// CreateTeamToken creates an access token for a team
func (c *Creator) CreateTeamToken(team *teams.Team) (string, error) {
	claims := jwtlib.MapClaims{
		"sub":     strconv.Itoa(team.ID),
		"name":    team.Name,
		"team_id": team.ID,
	}
	c.stamp(claims, identity.Team)
	return c.sign(claims)
}

func (c *Creator) stamp(claims jwtlib.MapClaims, class identity.Class) {
	now := NowTimeFunc()
	claims["iss"] = c.config.GetIssuer()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(c.config.GetAccessTokenExpiry()).Unix()
	claims["jti"] = uuid.New().String()
	claims[ClaimTokenUse] = class.String()
}

func (c *Creator) sign(claims jwtlib.MapClaims) (string, error) {
	signedToken, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signedToken, nil
}
