package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/rally-session/identity"
	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/token/claims"
	"github.com/jrsteele09/rally-session/token/keys"
)

// Verified is an access token whose signature, issuer and class were checked
type Verified struct {
	Class     identity.Class
	Identity  *claims.Identity
	Claims    jwtlib.MapClaims
	JTI       string
	ExpiresAt time.Time
}

// RevokedChecker is an interface for checking if a token has been revoked
type RevokedChecker interface {
	IsRevoked(jti string) bool
}

// Inspector validates the access tokens issued by Creator
type Inspector struct {
	signer         keys.Signer
	issuer         string
	revokedChecker RevokedChecker
}

// NewInspector creates a new JWT inspector
func NewInspector(signer keys.Signer, issuer string, revokedChecker RevokedChecker) *Inspector {
	return &Inspector{
		signer:         signer,
		issuer:         issuer,
		revokedChecker: revokedChecker,
	}
}

// Verify validates rawToken as an unexpired access token of class
func (i *Inspector) Verify(rawToken string, class identity.Class) (*Verified, error) {
	return i.verify(rawToken, class, 0)
}

// VerifyForRefresh validates rawToken like Verify but also accepts tokens that expired
// less than window ago
func (i *Inspector) VerifyForRefresh(rawToken string, class identity.Class, window time.Duration) (*Verified, error) {
	return i.verify(rawToken, class, window)
}

func (i *Inspector) verify(rawToken string, class identity.Class, leeway time.Duration) (*Verified, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "empty token")
	}

	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(leeway),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	token, err := parser.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.signer.GetVerificationKey)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			if leeway > 0 {
				return nil, autherrors.Wrapf(autherrors.ErrRefreshWindowEnded, "%v", err)
			}
			return nil, autherrors.Wrapf(autherrors.ErrTokenExpired, "%v", err)
		}
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "%v", err)
	}

	mc, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "error extracting claims from token")
	}

	if use, _ := mc[ClaimTokenUse].(string); use != class.String() {
		return nil, autherrors.Wrapf(autherrors.ErrWrongTokenClass, "token for %q presented as %s", use, class)
	}

	jti, _ := mc["jti"].(string)
	if jti != "" && i.revokedChecker != nil && i.revokedChecker.IsRevoked(jti) {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "token has been revoked")
	}

	id := claims.FromMapClaims(mc)
	if !id.HasSubject() {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "token has no subject")
	}

	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "token has no expiry")
	}

	return &Verified{
		Class:     class,
		Identity:  id,
		Claims:    mc,
		JTI:       jti,
		ExpiresAt: exp.Time,
	}, nil
}
