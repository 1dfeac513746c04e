package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/rally-session/identity"
	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/token/jwt"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyToken stores the verified access token
const ContextKeyToken ContextKey = "token"

// RequireAuth is middleware that validates a Bearer access token of class
func (s *Server) RequireAuth(class identity.Class) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			verified, err := s.tokens.Verify(raw, class)
			if err != nil {
				s.log.Debug().Err(err).Str("class", class.String()).Msg("Rejected access token")
				writeDetail(w, http.StatusUnauthorized, tokenFailureDetail(err))
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyToken, verified)
			next(w, r.WithContext(ctx))
		}
	}
}

// VerifiedToken returns the token RequireAuth verified
func VerifiedToken(ctx context.Context) (*jwt.Verified, bool) {
	v, ok := ctx.Value(ContextKeyToken).(*jwt.Verified)
	return v, ok
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenFailureDetail(err error) string {
	switch {
	case autherrors.Is(err, autherrors.ErrTokenExpired):
		return "Token has expired"
	case autherrors.Is(err, autherrors.ErrRefreshWindowEnded):
		return "Session expired, please log in again"
	default:
		return "Could not validate credentials"
	}
}
