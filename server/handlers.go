package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/rallyapi"
	"github.com/jrsteele09/rally-session/teams"
	"github.com/jrsteele09/rally-session/token/jwt"
	"github.com/jrsteele09/rally-session/users"
)

// refreshCookieName carries the staff token for cookie based refresh
const refreshCookieName = "rally_refresh"

const maxBodyBytes = 1 << 20

// StaffLoginHandler exchanges a username and password form for a staff token
func (s *Server) StaffLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeValidation(w, rallyapi.FieldError{Loc: []any{"body"}, Msg: "Invalid form body", Type: "value_error"})
			return
		}

		username := strings.TrimSpace(r.PostForm.Get("username"))
		password := r.PostForm.Get("password")
		var missing []rallyapi.FieldError
		if username == "" {
			missing = append(missing, missingField("body", "username"))
		}
		if password == "" {
			missing = append(missing, missingField("body", "password"))
		}
		if len(missing) > 0 {
			writeValidation(w, missing...)
			return
		}

		user, err := s.repos.Users.GetByUsername(username)
		if err != nil || !user.CheckPassword(password) {
			s.log.Info().Str("username", username).Msg("Failed staff login")
			writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		if user.Blocked {
			writeDetail(w, http.StatusBadRequest, "Inactive user")
			return
		}

		if err := s.repos.Users.SetLastLogin(user.ID, time.Now().UTC()); err != nil {
			s.log.Err(err).Int("user_id", user.ID).Msg("Failed to record last login")
		}
		s.respondStaffToken(w, r, user)
	}
}

// StaffRefreshHandler swaps a staff token, from the bearer header or the refresh
// cookie, for a new one. Expired tokens are accepted within the refresh window.
func (s *Server) StaffRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			if cookie, err := r.Cookie(refreshCookieName); err == nil {
				raw = cookie.Value
			}
		}

		verified, ok := s.verifyForRefresh(w, raw, identity.Staff)
		if !ok {
			return
		}
		id, err := strconv.Atoi(verified.Identity.Subject)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		user, err := s.repos.Users.GetByID(id)
		if err != nil || user.Blocked {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.revoke(verified)
		s.respondStaffToken(w, r, user)
	}
}

// TeamLoginHandler exchanges an access code for a team token
func (s *Server) TeamLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rallyapi.TeamLoginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				writeValidation(w, missingField("body"))
				return
			}
			writeValidation(w, rallyapi.FieldError{Loc: []any{"body"}, Msg: "JSON decode error", Type: "json_invalid"})
			return
		}
		if strings.TrimSpace(req.AccessCode) == "" {
			writeValidation(w, missingField("body", "access_code"))
			return
		}

		team, err := s.repos.Teams.GetByAccessCode(req.AccessCode)
		if err != nil {
			s.log.Info().Msg("Failed team login")
			writeDetail(w, http.StatusUnauthorized, "Invalid access code")
			return
		}
		s.respondTeamToken(w, team)
	}
}

// TeamRefreshHandler swaps a team bearer token for a new one
func (s *Server) TeamRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := bearerToken(r)
		verified, ok := s.verifyForRefresh(w, raw, identity.Team)
		if !ok {
			return
		}
		id, err := strconv.Atoi(verified.Identity.Subject)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		team, err := s.repos.Teams.Get(id)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.revoke(verified)
		s.respondTeamToken(w, team)
	}
}

// StaffMeHandler returns the account of the staff token
func (s *Server) StaffMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verified, _ := VerifiedToken(r.Context())
		id, err := strconv.Atoi(verified.Identity.Subject)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		user, err := s.repos.Users.GetByID(id)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// TeamMeHandler returns the team of the team token
func (s *Server) TeamMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verified, _ := VerifiedToken(r.Context())
		id, err := strconv.Atoi(verified.Identity.Subject)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Team not found")
			return
		}
		team, err := s.repos.Teams.Get(id)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Team not found")
			return
		}
		writeJSON(w, http.StatusOK, team)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) verifyForRefresh(w http.ResponseWriter, raw string, class identity.Class) (*jwt.Verified, bool) {
	if raw == "" {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return nil, false
	}
	verified, err := s.tokens.VerifyForRefresh(raw, class, s.config.GetRefreshWindow())
	if err != nil {
		s.log.Info().Err(err).Str("class", class.String()).Msg("Refresh rejected")
		writeDetail(w, http.StatusUnauthorized, tokenFailureDetail(err))
		return nil, false
	}
	return verified, true
}

// revoke retires a refreshed token so it cannot be refreshed twice
func (s *Server) revoke(v *jwt.Verified) {
	if v.JTI == "" {
		return
	}
	if dropped := s.revoked.Cleanup(jwt.NowTimeFunc()); dropped > 0 {
		s.log.Debug().Int("dropped", dropped).Msg("Pruned revoked tokens")
	}
	until := v.ExpiresAt.Add(s.config.GetRefreshWindow())
	if err := s.revoked.Add(v.JTI, until); err != nil {
		s.log.Err(err).Msg("Failed to revoke refreshed token")
	}
}

func (s *Server) respondStaffToken(w http.ResponseWriter, r *http.Request, user *users.User) {
	accessToken, err := s.creator.CreateStaffToken(user)
	if err != nil {
		s.log.Err(err).Int("user_id", user.ID).Msg("Failed to create staff token")
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    accessToken,
		Path:     rallyapi.RouteStaffRefresh,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((s.config.GetAccessTokenExpiry() + s.config.GetRefreshWindow()).Seconds()),
	})
	writeJSON(w, http.StatusOK, rallyapi.TokenResponse{AccessToken: accessToken, TokenType: "bearer"})
}

func (s *Server) respondTeamToken(w http.ResponseWriter, team *teams.Team) {
	accessToken, err := s.creator.CreateTeamToken(team)
	if err != nil {
		s.log.Err(err).Int("team_id", team.ID).Msg("Failed to create team token")
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	teamID := team.ID
	writeJSON(w, http.StatusOK, rallyapi.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		TeamID:      &teamID,
		TeamName:    team.Name,
	})
}
