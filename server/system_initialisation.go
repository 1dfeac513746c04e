package server

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/rally-session/internal/config"
	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/teams"
	"github.com/jrsteele09/rally-session/token/claims"
	"github.com/jrsteele09/rally-session/users"
)

// InitialiseSystem makes sure the admin staff account and the seed team exist.
// Existing records are left untouched.
func (s *Server) InitialiseSystem(cfg config.SeedConfig) error {
	admin, err := s.initialiseAdmin(cfg)
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap admin: %w", err)
	}

	team, err := s.initialiseSeedTeam(cfg)
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap seed team: %w", err)
	}

	s.log.Info().
		Str("admin", admin.Username).
		Int("team_id", team.ID).
		Str("team_name", team.Name).
		Msg("System initialised")
	return nil
}

func (s *Server) initialiseAdmin(cfg config.SeedConfig) (*users.User, error) {
	existing, err := s.repos.Users.GetByUsername(cfg.GetAdminUsername())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, autherrors.ErrUserNotFound) {
		return nil, err
	}

	hash, err := users.HashPassword(cfg.GetAdminPassword())
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := &users.User{
		Username:     cfg.GetAdminUsername(),
		Name:         "Rally Admin",
		PasswordHash: hash,
		Scopes:       []string{claims.ScopeAdmin, claims.ScopeManagerRally},
	}
	if err := s.repos.Users.Upsert(admin); err != nil {
		return nil, err
	}
	s.log.Warn().Str("username", admin.Username).Msg("Created admin account with the configured password")
	return admin, nil
}

func (s *Server) initialiseSeedTeam(cfg config.SeedConfig) (*teams.Team, error) {
	existing, err := s.repos.Teams.GetByAccessCode(cfg.GetSeedTeamCode())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, autherrors.ErrInvalidAccessCode) {
		return nil, err
	}

	team := &teams.Team{
		ID:         cfg.GetSeedTeamID(),
		Name:       cfg.GetSeedTeamName(),
		AccessCode: cfg.GetSeedTeamCode(),
	}
	if err := s.repos.Teams.Upsert(team); err != nil {
		return nil, err
	}
	return team, nil
}
