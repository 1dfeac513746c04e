// Package tokenstore persists bearer tokens and their session metadata, one entry per
// identity class, on top of a swappable key/value Backend.
package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/rally-session/identity"
	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/token/claims"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend is a flat string key/value persistence layer.
type Backend interface {
	// Get returns the value stored under key. A missing key is not an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Put stores every entry at once
	Put(ctx context.Context, entries map[string]string) error

	// Delete removes every key at once. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Keys names the two storage entries of an identity class.
type Keys struct {
	Token    string
	Metadata string
}

var classKeys = map[identity.Class]Keys{
	identity.Staff: {Token: "rally_token", Metadata: "rally_user"},
	identity.Team:  {Token: "team_token", Metadata: "team_data"},
}

// KeysFor returns the storage keys used for class.
func KeysFor(class identity.Class) (Keys, error) {
	keys, ok := classKeys[class]
	if !ok {
		return Keys{}, autherrors.Wrapf(autherrors.ErrUnknownClass, "[tokenstore] class %q", class)
	}
	return keys, nil
}

// Metadata is the JSON blob persisted next to a token.
// Team sessions carry TeamID and TeamName, staff sessions carry the decoded claims.
type Metadata struct {
	TeamID   *int             `json:"team_id,omitempty"`
	TeamName string           `json:"team_name,omitempty"`
	Claims   *claims.Identity `json:"claims,omitempty"`
}

// Entry is what Read recovers for a class.
type Entry struct {
	Token    string
	Metadata Metadata
}

// Store reads and writes class scoped session entries.
type Store struct {
	backend Backend
	log     zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for self-healing reports
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New creates a Store on top of backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the entry for class, or nil when there is none.
// A token whose metadata is missing or invalid reads as absent and both keys are
// removed, as is metadata left without a token.
func (s *Store) Read(ctx context.Context, class identity.Class) (*Entry, error) {
	keys, err := KeysFor(class)
	if err != nil {
		return nil, err
	}

	token, hasToken, err := s.backend.Get(ctx, keys.Token)
	if err != nil {
		return nil, fmt.Errorf("[tokenstore Read] token for %s: %w", class, err)
	}
	rawMetadata, hasMetadata, err := s.backend.Get(ctx, keys.Metadata)
	if err != nil {
		return nil, fmt.Errorf("[tokenstore Read] metadata for %s: %w", class, err)
	}

	if !hasToken || token == "" {
		if hasMetadata {
			s.heal(ctx, class, "metadata without token")
		}
		return nil, nil
	}
	if !hasMetadata {
		s.heal(ctx, class, "token without metadata")
		return nil, nil
	}

	md, err := DecodeMetadata(class, []byte(rawMetadata))
	if err != nil {
		s.heal(ctx, class, err.Error())
		return nil, nil
	}

	return &Entry{Token: token, Metadata: md}, nil
}

// Write persists token and metadata for class in a single backend call.
func (s *Store) Write(ctx context.Context, class identity.Class, token string, md Metadata) error {
	keys, err := KeysFor(class)
	if err != nil {
		return err
	}
	if err := md.Validate(class); err != nil {
		return fmt.Errorf("[tokenstore Write] %w", err)
	}

	blob, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("[tokenstore Write] failed to marshal metadata: %w", err)
	}

	if err := s.backend.Put(ctx, map[string]string{
		keys.Token:    token,
		keys.Metadata: string(blob),
	}); err != nil {
		return fmt.Errorf("[tokenstore Write] %s: %w", class, err)
	}
	return nil
}

// Clear removes both entries of class.
func (s *Store) Clear(ctx context.Context, class identity.Class) error {
	keys, err := KeysFor(class)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, keys.Token, keys.Metadata); err != nil {
		return fmt.Errorf("[tokenstore Clear] %s: %w", class, err)
	}
	return nil
}

func (s *Store) heal(ctx context.Context, class identity.Class, reason string) {
	s.log.Warn().Str("class", class.String()).Str("reason", reason).Msg("Discarding stale session entry")
	if err := s.Clear(ctx, class); err != nil {
		s.log.Err(err).Str("class", class.String()).Msg("Failed to discard stale session entry")
	}
}

// DecodeMetadata parses a persisted metadata blob and checks it fits class.
func DecodeMetadata(class identity.Class, raw []byte) (Metadata, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return Metadata{}, autherrors.Wrapf(autherrors.ErrInvalidMetadata, "not a JSON object")
	}
	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return Metadata{}, autherrors.Wrapf(autherrors.ErrInvalidMetadata, "%s", err.Error())
	}
	if err := md.Validate(class); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// Validate checks the metadata shape required by class.
func (m Metadata) Validate(class identity.Class) error {
	switch class {
	case identity.Team:
		if m.TeamID == nil || m.TeamName == "" {
			return autherrors.Wrapf(autherrors.ErrInvalidMetadata, "team metadata needs team_id and team_name")
		}
	case identity.Staff:
	default:
		return autherrors.Wrapf(autherrors.ErrUnknownClass, "class %q", class)
	}
	return nil
}
