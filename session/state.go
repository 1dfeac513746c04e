package session

import (
	"strconv"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/token/claims"
	"github.com/jrsteele09/rally-session/tokenstore"
)

// Phase is the lifecycle position of a session
type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseUnauthenticated
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is the observable session of one identity class.
// IsAuthenticated holds exactly when Token is set and Claims has a subject.
type State struct {
	Phase           Phase
	IsAuthenticated bool
	IsLoading       bool // Initializing, or a login is in flight
	Token           string
	Claims          *claims.Identity
	Metadata        tokenstore.Metadata
}

func unauthenticated() State {
	return State{Phase: PhaseUnauthenticated}
}

// resolve derives the session carried by token and its metadata.
// Team tokens may be opaque, in which case the team identity comes from the metadata.
func resolve(class identity.Class, token string, md tokenstore.Metadata) State {
	if token == "" {
		return unauthenticated()
	}

	// A malformed token is no identity, never an error
	id, _ := claims.Decode(token)
	if class == identity.Team && !id.HasSubject() && md.TeamID != nil {
		id = &claims.Identity{Subject: strconv.Itoa(*md.TeamID), Name: md.TeamName}
	}
	if !id.HasSubject() {
		return unauthenticated()
	}

	if class == identity.Staff {
		md.Claims = id
	}
	return State{
		Phase:           PhaseAuthenticated,
		IsAuthenticated: true,
		Token:           token,
		Claims:          id,
		Metadata:        md,
	}
}
