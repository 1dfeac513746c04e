package rallyapi

// Credentials carries the login input of either identity class.
// Staff logins use Username and Password, team logins use AccessCode.
type Credentials struct {
	Username   string
	Password   string
	AccessCode string
}

// TeamLoginRequest is the JSON body of a team login
type TeamLoginRequest struct {
	AccessCode string `json:"access_code"`
}

// TokenResponse is returned by every login and refresh endpoint.
// TeamID and TeamName are only set by the team endpoints.
type TokenResponse struct {
	// AccessToken is the bearer token for protected endpoints
	AccessToken string `json:"access_token"`

	// TokenType is "bearer" when present
	TokenType string `json:"token_type,omitempty"`

	TeamID   *int   `json:"team_id,omitempty"`
	TeamName string `json:"team_name,omitempty"`
}
