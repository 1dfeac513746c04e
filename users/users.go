package users

import (
	"slices"
	"strconv"
	"time"

	"github.com/jrsteele09/rally-session/token/claims"
	"golang.org/x/crypto/bcrypt"
)

// User is a Rally staff account. Staff tokens carry its ID as subject and its scopes.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	Image        string    `json:"image,omitempty"`
	PasswordHash string    `json:"-"` // never serialised
	Scopes       []string  `json:"scopes,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
	LastLogin    time.Time `json:"last_login,omitempty"`
	Blocked      bool      `json:"blocked,omitempty"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword reports whether password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

// Subject is the token subject of the user
func (u *User) Subject() string {
	return strconv.Itoa(u.ID)
}

func (u *User) HasScope(scope string) bool {
	return slices.Contains(u.Scopes, scope)
}

// IsAdmin returns true if the user holds the admin scope
func (u *User) IsAdmin() bool {
	return u.HasScope(claims.ScopeAdmin)
}

// Identity returns the claims a staff token issued to u carries
func (u *User) Identity() *claims.Identity {
	return &claims.Identity{
		Subject: u.Subject(),
		Scopes:  slices.Clone(u.Scopes),
		Name:    u.Name,
		Email:   u.Email,
		Image:   u.Image,
	}
}
