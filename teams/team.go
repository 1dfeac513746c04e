package teams

import "strings"

// Team is a competing Rally team. Teams log in with their access code and have no
// password or scopes.
type Team struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	AccessCode string `json:"-"` // never serialised
}

// NormalizeAccessCode makes access code lookups ignore case and surrounding spaces
func NormalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
