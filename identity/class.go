package identity

import (
	"fmt"
	"strings"
)

// Class is one of the two independent authentication domains of Rally.
// Each class has its own token, storage keys, login endpoint and refresh endpoint.
type Class string

const (
	// Staff covers staff and admin users (NEI accounts)
	Staff Class = "staff"
	// Team covers rally teams logged in with an access code
	Team Class = "team"
)

// Classes lists every identity class in a stable order.
var Classes = []Class{Staff, Team}

func (c Class) String() string {
	return string(c)
}

// Valid reports whether c is a known identity class.
func (c Class) Valid() bool {
	return c == Staff || c == Team
}

// ParseClass converts user input into a Class.
func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown identity class %q (expected %q or %q)", s, Staff, Team)
	}
	return c, nil
}
