package auth

import (
	"errors"
	"strings"
)

// ErrAccessDenied is returned when an email fails the domain and admin allow-list check.
var ErrAccessDenied = errors.New("access denied")

// Role is the authorization level carried by a session.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Identity is what the identity provider asserted about the person signing in.
// It carries facts only; admission and role are decided by Policy.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}

// NormalizeEmail returns the canonical form used as the directory key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// googleClaims contains the relevant claims from a Google ID token.
type googleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (c googleClaims) identity() Identity {
	return Identity{
		Subject:       c.Sub,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		DisplayName:   c.Name,
		AvatarURL:     c.Picture,
	}
}
