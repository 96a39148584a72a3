package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the platform's record of an administrative user, as returned by the
// authentication endpoints and kept alongside the bearer token.
type User struct {
	ID               string `json:"id,omitempty"`
	Email            string `json:"email,omitempty"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Role             string `json:"role,omitempty"`
	Verified         bool   `json:"verified,omitempty"`
	TwoFactorEnabled bool   `json:"two_factor_enabled,omitempty"`
}

// Session is the client-side record of a successful authentication: the
// bearer token plus the user it belongs to. A session with either part
// missing is treated as no session at all.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the session carries both a token and a user record.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	return s.Token != "" && s.User.ID != ""
}

// TokenExpired reports whether the session's bearer token is a JWT whose
// expiry has passed. Opaque (non-JWT) tokens are never considered expired
// here; the server remains authoritative for those.
func (s *Session) TokenExpired(now time.Time) bool {
	if s == nil || s.Token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s.Token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
