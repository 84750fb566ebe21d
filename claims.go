package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read side of a validated access token, consumed by the
// JWT middleware and context helpers.
type AuthClaims interface {
	Subject() string
	AccountID() string
	Role() Role
	Session() string
	Expires() time.Time
	IssuedAt() time.Time
}

// AccessClaims are the claims carried by an access token. Username and
// Enabled exist for quick client display only; authorization always goes
// through the embedded role.
type AccessClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	UserRole  Role   `json:"role"`
	SessionID string `json:"sid,omitempty"`
	Username  string `json:"username,omitempty"`
	Enabled   bool   `json:"enabled,omitempty"`
}

var _ AuthClaims = (*AccessClaims)(nil)

func (c *AccessClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account the token was issued for.
func (c *AccessClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

func (c *AccessClaims) Role() Role {
	return c.UserRole
}

// Session returns the session id the token is bound to.
func (c *AccessClaims) Session() string {
	return c.SessionID
}

func (c *AccessClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

func (c *AccessClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// RefreshClaims are the claims carried by a refresh token: the session id and
// the session hash that was live at issue time, nothing else.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	Hash      string `json:"hash"`
}

// PurposeClaims are the claims of single-purpose tokens. The purpose itself
// is implicit in the secret used to sign: confirm tokens set ConfirmUserID
// (and NewEmail for email changes), reset tokens set ForgotUserID.
type PurposeClaims struct {
	jwt.RegisteredClaims
	ConfirmUserID string `json:"confirmUserId,omitempty"`
	NewEmail      string `json:"newEmail,omitempty"`
	ForgotUserID  string `json:"forgotUserId,omitempty"`
}
