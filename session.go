package auth

import (
	"fmt"
	"time"
)

// SessionObject is the decoded view of a validated access token, handed to
// request handlers through the router context.
type SessionObject struct {
	UserID         string     `json:"user_id,omitempty"`
	SessionID      string     `json:"session_id,omitempty"`
	UserRole       Role       `json:"role"`
	Username       string     `json:"username,omitempty"`
	Enabled        bool       `json:"enabled,omitempty"`
	Issuer         string     `json:"issuer,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetSessionID() string {
	return s.SessionID
}

func (s *SessionObject) GetRole() Role {
	return s.UserRole
}

// HasRole checks if the session carries the named role.
func (s *SessionObject) HasRole(name string) bool {
	return s.UserRole.Name == name
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s sid=%s role=%s iss=%s iat=%s",
		s.UserID,
		s.SessionID,
		s.UserRole.Name,
		s.Issuer,
		issuedAt,
	)
}

// sessionFromAuthClaims creates a SessionObject from validated claims.
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToDecodeSession
	}

	session := &SessionObject{
		UserID:    claims.AccountID(),
		SessionID: claims.Session(),
		UserRole:  claims.Role(),
	}

	if access, ok := claims.(*AccessClaims); ok {
		session.Username = access.Username
		session.Enabled = access.Enabled
		session.Issuer = access.RegisteredClaims.Issuer
	}

	if issuedAt := claims.IssuedAt(); !issuedAt.IsZero() {
		session.IssuedAt = &issuedAt
	}
	if expiresAt := claims.Expires(); !expiresAt.IsZero() {
		session.ExpirationDate = &expiresAt
	}

	return session, nil
}
