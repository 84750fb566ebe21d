package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, sessionID string) error
	WhoAmI(ctx context.Context, accountID string) (*Account, Role, error)
	SessionFromToken(token string) (*SessionObject, error)
}

// LoginResult is what a successful login produces: the token pair plus the
// account and its freshly resolved role.
type LoginResult struct {
	Pair    *TokenPair `json:"pair"`
	Account *Account   `json:"account"`
	Role    Role       `json:"role"`
}

// TokenPair is an access/refresh token pair. ExpiresAtMs is the access
// token's expiry in epoch milliseconds for client display.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAtMs  int64  `json:"accessTokenExpiresAtMs"`
}

// LoginPayload is the contract HTTP login handlers bind against.
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// Config holds auth options
type Config interface {
	GetTokenConfig() TokenConfig
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetMaxLoginAttempts() int
	GetLockoutPeriod() time.Duration
}

// Notifier delivers purpose-token links to the account holder. Mail content
// and templating live outside this module; the default implementation just
// logs the payload.
type Notifier interface {
	NotifyConfirmEmail(ctx context.Context, email, token string) error
	NotifyEmailChange(ctx context.Context, newEmail, token string) error
	NotifyPasswordReset(ctx context.Context, email, token string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

type logNotifier struct {
	logger Logger
}

func (n logNotifier) NotifyConfirmEmail(_ context.Context, email, token string) error {
	n.logger.Info("confirm email notification to %s link /confirm-email/%s", email, token)
	return nil
}

func (n logNotifier) NotifyEmailChange(_ context.Context, newEmail, token string) error {
	n.logger.Info("email change notification to %s link /confirm-new-email/%s", newEmail, token)
	return nil
}

func (n logNotifier) NotifyPasswordReset(_ context.Context, email, token string) error {
	n.logger.Info("password reset notification to %s link /reset-password/%s", email, token)
	return nil
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
