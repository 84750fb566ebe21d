package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenConfig enumerates every signing secret and expiry the module uses.
// Each purpose pair is independent so secrets can be rotated one at a time
// without invalidating tokens of the other purposes.
type TokenConfig struct {
	Issuer string `json:"issuer"`

	AccessSecret string        `json:"-"`
	AccessTTL    time.Duration `json:"access_ttl"`

	RefreshSecret string        `json:"-"`
	RefreshTTL    time.Duration `json:"refresh_ttl"`

	ConfirmSecret string        `json:"-"`
	ConfirmTTL    time.Duration `json:"confirm_ttl"`

	ResetSecret string        `json:"-"`
	ResetTTL    time.Duration `json:"reset_ttl"`
}

// Validate ensures every purpose has a secret and a positive expiry.
func (c TokenConfig) Validate() error {
	pairs := []struct {
		name   string
		secret string
		ttl    time.Duration
	}{
		{"access", c.AccessSecret, c.AccessTTL},
		{"refresh", c.RefreshSecret, c.RefreshTTL},
		{"confirm", c.ConfirmSecret, c.ConfirmTTL},
		{"reset", c.ResetSecret, c.ResetTTL},
	}

	for _, p := range pairs {
		if p.secret == "" {
			return goerrors.New("missing signing secret", goerrors.CategoryBadInput).
				WithMetadata(map[string]any{"purpose": p.name})
		}
		if p.ttl <= 0 {
			return goerrors.New("token TTL must be positive", goerrors.CategoryBadInput).
				WithMetadata(map[string]any{"purpose": p.name})
		}
	}

	return nil
}

// SimpleConfig is a plain-struct Config implementation for wiring and tests.
type SimpleConfig struct {
	Tokens           TokenConfig
	ContextKey       string
	TokenLookup      string
	AuthScheme       string
	MaxLoginAttempts int
	LockoutPeriod    time.Duration
}

func (c SimpleConfig) GetTokenConfig() TokenConfig { return c.Tokens }

func (c SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c SimpleConfig) GetTokenLookup() string { return c.TokenLookup }

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetMaxLoginAttempts() int {
	if c.MaxLoginAttempts <= 0 {
		return DefaultMaxLoginAttempts
	}
	return c.MaxLoginAttempts
}

func (c SimpleConfig) GetLockoutPeriod() time.Duration {
	if c.LockoutPeriod <= 0 {
		return DefaultLockoutPeriod
	}
	return c.LockoutPeriod
}

var _ Config = SimpleConfig{}
