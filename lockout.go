package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Lockout defaults. Overridable through Config.
const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutPeriod    = 24 * time.Hour
)

// LockoutStore is the slice of the account store the guard needs: clearing an
// expired lock and the atomic failure counter.
type LockoutStore interface {
	// ClearLockout resets locked_until and the failure counter. Idempotent.
	ClearLockout(ctx context.Context, account *Account) error
	// RegisterFailedLogin increments the failure counter and sets the lock
	// once the threshold is reached, in one atomic statement.
	RegisterFailedLogin(ctx context.Context, account *Account, maxAttempts int, lockFor time.Duration) error
}

// LockoutGuard evaluates and clears time-boxed lockout state. It holds no
// mutable state of its own; everything lives on the account row.
type LockoutGuard struct {
	store LockoutStore
}

// NewLockoutGuard creates a LockoutGuard backed by store.
func NewLockoutGuard(store LockoutStore) *LockoutGuard {
	return &LockoutGuard{store: store}
}

// IsLocked reports whether the account is locked at the given instant.
func (g *LockoutGuard) IsLocked(account *Account, now time.Time) bool {
	return account != nil && account.LockedUntil != nil && account.LockedUntil.After(now)
}

// ClearIfExpired persists a lockout clear when the lock has lapsed. Repeated
// calls after expiry are no-ops beyond the first successful clear.
func (g *LockoutGuard) ClearIfExpired(ctx context.Context, account *Account, now time.Time) error {
	if account == nil || account.LockedUntil == nil {
		return nil
	}
	if account.LockedUntil.After(now) {
		return nil
	}

	if err := g.store.ClearLockout(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear expired lockout")
	}

	account.LockedUntil = nil
	account.FailedLoginAttempts = 0

	return nil
}

// RecordFailure registers a failed login attempt. The store performs the
// increment and the threshold check in one statement so concurrent failures
// never lose an update.
func (g *LockoutGuard) RecordFailure(ctx context.Context, account *Account, maxAttempts int, lockFor time.Duration) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	if lockFor <= 0 {
		lockFor = DefaultLockoutPeriod
	}
	return g.store.RegisterFailedLogin(ctx, account, maxAttempts, lockFor)
}
