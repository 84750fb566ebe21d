package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// CredentialStore is the account store surface the verifier depends on.
type CredentialStore interface {
	LockoutStore
	// GetByIdentifier resolves an account by email or username. Email
	// matching is case insensitive.
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error)
	// TrackSuccessfulLogin resets the failure counter after a good login.
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// CredentialVerifier validates identifier plus password against the account
// store, enforcing provider and lockout rules. It returns the account on
// success; it never resolves roles or mints tokens.
type CredentialVerifier struct {
	store       CredentialStore
	guard       *LockoutGuard
	hasher      PasswordAuthenticator
	maxAttempts int
	lockFor     time.Duration
	logger      Logger
}

// NewCredentialVerifier creates a verifier with the configured lockout
// thresholds.
func NewCredentialVerifier(store CredentialStore, config Config, logger Logger) *CredentialVerifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &CredentialVerifier{
		store:       store,
		guard:       NewLockoutGuard(store),
		hasher:      bcryptHasher{},
		maxAttempts: config.GetMaxLoginAttempts(),
		lockFor:     config.GetLockoutPeriod(),
		logger:      logger,
	}
}

// WithPasswordAuthenticator overrides the password hashing implementation.
func (v *CredentialVerifier) WithPasswordAuthenticator(hasher PasswordAuthenticator) *CredentialVerifier {
	if hasher != nil {
		v.hasher = hasher
	}
	return v
}

// Verify resolves the account and checks provider, lockout, and password, in
// that order. A lock that has lapsed is cleared before the password is
// evaluated. Failures past the lockout gate count toward the next lock.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, password string) (*Account, error) {
	account, err := v.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during verification")
	}

	if account.Provider != ProviderPassword {
		return nil, ErrWrongProvider.Clone().
			WithMetadata(map[string]any{"provider": account.Provider})
	}

	now := time.Now()

	if v.guard.IsLocked(account, now) {
		return nil, ErrAccountLocked
	}

	if err := v.guard.ClearIfExpired(ctx, account, now); err != nil {
		return nil, err
	}

	// Missing hash and wrong password produce the same failure so callers
	// cannot probe which accounts have a password set.
	if !account.HasPassword() {
		return nil, v.recordFailure(ctx, account)
	}

	if err := v.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, v.recordFailure(ctx, account)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password hash")
	}

	if err := v.store.TrackSuccessfulLogin(ctx, account); err != nil {
		v.logger.Error("failed to track successful login for %s: %v", account.ID, err)
	}

	return account, nil
}

func (v *CredentialVerifier) recordFailure(ctx context.Context, account *Account) error {
	if err := v.guard.RecordFailure(ctx, account, v.maxAttempts, v.lockFor); err != nil {
		v.logger.Error("failed to record login failure for %s: %v", account.ID, err)
	}
	return ErrMismatchedHashAndPassword
}
