package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// SessionStore persists login sessions and their rotating hashes.
type SessionStore interface {
	// CreateSession stores a new session with its initial hash.
	CreateSession(ctx context.Context, session *Session) (*Session, error)
	// GetSession loads a session by id.
	GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	// RotateHash swaps the session hash only if oldHash is still the live
	// one. A stale oldHash returns ErrRefreshRejected.
	RotateHash(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string) error
	// DeleteSession removes the session, invalidating outstanding refresh
	// tokens immediately.
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
	// DeleteSessionsForAccount removes every session the account owns.
	DeleteSessionsForAccount(ctx context.Context, accountID uuid.UUID) error
}

// AccountLookup is the read-only account access the issuer needs on refresh.
type AccountLookup interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error)
}

// TokenIssuer produces and rotates access/refresh token pairs bound to a
// session. Signing itself is pure; all state lives in the SessionStore.
type TokenIssuer struct {
	signers  *SignerSet
	sessions SessionStore
	accounts AccountLookup
	resolver *RoleResolver
	logger   Logger
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(signers *SignerSet, sessions SessionStore, accounts AccountLookup, resolver *RoleResolver, logger Logger) *TokenIssuer {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenIssuer{
		signers:  signers,
		sessions: sessions,
		accounts: accounts,
		resolver: resolver,
		logger:   logger,
	}
}

// IssuePair opens a fresh session for the account and returns a token pair
// bound to it.
func (t *TokenIssuer) IssuePair(ctx context.Context, account *Account, role Role) (*TokenPair, *Session, error) {
	session := &Session{
		ID:        uuid.New(),
		AccountID: account.ID,
		Hash:      newSessionHash(),
	}

	session, err := t.sessions.CreateSession(ctx, session)
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session")
	}

	pair, err := t.signPair(account, role, session)
	if err != nil {
		return nil, nil, err
	}

	return pair, session, nil
}

// Refresh validates the refresh token, rotates the session hash, and issues a
// new pair. The rotation is a compare-and-swap on the stored hash: the token
// that loses a concurrent refresh, or any replayed older token, is rejected
// with an unauthorized error.
func (t *TokenIssuer) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims := &RefreshClaims{}
	if err := t.signers.Refresh.Validate(refreshToken, claims); err != nil {
		return nil, err
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	session, err := t.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}

	if session.Hash != claims.Hash {
		return nil, ErrRefreshRejected
	}

	newHash := newSessionHash()
	if err := t.sessions.RotateHash(ctx, session.ID, claims.Hash, newHash); err != nil {
		return nil, err
	}
	session.Hash = newHash

	account, err := t.accounts.GetByIdentifier(ctx, session.AccountID.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account during refresh")
	}

	// Re-resolve the role so promotions and demotions land on the next
	// refresh without forcing a re-login.
	role, err := t.resolver.Resolve(ctx, account.RoleSnapshot())
	if err != nil {
		return nil, err
	}

	return t.signPair(account, role, session)
}

// Logout deletes the session outright.
func (t *TokenIssuer) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := t.sessions.DeleteSession(ctx, sessionID); err != nil {
		if goerrors.IsNotFound(err) {
			return ErrSessionNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}
	return nil
}

// InvalidateAccountSessions removes every session for the account, forcing
// re-login on all devices. Used after a password reset.
func (t *TokenIssuer) InvalidateAccountSessions(ctx context.Context, accountID uuid.UUID) error {
	if err := t.sessions.DeleteSessionsForAccount(ctx, accountID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate account sessions")
	}
	return nil
}

func (t *TokenIssuer) signPair(account *Account, role Role, session *Session) (*TokenPair, error) {
	accessClaims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: account.ID.String(),
		},
		UID:       account.ID.String(),
		UserRole:  role,
		SessionID: session.ID.String(),
		Username:  account.Username,
		Enabled:   account.Enabled,
	}
	expiresAt := t.signers.Access.Stamp(&accessClaims.RegisteredClaims)

	accessToken, err := t.signers.Access.SignClaims(accessClaims)
	if err != nil {
		return nil, err
	}

	refreshClaims := &RefreshClaims{
		SessionID: session.ID.String(),
		Hash:      session.Hash,
	}
	t.signers.Refresh.Stamp(&refreshClaims.RegisteredClaims)

	refreshToken, err := t.signers.Refresh.SignClaims(refreshClaims)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAtMs:  expiresAt.UnixMilli(),
	}, nil
}

func newSessionHash() string {
	return uuid.NewString()
}
