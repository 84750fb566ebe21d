package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Auther wires the verifier, role resolver, and token issuer into the
// Authenticator interface the HTTP layer consumes.
type Auther struct {
	verifier     *CredentialVerifier
	resolver     *RoleResolver
	issuer       *TokenIssuer
	accounts     AccountLookup
	validator    TokenValidator
	activitySink ActivitySink
	logger       Logger
}

// NewAuthenticator builds the full login stack from the repository manager
// and configuration.
func NewAuthenticator(repo RepositoryManager, config Config) (*Auther, error) {
	logger := defLogger{}

	signers, err := NewSignerSet(config.GetTokenConfig(), logger)
	if err != nil {
		return nil, err
	}

	// Keep typed nils out of the resolver's interface fields.
	var roster RosterChecker
	if fr := repo.FitterRoster(); fr != nil {
		roster = fr
	}
	var catalog RoleCatalog
	if rc := repo.RolesCatalog(); rc != nil {
		catalog = rc
	}

	resolver := NewRoleResolver(roster, catalog, logger)

	return &Auther{
		verifier:     NewCredentialVerifier(repo.Accounts(), config, logger),
		resolver:     resolver,
		issuer:       NewTokenIssuer(signers, repo.Sessions(), repo.Accounts(), resolver, logger),
		accounts:     repo.Accounts(),
		validator:    NewAccessTokenValidator(signers.Access),
		activitySink: noopActivitySink{},
		logger:       logger,
	}, nil
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	if validator != nil {
		s.validator = validator
	}
	return s
}

// Issuer exposes the underlying TokenIssuer.
func (s *Auther) Issuer() *TokenIssuer {
	return s.issuer
}

// Login verifies credentials, resolves the effective role, opens a session,
// and returns the token pair.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	account, err := s.verifier.Verify(ctx, identifier, password)
	if err != nil {
		s.logger.Error("login verification error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", "", false, err.Error(), map[string]any{
			"identifier": identifier,
		})
		return nil, err
	}

	role, err := s.resolver.Resolve(ctx, account.RoleSnapshot())
	if err != nil {
		s.logger.Error("login role resolution error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromAccount(account), account.ID.String(), "", false, err.Error(), map[string]any{
			"identifier": identifier,
		})
		return nil, err
	}

	pair, session, err := s.issuer.IssuePair(ctx, account, role)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromAccount(account), account.ID.String(), "", false, err.Error(), map[string]any{
			"identifier": identifier,
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromAccount(account), account.ID.String(), session.ID.String(), true, "", map[string]any{
		"identifier": identifier,
	})

	return &LoginResult{
		Pair:    pair,
		Account: account,
		Role:    role,
	}, nil
}

// Refresh rotates the session hash and mints a new token pair.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, err := s.issuer.Refresh(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("refresh rejected: %v", err)
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, ActorRef{Type: "unknown"}, "", "", false, err.Error(), nil)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRefreshSuccess, ActorRef{Type: "user"}, "", "", true, "", nil)

	return pair, nil
}

// Logout deletes the session, invalidating its refresh token immediately.
func (s *Auther) Logout(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}

	if err := s.issuer.Logout(ctx, id); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{Type: "user"}, "", sessionID, true, "", nil)

	return nil
}

// WhoAmI loads the account and re-resolves its role, so a role change is
// visible before the next token refresh.
func (s *Auther) WhoAmI(ctx context.Context, accountID string) (*Account, Role, error) {
	account, err := s.accounts.GetByIdentifier(ctx, accountID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, Role{}, ErrAccountNotFound
		}
		return nil, Role{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	role, err := s.resolver.Resolve(ctx, account.RoleSnapshot())
	if err != nil {
		return nil, Role{}, err
	}

	return account, role, nil
}

// SessionFromToken validates a raw access token and returns its session view.
func (s *Auther) SessionFromToken(raw string) (*SessionObject, error) {
	claims, err := s.validator.Validate(raw)
	if err != nil {
		s.logger.Error("session from token validation failed: %v", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID, sessionID string, success bool, reason string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		SessionID: sessionID,
		Success:   success,
		Reason:    reason,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromAccount(account *Account) ActorRef {
	if account == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   account.ID.String(),
		Type: "user",
	}
}

var _ Authenticator = (*Auther)(nil)
