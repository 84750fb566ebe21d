package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PurposeTokenService issues and redeems single-purpose tokens: confirm
// email, confirm new email, and password reset. Each purpose signs with its
// own secret, so a token can never be replayed across flows. Every
// verification failure collapses into the one generic invalid-hash error.
type PurposeTokenService struct {
	signers  *SignerSet
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

// NewPurposeTokenService creates the service with a log-only notifier and no
// activity sink.
func NewPurposeTokenService(signers *SignerSet, repo RepositoryManager) *PurposeTokenService {
	logger := defLogger{}
	return &PurposeTokenService{
		signers:  signers,
		repo:     repo,
		notifier: logNotifier{logger: logger},
		activity: noopActivitySink{},
		logger:   logger,
	}
}

// WithNotifier sets the outbound notification hook.
func (s *PurposeTokenService) WithNotifier(notifier Notifier) *PurposeTokenService {
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// WithActivitySink sets the sink used to emit purpose-token events.
func (s *PurposeTokenService) WithActivitySink(sink ActivitySink) *PurposeTokenService {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithLogger overrides the logger used by the service.
func (s *PurposeTokenService) WithLogger(logger Logger) *PurposeTokenService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// IssueConfirmEmailToken mints the token embedded in the confirmation link
// sent at registration.
func (s *PurposeTokenService) IssueConfirmEmailToken(accountID uuid.UUID) (string, error) {
	claims := &PurposeClaims{
		ConfirmUserID: accountID.String(),
	}
	s.signers.Confirm.Stamp(&claims.RegisteredClaims)

	return s.signers.Confirm.SignClaims(claims)
}

// IssueEmailChangeToken mints a token that, once redeemed, moves the account
// to newEmail.
func (s *PurposeTokenService) IssueEmailChangeToken(accountID uuid.UUID, newEmail string) (string, error) {
	claims := &PurposeClaims{
		ConfirmUserID: accountID.String(),
		NewEmail:      newEmail,
	}
	s.signers.Confirm.Stamp(&claims.RegisteredClaims)

	return s.signers.Confirm.SignClaims(claims)
}

// IssueResetToken mints a short-lived password reset token.
func (s *PurposeTokenService) IssueResetToken(accountID uuid.UUID) (string, error) {
	claims := &PurposeClaims{
		ForgotUserID: accountID.String(),
	}
	s.signers.Reset.Stamp(&claims.RegisteredClaims)

	return s.signers.Reset.SignClaims(claims)
}

// RequestEmailChange issues an email-change token and notifies the new
// address. The account keeps its old email until the token is redeemed.
func (s *PurposeTokenService) RequestEmailChange(ctx context.Context, accountID uuid.UUID, newEmail string) error {
	if _, err := s.repo.Accounts().GetByIdentifier(ctx, newEmail); err == nil {
		return ErrEmailExists
	} else if !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	token, err := s.IssueEmailChangeToken(accountID, newEmail)
	if err != nil {
		return err
	}

	if err := s.notifier.NotifyEmailChange(ctx, newEmail, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send email change notification")
	}

	return nil
}

// RequestPasswordReset looks the account up by identifier and sends a reset
// link. An unknown identifier succeeds silently so the endpoint cannot be
// used to probe which emails are registered.
func (s *PurposeTokenService) RequestPasswordReset(ctx context.Context, identifier string) error {
	account, err := s.repo.Accounts().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			s.logger.Debug("password reset requested for unknown identifier")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	token, err := s.IssueResetToken(account.ID)
	if err != nil {
		return err
	}

	if err := s.notifier.NotifyPasswordReset(ctx, account.Email, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send password reset notification")
	}

	s.recordActivity(ctx, ActivityEventPasswordResetRequest, account.ID.String(), true, "")

	return nil
}

// ConfirmEmail redeems a registration confirmation token and enables the
// account. An account that is missing or already enabled fails with NotFound,
// which makes redemption effectively single-use.
func (s *PurposeTokenService) ConfirmEmail(ctx context.Context, raw string) error {
	claims, err := s.verify(s.signers.Confirm, raw)
	if err != nil {
		return err
	}

	// Email-change tokens share the confirm secret; the claim shape keeps
	// them out of this flow.
	if claims.ConfirmUserID == "" || claims.NewEmail != "" || claims.ForgotUserID != "" {
		return ErrInvalidPurposeToken
	}

	accountID, err := uuid.Parse(claims.ConfirmUserID)
	if err != nil {
		return ErrInvalidPurposeToken
	}

	err = s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().GetByIdentifierTx(ctx, tx, accountID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for confirmation")
		}

		if account.Enabled {
			return ErrAccountNotFound
		}

		if _, err := s.repo.Accounts().EnableTx(ctx, tx, accountID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable account")
		}

		return nil
	})

	if err != nil {
		return err
	}

	s.recordActivity(ctx, ActivityEventEmailConfirmed, accountID.String(), true, "")

	return nil
}

// ConfirmNewEmail redeems an email-change token: the account's email moves to
// the token's NewEmail and the account is enabled.
func (s *PurposeTokenService) ConfirmNewEmail(ctx context.Context, raw string) error {
	claims, err := s.verify(s.signers.Confirm, raw)
	if err != nil {
		return err
	}

	if claims.ConfirmUserID == "" || claims.NewEmail == "" || claims.ForgotUserID != "" {
		return ErrInvalidPurposeToken
	}

	accountID, err := uuid.Parse(claims.ConfirmUserID)
	if err != nil {
		return ErrInvalidPurposeToken
	}

	err = s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Accounts().GetByIdentifierTx(ctx, tx, accountID.String()); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for email change")
		}

		if _, err := s.repo.Accounts().UpdateEmailTx(ctx, tx, accountID, claims.NewEmail); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account email")
		}

		return nil
	})

	if err != nil {
		return err
	}

	s.recordActivity(ctx, ActivityEventEmailChanged, accountID.String(), true, "")

	return nil
}

// ResetPassword redeems a reset token: every session the account owns is
// deleted first, forcing re-login everywhere, then the new hash is written.
func (s *PurposeTokenService) ResetPassword(ctx context.Context, raw, newPassword string) error {
	claims, err := s.verify(s.signers.Reset, raw)
	if err != nil {
		return err
	}

	if claims.ForgotUserID == "" || claims.ConfirmUserID != "" {
		return ErrInvalidPurposeToken
	}

	accountID, err := uuid.Parse(claims.ForgotUserID)
	if err != nil {
		return ErrInvalidPurposeToken
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	err = s.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Accounts().GetByIdentifierTx(ctx, tx, accountID.String()); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for password reset")
		}

		if err := s.repo.Sessions().DeleteSessionsForAccountTx(ctx, tx, accountID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate account sessions")
		}

		if err := s.repo.Accounts().ResetPasswordTx(ctx, tx, accountID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account password")
		}

		return nil
	})

	if err != nil {
		return err
	}

	s.recordActivity(ctx, ActivityEventPasswordResetFinalize, accountID.String(), true, "")

	return nil
}

// verify validates raw against the purpose signer. Expired, forged, and
// malformed tokens are indistinguishable to the caller.
func (s *PurposeTokenService) verify(signer *Signer, raw string) (*PurposeClaims, error) {
	claims := &PurposeClaims{}
	if err := signer.Validate(raw, claims); err != nil {
		s.logger.Debug("purpose token rejected: %v", err)
		return nil, ErrInvalidPurposeToken
	}
	return claims, nil
}

func (s *PurposeTokenService) runInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := s.repo.RunInTx(ctx, nil, fn)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "purpose token flow failed")
	}

	return nil
}

func (s *PurposeTokenService) recordActivity(ctx context.Context, eventType ActivityEventType, accountID string, success bool, reason string) {
	event := ActivityEvent{
		EventType: eventType,
		Actor: ActorRef{
			ID:   accountID,
			Type: "user",
		},
		AccountID:  accountID,
		Success:    success,
		Reason:     reason,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error during %s: %v", eventType, err)
	}
}
