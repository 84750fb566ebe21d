package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	auth "github.com/saddlefit/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// MockAccounts embeds the Accounts interface so only the methods a test
// exercises need an expectation.
type MockAccounts struct {
	mock.Mock
	auth.Accounts
}

func (m *MockAccounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.Account, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockAccounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*auth.Account, error) {
	args := m.Called(ctx, tx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, tx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockAccounts) EnableTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.Account, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockAccounts) UpdateEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, email string) (*auth.Account, error) {
	args := m.Called(ctx, tx, id, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Account), args.Error(1)
}

func (m *MockAccounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) TrackSuccessfulLogin(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) ClearLockout(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) RegisterFailedLogin(ctx context.Context, account *auth.Account, maxAttempts int, lockFor time.Duration) error {
	args := m.Called(ctx, account, maxAttempts, lockFor)
	return args.Error(0)
}

// MockSessions embeds the Sessions interface for the same reason.
type MockSessions struct {
	mock.Mock
	auth.Sessions
}

func (m *MockSessions) DeleteSessionsForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	args := m.Called(ctx, tx, accountID)
	return args.Error(0)
}

func (m *MockSessions) CreateSession(ctx context.Context, session *auth.Session) (*auth.Session, error) {
	args := m.Called(ctx, session)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	if args.Get(0) == nil {
		return session, nil
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockSessions) GetSession(ctx context.Context, sessionID uuid.UUID) (*auth.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockSessions) RotateHash(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string) error {
	args := m.Called(ctx, sessionID, oldHash, newHash)
	return args.Error(0)
}

func (m *MockSessions) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// fakeRepo is a RepositoryManager whose transactions run the callback
// directly, without a database.
type fakeRepo struct {
	accounts *MockAccounts
	sessions *MockSessions
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts: new(MockAccounts),
		sessions: new(MockSessions),
	}
}

func (r *fakeRepo) Validate() error { return nil }
func (r *fakeRepo) MustValidate()   {}

func (r *fakeRepo) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

func (r *fakeRepo) Accounts() auth.Accounts          { return r.accounts }
func (r *fakeRepo) Sessions() auth.Sessions          { return r.sessions }
func (r *fakeRepo) Activity() auth.Activity          { return nil }
func (r *fakeRepo) RolesCatalog() *auth.RolesCatalog { return nil }
func (r *fakeRepo) FitterRoster() *auth.FitterRoster { return nil }

func newPurposeService(t *testing.T, repo auth.RepositoryManager) (*auth.PurposeTokenService, *auth.SignerSet) {
	t.Helper()
	signers, err := auth.NewSignerSet(testTokenConfig(), nil)
	require.NoError(t, err)
	return auth.NewPurposeTokenService(signers, repo), signers
}

func TestConfirmEmail(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("Enables a pending account", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueConfirmEmailToken(accountID)
		require.NoError(t, err)

		pending := &auth.Account{ID: accountID, Enabled: false}
		repo.accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, accountID.String()).
			Return(pending, nil).Once()
		repo.accounts.On("EnableTx", mock.Anything, mock.Anything, accountID).
			Return(pending, nil).Once()

		assert.NoError(t, service.ConfirmEmail(ctx, token))
		repo.accounts.AssertExpectations(t)
	})

	t.Run("Already enabled account reads as not found", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueConfirmEmailToken(accountID)
		require.NoError(t, err)

		enabled := &auth.Account{ID: accountID, Enabled: true}
		repo.accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, accountID.String()).
			Return(enabled, nil).Once()

		err = service.ConfirmEmail(ctx, token)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
		repo.accounts.AssertNotCalled(t, "EnableTx")
	})

	t.Run("Missing account", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueConfirmEmailToken(accountID)
		require.NoError(t, err)

		repo.accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, accountID.String()).
			Return(nil, repository.NewRecordNotFound()).Once()

		err = service.ConfirmEmail(ctx, token)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("Email change token cannot confirm registration", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueEmailChangeToken(accountID, "new@example.com")
		require.NoError(t, err)

		err = service.ConfirmEmail(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidPurposeToken)
	})

	t.Run("Reset token cannot confirm registration", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueResetToken(accountID)
		require.NoError(t, err)

		err = service.ConfirmEmail(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidPurposeToken)
	})

	t.Run("Garbage token", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		err := service.ConfirmEmail(ctx, "not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidPurposeToken)
	})
}

func TestConfirmNewEmail(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("Moves the account to the new email", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueEmailChangeToken(accountID, "new@example.com")
		require.NoError(t, err)

		account := &auth.Account{ID: accountID, Email: "old@example.com"}
		repo.accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, accountID.String()).
			Return(account, nil).Once()
		repo.accounts.On("UpdateEmailTx", mock.Anything, mock.Anything, accountID, "new@example.com").
			Return(account, nil).Once()

		assert.NoError(t, service.ConfirmNewEmail(ctx, token))
		repo.accounts.AssertExpectations(t)
	})

	t.Run("Registration token cannot change email", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueConfirmEmailToken(accountID)
		require.NoError(t, err)

		err = service.ConfirmNewEmail(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidPurposeToken)
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("Resets the hash and kills every session", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueResetToken(accountID)
		require.NoError(t, err)

		account := &auth.Account{ID: accountID}
		repo.accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, accountID.String()).
			Return(account, nil).Once()
		repo.sessions.On("DeleteSessionsForAccountTx", mock.Anything, mock.Anything, accountID).
			Return(nil).Once()
		repo.accounts.On("ResetPasswordTx", mock.Anything, mock.Anything, accountID, mock.AnythingOfType("string")).
			Return(nil).Once()

		assert.NoError(t, service.ResetPassword(ctx, token, "brand-new-password"))
		repo.accounts.AssertExpectations(t)
		repo.sessions.AssertExpectations(t)
	})

	t.Run("Confirm token cannot reset a password", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueConfirmEmailToken(accountID)
		require.NoError(t, err)

		err = service.ResetPassword(ctx, token, "brand-new-password")
		assert.ErrorIs(t, err, auth.ErrInvalidPurposeToken)
	})

	t.Run("Empty replacement password", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		token, err := service.IssueResetToken(accountID)
		require.NoError(t, err)

		err = service.ResetPassword(ctx, token, "")
		assert.Error(t, err)
		repo.sessions.AssertNotCalled(t, "DeleteSessionsForAccountTx")
	})
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown identifier succeeds silently", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		repo.accounts.On("GetByIdentifier", mock.Anything, "nobody@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		assert.NoError(t, service.RequestPasswordReset(ctx, "nobody@example.com"))
	})

	t.Run("Known identifier sends a link", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		account := &auth.Account{ID: uuid.New(), Email: "rider@example.com"}
		repo.accounts.On("GetByIdentifier", mock.Anything, "rider@example.com").
			Return(account, nil).Once()

		notified := false
		service.WithNotifier(notifierFunc(func() { notified = true }))

		assert.NoError(t, service.RequestPasswordReset(ctx, "rider@example.com"))
		assert.True(t, notified)
	})
}

func TestRequestEmailChange(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("Taken email is rejected", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		repo.accounts.On("GetByIdentifier", mock.Anything, "taken@example.com").
			Return(&auth.Account{ID: uuid.New()}, nil).Once()

		err := service.RequestEmailChange(ctx, accountID, "taken@example.com")
		assert.ErrorIs(t, err, auth.ErrEmailExists)
	})

	t.Run("Free email gets a token", func(t *testing.T) {
		repo := newFakeRepo()
		service, _ := newPurposeService(t, repo)

		repo.accounts.On("GetByIdentifier", mock.Anything, "free@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		assert.NoError(t, service.RequestEmailChange(ctx, accountID, "free@example.com"))
	})
}

// notifierFunc flags delivery for assertions.
type notifierFunc func()

func (f notifierFunc) NotifyConfirmEmail(context.Context, string, string) error  { f(); return nil }
func (f notifierFunc) NotifyEmailChange(context.Context, string, string) error   { f(); return nil }
func (f notifierFunc) NotifyPasswordReset(context.Context, string, string) error { f(); return nil }
