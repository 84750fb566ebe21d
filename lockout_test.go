package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/saddlefit/go-auth"
	"github.com/stretchr/testify/assert"
)

func TestLockoutGuardIsLocked(t *testing.T) {
	guard := auth.NewLockoutGuard(new(MockCredentialStore))
	now := time.Now()

	t.Run("Nil account", func(t *testing.T) {
		assert.False(t, guard.IsLocked(nil, now))
	})

	t.Run("No lock set", func(t *testing.T) {
		assert.False(t, guard.IsLocked(&auth.Account{}, now))
	})

	t.Run("Active lock", func(t *testing.T) {
		until := now.Add(time.Hour)
		assert.True(t, guard.IsLocked(&auth.Account{LockedUntil: &until}, now))
	})

	t.Run("Expired lock", func(t *testing.T) {
		until := now.Add(-time.Minute)
		assert.False(t, guard.IsLocked(&auth.Account{LockedUntil: &until}, now))
	})
}

func TestLockoutGuardClearIfExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("Clears lapsed lock and resets in memory state", func(t *testing.T) {
		store := new(MockCredentialStore)
		guard := auth.NewLockoutGuard(store)

		until := now.Add(-time.Minute)
		account := &auth.Account{LockedUntil: &until, FailedLoginAttempts: 5}

		store.On("ClearLockout", ctx, account).Return(nil).Once()

		assert.NoError(t, guard.ClearIfExpired(ctx, account, now))
		assert.Nil(t, account.LockedUntil)
		assert.Zero(t, account.FailedLoginAttempts)

		// Second call is a no-op once the lock is gone.
		assert.NoError(t, guard.ClearIfExpired(ctx, account, now))
		store.AssertExpectations(t)
	})

	t.Run("Active lock left alone", func(t *testing.T) {
		store := new(MockCredentialStore)
		guard := auth.NewLockoutGuard(store)

		until := now.Add(time.Hour)
		account := &auth.Account{LockedUntil: &until}

		assert.NoError(t, guard.ClearIfExpired(ctx, account, now))
		assert.NotNil(t, account.LockedUntil)
		store.AssertNotCalled(t, "ClearLockout")
	})
}

func TestLockoutGuardRecordFailure(t *testing.T) {
	ctx := context.Background()
	account := &auth.Account{}

	t.Run("Passes thresholds to the store", func(t *testing.T) {
		store := new(MockCredentialStore)
		guard := auth.NewLockoutGuard(store)

		store.On("RegisterFailedLogin", ctx, account, 3, time.Hour).Return(nil).Once()

		assert.NoError(t, guard.RecordFailure(ctx, account, 3, time.Hour))
		store.AssertExpectations(t)
	})

	t.Run("Zero values fall back to defaults", func(t *testing.T) {
		store := new(MockCredentialStore)
		guard := auth.NewLockoutGuard(store)

		store.On("RegisterFailedLogin", ctx, account, auth.DefaultMaxLoginAttempts, auth.DefaultLockoutPeriod).
			Return(nil).Once()

		assert.NoError(t, guard.RecordFailure(ctx, account, 0, 0))
		store.AssertExpectations(t)
	})
}
