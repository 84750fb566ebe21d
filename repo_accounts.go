package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"failed_login_attempts" = 0,
	"locked_until" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var EnableAccountSQL = `UPDATE "accounts" AS "acc"
SET
	"enabled" = TRUE
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var UpdateAccountEmailSQL = `UPDATE "accounts" AS "acc"
SET
	"email" = ?,
	"enabled" = TRUE
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// registerFailedLoginSQL increments the failure counter and arms the lock in
// the same statement, so concurrent failures cannot lose an update or race
// past the threshold.
var registerFailedLoginSQL = `UPDATE "accounts" AS "acc"
SET
	"failed_login_attempts" = "acc"."failed_login_attempts" + 1,
	"locked_until" = CASE
		WHEN "acc"."failed_login_attempts" + 1 >= ? THEN ?
		ELSE "acc"."locked_until"
	END
WHERE
	("acc"."id" = ?)
	AND "acc"."deleted_at" IS NULL;`

var clearLockoutSQL = `UPDATE "accounts" AS "acc"
SET
	"locked_until" = NULL,
	"failed_login_attempts" = 0
WHERE
	("acc"."id" = ?)
	AND "acc"."deleted_at" IS NULL;`

// Accounts is the account repository.
type Accounts interface {
	repository.Repository[*Account]

	RegisterFailedLogin(ctx context.Context, account *Account, maxAttempts int, lockFor time.Duration) error
	ClearLockout(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	Enable(ctx context.Context, id uuid.UUID) (*Account, error)
	EnableTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*Account, error)
	UpdateEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, email string) (*Account, error)
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)
	return a.Repository.CreateTx(ctx, tx, account)
}

// GetByIdentifier resolves an account by id, email, or username, trying the
// most specific shape first. Email matching is case insensitive.
func (a *accounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	options := resolveAccountIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		where := fmt.Sprintf("?TableAlias.%s = ?", opt.column)
		value := opt.value
		if opt.column == "email" {
			where = "LOWER(?TableAlias.email) = ?"
			value = strings.ToLower(opt.value)
		}

		err := q.
			Where(where, value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *accounts) RegisterFailedLogin(ctx context.Context, account *Account, maxAttempts int, lockFor time.Duration) error {
	lockUntil := time.Now().Add(lockFor)
	_, err := a.db.NewRaw(
		registerFailedLoginSQL,
		maxAttempts, lockUntil, account.ID,
	).Exec(ctx)

	return err
}

func (a *accounts) ClearLockout(ctx context.Context, account *Account) error {
	_, err := a.db.NewRaw(clearLockoutSQL, account.ID).Exec(ctx)
	return err
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	_, err := a.db.NewRaw(clearLockoutSQL, account.ID).Exec(ctx)
	return err
}

func (a *accounts) Enable(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.EnableTx(ctx, a.db, id)
}

func (a *accounts) EnableTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	return a.rawReturningOne(ctx, tx, EnableAccountSQL, id.String())
}

func (a *accounts) UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*Account, error) {
	return a.UpdateEmailTx(ctx, a.db, id, email)
}

func (a *accounts) UpdateEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID, email string) (*Account, error) {
	return a.rawReturningOne(ctx, tx, UpdateAccountEmailSQL, email, id.String())
}

func (a *accounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	_, err := a.rawReturningOne(ctx, tx, ResetAccountPasswordSQL, passwordHash, id.String())
	return err
}

func (a *accounts) rawReturningOne(ctx context.Context, tx bun.IDB, query string, args ...any) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"query": "accounts update",
			})
	}

	return res[0], nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Provider == "" {
		record.Provider = ProviderPassword
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
