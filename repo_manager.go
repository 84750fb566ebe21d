package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Sessions() Sessions
	Activity() Activity
	RolesCatalog() *RolesCatalog
	FitterRoster() *FitterRoster
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	sessions Sessions
	activity Activity
	catalog  *RolesCatalog
	roster   *FitterRoster
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		sessions: NewSessionsRepository(db),
		activity: NewActivityRepository(db),
		catalog:  NewRolesCatalog(db),
		roster:   NewFitterRoster(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.activity == nil {
		return errors.New("repository activity should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Sessions() Sessions {
	return m.sessions
}

func (m mngr) Activity() Activity {
	return m.activity
}

func (m mngr) RolesCatalog() *RolesCatalog {
	return m.catalog
}

func (m mngr) FitterRoster() *FitterRoster {
	return m.roster
}
