package auth

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RolesCatalog loads the roles table into a name to id index once and serves
// every lookup from memory. The catalog changes through migrations only, so a
// process-lifetime cache is safe.
type RolesCatalog struct {
	db    *bun.DB
	mu    sync.Mutex
	index map[string]int64
}

var _ RoleCatalog = (*RolesCatalog)(nil)

func NewRolesCatalog(db *bun.DB) *RolesCatalog {
	return &RolesCatalog{db: db}
}

// RoleID returns the catalog id for a role name.
func (r *RolesCatalog) RoleID(ctx context.Context, name string) (int64, error) {
	index, err := r.nameIndex(ctx)
	if err != nil {
		return 0, err
	}

	id, ok := index[name]
	if !ok {
		return 0, goerrors.New("role name not in catalog", goerrors.CategoryNotFound).
			WithMetadata(map[string]any{"role": name})
	}

	return id, nil
}

func (r *RolesCatalog) nameIndex(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index != nil {
		return r.index, nil
	}

	var rows []RoleRow
	if err := r.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load roles catalog")
	}

	index := make(map[string]int64, len(rows))
	for _, row := range rows {
		index[row.Name] = row.ID
	}

	// Errors are not cached so a transient failure retries on the next call.
	r.index = index

	return index, nil
}

// FitterRoster answers roster membership questions against the fitters table.
type FitterRoster struct {
	db *bun.DB
}

var _ RosterChecker = (*FitterRoster)(nil)

func NewFitterRoster(db *bun.DB) *FitterRoster {
	return &FitterRoster{db: db}
}

// IsFitter reports whether the account has a live roster row. Soft-deleted
// rows do not count.
func (f *FitterRoster) IsFitter(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return f.db.NewSelect().
		Model((*Fitter)(nil)).
		Where("?TableAlias.account_id = ?", accountID).
		Exists(ctx)
}
