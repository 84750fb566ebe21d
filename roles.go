package auth

import (
	"context"

	"github.com/google/uuid"
	goerrors "github.com/goliatone/go-errors"
)

// Role names produced by resolution.
const (
	RoleUser          = "user"
	RoleFitter        = "fitter"
	RoleAdmin         = "admin"
	RoleFactory       = "factory"
	RoleCustomSaddler = "customsaddler"
	RoleSupervisor    = "supervisor"
)

// wellKnownRoleIDs backs role resolution when the catalog is unavailable or
// missing a name. These ids match the seed migration.
var wellKnownRoleIDs = map[string]int64{
	RoleUser:          1,
	RoleFitter:        2,
	RoleAdmin:         3,
	RoleFactory:       4,
	RoleCustomSaddler: 5,
	RoleSupervisor:    6,
}

// RoleSnapshot is the account state role resolution reads. Keeping it a value
// makes Resolve a pure function that tests can drive without a database.
type RoleSnapshot struct {
	AccountID    uuid.UUID
	UserType     int
	IsSupervisor int
}

// RosterChecker reports whether an account is on the fitter roster.
type RosterChecker interface {
	IsFitter(ctx context.Context, accountID uuid.UUID) (bool, error)
}

// RoleCatalog maps role names to their catalog ids.
type RoleCatalog interface {
	RoleID(ctx context.Context, name string) (int64, error)
}

// RoleResolver computes the effective role from account attributes and roster
// membership. The role is never stored; it is derived on every login, refresh,
// and who-am-I call so role changes take effect on the next token.
type RoleResolver struct {
	roster  RosterChecker
	catalog RoleCatalog
	logger  Logger
}

// NewRoleResolver creates a RoleResolver. catalog may be nil; resolution then
// uses the well-known ids.
func NewRoleResolver(roster RosterChecker, catalog RoleCatalog, logger Logger) *RoleResolver {
	if logger == nil {
		logger = defLogger{}
	}
	return &RoleResolver{
		roster:  roster,
		catalog: catalog,
		logger:  logger,
	}
}

// Resolve returns the effective role for the snapshot. Precedence, highest
// first: supervisor flag, explicit user type, roster fallback for untyped
// legacy accounts, then plain user.
func (r *RoleResolver) Resolve(ctx context.Context, snap RoleSnapshot) (Role, error) {
	name, err := r.resolveName(ctx, snap)
	if err != nil {
		return Role{}, err
	}
	return r.roleByName(ctx, name)
}

func (r *RoleResolver) resolveName(ctx context.Context, snap RoleSnapshot) (string, error) {
	if snap.IsSupervisor == 1 {
		return RoleSupervisor, nil
	}

	switch snap.UserType {
	case UserTypeAdmin:
		return RoleAdmin, nil
	case UserTypeFactory:
		return RoleFactory, nil
	case UserTypeCustomSaddler:
		return RoleCustomSaddler, nil
	case UserTypeFitter:
		onRoster, err := r.onRoster(ctx, snap.AccountID)
		if err != nil {
			return "", err
		}
		if onRoster {
			return RoleFitter, nil
		}
		return RoleUser, nil
	}

	// Untyped legacy accounts predate user_type. The roster is the only
	// signal left that the account belongs to a fitter.
	onRoster, err := r.onRoster(ctx, snap.AccountID)
	if err != nil {
		return "", err
	}
	if onRoster {
		return RoleFitter, nil
	}

	return RoleUser, nil
}

func (r *RoleResolver) onRoster(ctx context.Context, accountID uuid.UUID) (bool, error) {
	if r.roster == nil {
		return false, nil
	}
	onRoster, err := r.roster.IsFitter(ctx, accountID)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check fitter roster").
			WithTextCode(TextCodeRoleUnresolvable)
	}
	return onRoster, nil
}

func (r *RoleResolver) roleByName(ctx context.Context, name string) (Role, error) {
	if r.catalog != nil {
		id, err := r.catalog.RoleID(ctx, name)
		if err == nil {
			return Role{ID: id, Name: name}, nil
		}
		r.logger.Warn("role catalog lookup failed for %s, using well-known id: %v", name, err)
	}

	id, ok := wellKnownRoleIDs[name]
	if !ok {
		return Role{}, goerrors.New("no role id for name", goerrors.CategoryInternal).
			WithTextCode(TextCodeRoleUnresolvable).
			WithMetadata(map[string]any{"role": name})
	}
	return Role{ID: id, Name: name}, nil
}
