package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Provider tags describe how an account authenticates. Accounts created
// through an external identity provider carry that provider's tag and have no
// password hash.
const (
	// ProviderPassword is the email/password provider.
	ProviderPassword = "email"
)

// UserType is the raw business classification stored on the account. The
// effective role is never stored; it is derived by RoleResolver.
const (
	// UserTypeNone marks legacy accounts created before classification existed.
	UserTypeNone = 0
	// UserTypeFitter is a saddle fitter candidate (still requires roster membership).
	UserTypeFitter = 1
	// UserTypeAdmin is back-office staff.
	UserTypeAdmin = 2
	// UserTypeFactory is factory staff.
	UserTypeFactory = 3
	// UserTypeCustomSaddler is an external custom saddler.
	UserTypeCustomSaddler = 4
)

// Account is the authentication account model. The auth core owns writes to
// Enabled, LockedUntil, FailedLoginAttempts, and PasswordHash; other modules
// only read.
type Account struct {
	bun.BaseModel       `bun:"table:accounts,alias:acc"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username            string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email               string     `bun:"email,nullzero,unique" json:"email,omitempty"`
	Phone               string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash        string     `bun:"password_hash" json:"-"`
	Enabled             bool       `bun:"enabled" json:"enabled"`
	LockedUntil         *time.Time `bun:"locked_until,nullzero" json:"locked_until,omitempty"`
	FailedLoginAttempts int        `bun:"failed_login_attempts" json:"-"`
	Provider            string     `bun:"provider,notnull,default:'email'" json:"provider,omitempty"`
	UserType            int        `bun:"user_type" json:"user_type,omitempty"`
	IsSupervisor        int        `bun:"is_supervisor" json:"is_supervisor,omitempty"`
	LegacyID            int64      `bun:"legacy_id,nullzero" json:"legacy_id,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt           *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasPassword reports whether the account can be verified against a password
// at all. Social-only accounts have no hash.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// RoleSnapshot captures the attributes role resolution depends on. Resolve is
// a pure function of this snapshot plus roster membership.
func (a *Account) RoleSnapshot() RoleSnapshot {
	return RoleSnapshot{
		AccountID:    a.ID,
		UserType:     a.UserType,
		IsSupervisor: a.IsSupervisor,
	}
}

// Session is a server-side login session. Exactly one hash is live per
// session; refresh replaces it atomically and the superseded value is gone.
type Session struct {
	bun.BaseModel `bun:"table:auth_sessions,alias:sess"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Hash          string     `bun:"hash,notnull" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Role is the resolved authorization role, a value object. It is computed on
// demand and never persisted on the account.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RoleRow is a row of the roles catalog table.
type RoleRow struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull,unique" json:"name"`
}

// Fitter is the roster row that makes a type-1 (or legacy) account a fitter.
// The auth core only checks membership; the rest of the record belongs to the
// fitter module.
type Fitter struct {
	bun.BaseModel `bun:"table:fitters,alias:fit"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// ActivityRecord persists an ActivityEvent for auditing.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:auth_activity,alias:act"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	EventType     string         `bun:"event_type,notnull" json:"event_type"`
	ActorID       string         `bun:"actor_id,nullzero" json:"actor_id,omitempty"`
	ActorType     string         `bun:"actor_type" json:"actor_type,omitempty"`
	AccountID     string         `bun:"account_id,nullzero" json:"account_id,omitempty"`
	SessionID     string         `bun:"session_id,nullzero" json:"session_id,omitempty"`
	Success       bool           `bun:"success" json:"success"`
	Reason        string         `bun:"reason" json:"reason,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	OccurredAt    time.Time      `bun:"occurred_at,notnull" json:"occurred_at"`
}
