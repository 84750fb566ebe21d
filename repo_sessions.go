package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// rotateSessionHashSQL swaps the hash only while the old one is still live.
// Zero rows affected means a concurrent refresh won, or the token is a
// replay; either way the caller must reject.
var rotateSessionHashSQL = `UPDATE "auth_sessions" AS "sess"
SET
	"hash" = ?
WHERE
	("sess"."id" = ?)
	AND ("sess"."hash" = ?);`

var deleteSessionSQL = `DELETE FROM "auth_sessions" WHERE "id" = ?;`

var deleteAccountSessionsSQL = `DELETE FROM "auth_sessions" WHERE "account_id" = ?;`

// Sessions is the session repository.
type Sessions interface {
	repository.Repository[*Session]

	CreateSession(ctx context.Context, session *Session) (*Session, error)
	CreateSessionTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	RotateHash(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string) error
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
	DeleteSessionsForAccount(ctx context.Context, accountID uuid.UUID) error
	DeleteSessionsForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error
}

type sessions struct {
	repository.Repository[*Session]
	db *bun.DB
}

var (
	_ Sessions     = (*sessions)(nil)
	_ SessionStore = (*sessions)(nil)
)

func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (s *sessions) CreateSession(ctx context.Context, session *Session) (*Session, error) {
	return s.CreateSessionTx(ctx, s.db, session)
}

func (s *sessions) CreateSessionTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	return s.Repository.CreateTx(ctx, tx, session)
}

func (s *sessions) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	record := &Session{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", sessionID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"session_id": sessionID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (s *sessions) RotateHash(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string) error {
	res, err := s.db.NewRaw(rotateSessionHashSQL, newHash, sessionID, oldHash).Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrRefreshRejected
	}

	return nil
}

func (s *sessions) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	res, err := s.db.NewRaw(deleteSessionSQL, sessionID).Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"session_id": sessionID.String(),
			})
	}

	return nil
}

func (s *sessions) DeleteSessionsForAccount(ctx context.Context, accountID uuid.UUID) error {
	return s.DeleteSessionsForAccountTx(ctx, s.db, accountID)
}

func (s *sessions) DeleteSessionsForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewRaw(deleteAccountSessionsSQL, accountID).Exec(ctx)
	return err
}
