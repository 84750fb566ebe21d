package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Activity is the audit trail repository.
type Activity interface {
	repository.Repository[*ActivityRecord]

	SaveActivity(ctx context.Context, record *ActivityRecord) error
}

type activity struct {
	repository.Repository[*ActivityRecord]
	db *bun.DB
}

var (
	_ Activity      = (*activity)(nil)
	_ ActivityStore = (*activity)(nil)
)

func NewActivityRepository(db *bun.DB) Activity {
	repo := repository.NewRepository[*ActivityRecord](db, repository.ModelHandlers[*ActivityRecord]{
		NewRecord: func() *ActivityRecord { return &ActivityRecord{} },
		GetID: func(r *ActivityRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *ActivityRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &activity{
		Repository: repo,
		db:         db,
	}
}

func (a *activity) SaveActivity(ctx context.Context, record *ActivityRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	_, err := a.Repository.Create(ctx, record)
	return err
}
