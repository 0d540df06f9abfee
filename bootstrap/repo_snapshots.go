package bootstrap

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Snapshots interface {
	repository.Repository[*SessionSnapshot]

	Latest(ctx context.Context) (*SessionSnapshot, error)
	LatestTx(ctx context.Context, tx bun.IDB) (*SessionSnapshot, error)
	Upsert(ctx context.Context, record *SessionSnapshot, criteria ...repository.UpdateCriteria) (*SessionSnapshot, error)
	UpsertTx(ctx context.Context, tx bun.IDB, record *SessionSnapshot, criteria ...repository.UpdateCriteria) (*SessionSnapshot, error)
	DeleteAll(ctx context.Context) error
}

type snapshots struct {
	repository.Repository[*SessionSnapshot]
	db *bun.DB
}

var (
	_ Snapshots                               = (*snapshots)(nil)
	_ repository.Repository[*SessionSnapshot] = (*snapshots)(nil)
)

func NewSnapshotsRepository(db *bun.DB) Snapshots {
	repo := repository.NewRepository[*SessionSnapshot](db, repository.ModelHandlers[*SessionSnapshot]{
		NewRecord: func() *SessionSnapshot { return &SessionSnapshot{} },
		GetID: func(s *SessionSnapshot) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *SessionSnapshot, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &snapshots{
		Repository: repo,
		db:         db,
	}
}

func (r *snapshots) Latest(ctx context.Context) (*SessionSnapshot, error) {
	return r.LatestTx(ctx, r.db)
}

func (r *snapshots) LatestTx(ctx context.Context, tx bun.IDB) (*SessionSnapshot, error) {
	record := &SessionSnapshot{}
	err := tx.NewSelect().
		Model(record).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return record, nil
}

func (r *snapshots) Upsert(ctx context.Context, record *SessionSnapshot, criteria ...repository.UpdateCriteria) (*SessionSnapshot, error) {
	return r.UpsertTx(ctx, r.db, record, criteria...)
}

func (r *snapshots) UpsertTx(ctx context.Context, tx bun.IDB, record *SessionSnapshot, criteria ...repository.UpdateCriteria) (*SessionSnapshot, error) {
	existing, err := r.Repository.GetByIdentifierTx(ctx, tx, record.ID.String())
	if err == nil {
		record.CreatedAt = existing.CreatedAt
		criteria = append(criteria, repository.UpdateByID(record.ID.String()))
		return r.Repository.UpdateTx(ctx, tx, record, criteria...)
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *snapshots) DeleteAll(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*SessionSnapshot)(nil)).
		Where("1 = 1").
		Exec(ctx)
	return err
}
