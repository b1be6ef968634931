package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Sessions interface {
	repository.Repository[*SessionRecord]

	Open(ctx context.Context, userID uuid.UUID, expiresAt time.Time) (*SessionRecord, error)
	FindActive(ctx context.Context, id uuid.UUID, now time.Time) (*SessionRecord, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type sessions struct {
	repository.Repository[*SessionRecord]
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*SessionRecord](db, repository.ModelHandlers[*SessionRecord]{
		NewRecord: func() *SessionRecord { return &SessionRecord{} },
		GetID: func(r *SessionRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *SessionRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (s *sessions) Open(ctx context.Context, userID uuid.UUID, expiresAt time.Time) (*SessionRecord, error) {
	record := &SessionRecord{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return s.Repository.Create(ctx, record)
}

// FindActive returns the session with its user, or a not found error when
// the session is unknown, revoked or expired.
func (s *sessions) FindActive(ctx context.Context, id uuid.UUID, now time.Time) (*SessionRecord, error) {
	record := &SessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"session_id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (s *sessions) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*SessionRecord)(nil)).
		Set("revoked_at = ?", at).
		Where("id = ?", id).
		Where("revoked_at IS NULL").
		Exec(ctx)
	return err
}

func (s *sessions) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
