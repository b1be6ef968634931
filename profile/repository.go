package profile

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository stores assessment profiles.
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Save(ctx context.Context, record *Profile) (*Profile, error)
	List(ctx context.Context, limit int) ([]*Profile, error)
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var _ Repository = (*profiles)(nil)

// NewRepository returns a bun backed profile repository.
func NewRepository(db *bun.DB) Repository {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (r *profiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return r.GetByUserIDTx(ctx, r.db, userID)
}

func (r *profiles) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*Profile, error) {
	record := &Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrProfileNotFound.Clone().WithMetadata(map[string]any{
				"user_id": userID.String(),
			})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load profile")
	}

	return record, nil
}

// Save inserts the profile or replaces the record owned by the same user.
func (r *profiles) Save(ctx context.Context, record *Profile) (*Profile, error) {
	if record == nil {
		return nil, errors.New("profile must not be nil", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	if strings.TrimSpace(record.CompanyName) == "" {
		return nil, ErrProfileInvalid.Clone().WithMetadata(map[string]any{
			"field": "company_name",
		})
	}

	var out *Profile
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := r.GetByUserIDTx(ctx, tx, record.UserID)
		if err != nil && !IsNotFound(err) {
			return err
		}

		now := time.Now()
		record.UpdatedAt = &now

		if existing != nil {
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			out, err = r.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(existing.ID.String()))
			return err
		}

		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		record.CreatedAt = &now
		out, err = r.Repository.CreateTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *profiles) List(ctx context.Context, limit int) ([]*Profile, error) {
	var records []*Profile
	q := r.db.NewSelect().
		Model(&records).
		Order("urgency_tier ASC", "company_name ASC")

	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list profiles")
	}

	return records, nil
}
