package persistence

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/profile"
	"github.com/goliatone/go-errors"
	gopersistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// SeedReport counts the rows present after a seed. Skipped is set when the
// database already held data and nothing was loaded.
type SeedReport struct {
	Users    int
	Profiles int
	Skipped  bool
}

func (r SeedReport) String() string {
	return fmt.Sprintf("users=%d profiles=%d skipped=%t", r.Users, r.Profiles, r.Skipped)
}

type seedOptions struct {
	truncate bool
	logger   Logger
}

type SeedOption func(*seedOptions)

// WithTruncate clears sessions and the fixture tables before seeding.
func WithTruncate() SeedOption {
	return func(o *seedOptions) {
		o.truncate = true
	}
}

func WithSeedLogger(logger Logger) SeedOption {
	return func(o *seedOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Seed loads every fixture file in fixtures. Fixture files use the bun
// dbfixture layout and may call hashpwd to store bcrypt hashes. A database
// that already has users or profiles is left alone unless WithTruncate is
// given. Loaded profiles are normalized the same way Service.Save does it.
func Seed(ctx context.Context, db *bun.DB, fixtures fs.FS, opts ...SeedOption) (SeedReport, error) {
	o := &seedOptions{logger: defLogger{}}
	for _, opt := range opts {
		opt(o)
	}

	var report SeedReport
	if fixtures == nil {
		return report, nil
	}

	if o.truncate {
		if _, err := db.NewTruncateTable().Model((*auth.SessionRecord)(nil)).Exec(ctx); err != nil {
			return report, errors.Wrap(err, errors.CategoryInternal, "failed to truncate sessions")
		}
	} else {
		seeded, err := count(ctx, db)
		if err != nil {
			return report, err
		}
		if seeded.Users > 0 || seeded.Profiles > 0 {
			seeded.Skipped = true
			o.logger.Info("seed skipped, database has data", "report", seeded.String())
			return seeded, nil
		}
	}

	fixtureOpts := []gopersistence.FixtureOption{gopersistence.WithFS(fixtures)}
	if o.truncate {
		fixtureOpts = append(fixtureOpts, gopersistence.WithTrucateTables())
	}

	if err := gopersistence.NewSeedManager(db, fixtureOpts...).Load(ctx); err != nil {
		return report, errors.Wrap(err, errors.CategoryValidation, "failed to load fixtures")
	}

	if err := normalizeProfiles(ctx, db, o.logger); err != nil {
		return report, err
	}

	report, err := count(ctx, db)
	if err != nil {
		return report, err
	}

	o.logger.Info("seed complete", "report", report.String())
	return report, nil
}

// normalizeProfiles runs every stored profile back through the profile
// service so fixture rows get sanitized text and E.164 phone numbers.
func normalizeProfiles(ctx context.Context, db *bun.DB, logger Logger) error {
	profiles := profile.NewService(profile.NewRepository(db))

	records, err := profiles.List(ctx, 0)
	if err != nil {
		return err
	}

	for _, record := range records {
		if _, err := profiles.Save(ctx, record); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "invalid fixture profile").
				WithMetadata(map[string]any{"company": record.CompanyName})
		}
		logger.Debug("seeded profile", "company", record.CompanyName)
	}
	return nil
}

func count(ctx context.Context, db bun.IDB) (SeedReport, error) {
	var report SeedReport
	var err error

	if report.Users, err = db.NewSelect().Model((*auth.User)(nil)).Count(ctx); err != nil {
		return report, errors.Wrap(err, errors.CategoryInternal, "failed to count users")
	}
	if report.Profiles, err = db.NewSelect().Model((*profile.Profile)(nil)).Count(ctx); err != nil {
		return report, errors.Wrap(err, errors.CategoryInternal, "failed to count profiles")
	}
	return report, nil
}
