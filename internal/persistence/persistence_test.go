package persistence_test

import (
	"context"
	"reflect"
	"testing"
	"testing/fstest"
	"time"

	"github.com/goliatone/go-dashboard"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/internal/persistence"
	"github.com/goliatone/go-dashboard/profile"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type dbConfig struct {
	driver string
	dsn    string
}

func (c dbConfig) GetDriver() string             { return c.driver }
func (c dbConfig) GetServer() string             { return c.dsn }
func (c dbConfig) GetDebug() bool                { return true }
func (c dbConfig) GetPingTimeout() time.Duration { return time.Second }
func (c dbConfig) GetOtelIdentifier() string     { return "" }

type recordingLogger struct {
	debug []string
	info  []string
}

func (l *recordingLogger) Debug(format string, args ...any) { l.debug = append(l.debug, format) }
func (l *recordingLogger) Info(format string, args ...any)  { l.info = append(l.info, format) }
func (l *recordingLogger) Warn(format string, args ...any)  {}
func (l *recordingLogger) Error(format string, args ...any) {}

func openDB(t *testing.T, logger persistence.Logger) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.Open(ctx, dbConfig{driver: "sqlite", dsn: "file::memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.CreateTables(ctx, db))
	return db
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := persistence.Open(context.Background(), dbConfig{driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestOpen_RegistersModels(t *testing.T) {
	logger := &recordingLogger{}
	db := openDB(t, logger)

	assert.Equal(t, "users", db.Table(reflect.TypeOf((*auth.User)(nil)).Elem()).Name)
	assert.Equal(t, "profiles", db.Table(reflect.TypeOf((*profile.Profile)(nil)).Elem()).Name)
	assert.Contains(t, logger.info, "database connected")
}

func TestCreateTables_Idempotent(t *testing.T) {
	logger := &recordingLogger{}
	db := openDB(t, logger)

	require.NoError(t, persistence.CreateTables(context.Background(), db))
	assert.NotEmpty(t, logger.debug, "debug mode logs queries")
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, nil)

	report, err := persistence.Seed(ctx, db, dashboard.GetFixturesFS())
	require.NoError(t, err)
	assert.Equal(t, persistence.SeedReport{Users: 3, Profiles: 2}, report)

	users := auth.NewUsersRepository(db)
	ana, err := users.FindByIdentifier(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("2f0d3c1e-5b8e-4c7a-9a51-6f1c9f0b7a01"), ana.ID)
	assert.Equal(t, auth.RoleAdmin, ana.Role)
	require.NoError(t, auth.ComparePasswordAndHash("change-me-admin", ana.PasswordHash))

	acme, err := profile.NewRepository(db).GetByUserID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Analytics", acme.CompanyName)
	assert.Equal(t, 1, acme.UrgencyTier)
	assert.Equal(t, "+12015550123", acme.Phone, "fixture profiles are normalized")
	require.NotNil(t, acme.Score)
	assert.Len(t, acme.Personas, 2)

	again, err := persistence.Seed(ctx, db, dashboard.GetFixturesFS())
	require.NoError(t, err)
	assert.Equal(t, persistence.SeedReport{Users: 3, Profiles: 2, Skipped: true}, again)

	truncated, err := persistence.Seed(ctx, db, dashboard.GetFixturesFS(), persistence.WithTruncate())
	require.NoError(t, err)
	assert.Equal(t, persistence.SeedReport{Users: 3, Profiles: 2}, truncated)
}

func TestSeed_InvalidFixture(t *testing.T) {
	db := openDB(t, nil)

	fsys := fstest.MapFS{
		"broken.yml": {Data: []byte("- model: User\n  rows: [")},
	}
	_, err := persistence.Seed(context.Background(), db, fsys)
	assert.Error(t, err)
}

func TestSeed_InvalidProfile(t *testing.T) {
	db := openDB(t, nil)

	fsys := fstest.MapFS{
		"profiles.yml": {Data: []byte("- model: Profile\n" +
			"  rows:\n" +
			"    - id: 5a7c1f3e-0b2d-4e8a-9c61-d4f2a8b3e0ff\n" +
			"      user_id: 00000000-0000-0000-0000-000000000000\n" +
			"      company_name: Orphan Co\n")},
	}
	_, err := persistence.Seed(context.Background(), db, fsys)
	assert.Error(t, err, "profiles without an owner fail normalization")
}
