// Package persistence opens the dashboard database through the shared
// persistence client, creates its tables and loads YAML fixtures.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/profile"
	"github.com/goliatone/go-errors"
	gopersistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the persistence client configuration. GetServer returns the DSN.
type Config = gopersistence.Config

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {}
func (d defLogger) Info(format string, args ...any)  {}
func (d defLogger) Warn(format string, args ...any)  {}
func (d defLogger) Error(format string, args ...any) {}

// clientLogger adapts Logger to the persistence client, which also wants
// Fatal. The client only calls it when a forced connect fails, so it is
// reported as an error and left to the caller.
type clientLogger struct {
	Logger
}

func (c clientLogger) Fatal(format string, args ...any) {
	c.Error(format, args...)
}

// Models lists every table the dashboard owns, in creation order.
func Models() []any {
	return []any{
		(*auth.User)(nil),
		(*auth.SessionRecord)(nil),
		(*profile.Profile)(nil),
	}
}

// Open connects to the configured database. Queries are logged at debug
// level when cfg.GetDebug is set.
func Open(ctx context.Context, cfg Config, logger Logger) (*bun.DB, error) {
	if logger == nil {
		logger = defLogger{}
	}

	sqldb, dialect, err := openSQL(cfg)
	if err != nil {
		return nil, err
	}

	var opts []gopersistence.ClientOption
	if cfg.GetDebug() {
		opts = append(opts, gopersistence.WithQueryHooks(queryLogger{logger: logger}))
	}

	gopersistence.RegisterModel(Models()...)

	client, err := gopersistence.New(cfg, sqldb, dialect, opts...)
	if err != nil {
		if client != nil {
			_ = client.Close()
		} else {
			_ = sqldb.Close()
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "database is unreachable").
			WithMetadata(map[string]any{"driver": cfg.GetDriver()})
	}
	client.SetLogger(clientLogger{Logger: logger})

	if err := ctx.Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("database connected", "driver", cfg.GetDriver())
	return client.DB(), nil
}

func openSQL(cfg Config) (*sql.DB, schema.Dialect, error) {
	switch driver := strings.ToLower(strings.TrimSpace(cfg.GetDriver())); driver {
	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetServer())
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY
		sqldb.SetMaxOpenConns(1)
		return sqldb, sqlitedialect.New(), nil
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", cfg.GetServer())
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to open postgres database")
		}
		return sqldb, pgdialect.New(), nil
	default:
		return nil, nil, errors.New(fmt.Sprintf("unsupported database driver %q", driver), errors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_DRIVER")
	}
}

// CreateTables creates missing tables for Models.
func CreateTables(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create table").
				WithMetadata(map[string]any{"model": fmt.Sprintf("%T", model)})
		}
	}
	return nil
}

type queryLogger struct {
	logger Logger
}

var _ bun.QueryHook = queryLogger{}

func (q queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (q queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	args := []any{
		"operation", event.Operation(),
		"duration", time.Since(event.StartTime),
		"query", event.Query,
	}
	if event.Err != nil && event.Err != sql.ErrNoRows {
		q.logger.Warn("query failed", append(args, "error", event.Err)...)
		return
	}
	q.logger.Debug("query", args...)
}
