package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aqasim81/schema-migrator/internal/config"
	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/differ"
	"github.com/aqasim81/schema-migrator/internal/history"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/runner"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/mysql"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/postgres"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/sqlite"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/sqlserver"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, MIGRATE_DATABASE_URL, or database_url in config)",
)

// project bundles what every command builds from the configuration.
type project struct {
	cfg     *config.Config
	dialect string
	gen     *sqlgen.Generator
	hist    *history.Repository
	differ  *differ.Differ
}

// offlineDialect resolves the dialect for commands that may run without a
// database. With neither a dialect nor a URL configured it is postgres.
func offlineDialect(cfg *config.Config) (string, error) {
	if cfg.Dialect == "" && cfg.DatabaseURL == "" {
		return database.Postgres, nil
	}

	return cfg.ResolveDialect()
}

// sqlDialect returns the generator dialect registered under name.
func sqlDialect(name string) (history.Dialect, error) {
	switch name {
	case database.SQLServer:
		return sqlserver.New(), nil
	case database.Postgres:
		return postgres.New(), nil
	case database.MySQL:
		return mysql.New(), nil
	case database.SQLite:
		return sqlite.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", database.ErrUnsupportedDialect, name)
	}
}

func newProject(cfg *config.Config, dialect string) (*project, error) {
	d, err := sqlDialect(dialect)
	if err != nil {
		return nil, err
	}

	gen := sqlgen.New(d)

	var opts []history.Option
	if cfg.HistoryTable != "" {
		opts = append(opts, history.WithTableName(cfg.HistoryTable))
	}

	if cfg.HistorySchema != "" {
		opts = append(opts, history.WithSchema(cfg.HistorySchema))
	}

	hist, err := history.New(d, opts...)
	if err != nil {
		return nil, fmt.Errorf("configuring history table: %w", err)
	}

	return &project{
		cfg:     cfg,
		dialect: dialect,
		gen:     gen,
		hist:    hist,
		differ:  differ.New(differ.WithTarget(gen), differ.WithRenameDetection(cfg.RenameOptions())),
	}, nil
}

// newRunner builds a Runner over conn, which may be nil for script rendering.
func (p *project) newRunner(conn database.Conn, opts ...runner.Option) *runner.Runner {
	base := []runner.Option{
		runner.WithDiffer(p.differ),
		runner.WithLogger(slog.Default()),
	}

	if p.cfg.ProductVersion != "" {
		base = append(base, runner.WithProductVersion(p.cfg.ProductVersion))
	}

	return runner.New(conn, p.gen, p.hist, append(base, opts...)...)
}

// connect opens the configured database. Timeouts apply to postgres sessions.
func (p *project) connect(ctx context.Context, out io.Writer, lockTimeout, stmtTimeout time.Duration) (database.Conn, func(), error) {
	if p.cfg.DatabaseURL == "" {
		return nil, nil, errDatabaseURLRequired
	}

	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(p.cfg.DatabaseURL))

	conn, closeFn, err := database.Connect(ctx, p.dialect, p.cfg.DatabaseURL,
		database.WithLockTimeout(lockTimeout),
		database.WithStatementTimeout(stmtTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	return conn, closeFn, nil
}

// onlineProject resolves the dialect from the configured URL and connects.
func onlineProject(ctx context.Context, cfg *config.Config, out io.Writer) (*project, database.Conn, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, errDatabaseURLRequired
	}

	dialect, err := cfg.ResolveDialect()
	if err != nil {
		return nil, nil, nil, err
	}

	p, err := newProject(cfg, dialect)
	if err != nil {
		return nil, nil, nil, err
	}

	conn, closeFn, err := p.connect(ctx, out, cfg.LockTimeout, cfg.StatementTimeout)
	if err != nil {
		return nil, nil, nil, err
	}

	return p, conn, closeFn, nil
}

func loadAndSortMigrations(dir string, out io.Writer) ([]migration.Migration, error) {
	migrations, err := migration.LoadFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	if len(migrations) == 0 {
		fmt.Fprintln(out, "No migration files found.")
		return nil, nil //nolint:nilnil // nil,nil signals "no migrations, no error"
	}

	return migration.Sort(migrations), nil
}

func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}
