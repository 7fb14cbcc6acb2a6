// Package database opens connections for the migration runner: a pgx pool for
// PostgreSQL and database/sql handles for SQLite and MySQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

const defaultMaxConns = 5

// Dialect names accepted by Connect.
const (
	Postgres  = "postgres"
	SQLite    = "sqlite"
	MySQL     = "mysql"
	SQLServer = "sqlserver"
)

// NewPool creates a pgx connection pool for the given database URL.
// It parses the connection string, sets a conservative max connection limit,
// and pings the database to verify connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}

// OpenSQLite opens a SQLite database file (or ":memory:"), with or without a
// "sqlite://" prefix. The handle is limited to one connection so an in-memory
// database is shared by every call.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", ErrInvalidDatabaseURL)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	db.SetMaxOpenConns(1)

	return ping(ctx, db)
}

// OpenMySQL opens a MySQL database from a go-sql-driver DSN. Multi-statement
// batches are enabled because generated commands may hold several statements.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	cfg.MultiStatements = true
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(defaultMaxConns)

	return ping(ctx, db)
}

func ping(ctx context.Context, db *sql.DB) (*sql.DB, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return db, nil
}

// Connect opens a Conn for the named dialect. The returned func closes it.
func Connect(ctx context.Context, dialect, url string, opts ...PgxOption) (Conn, func(), error) {
	switch dialect {
	case Postgres:
		pool, err := NewPool(ctx, url)
		if err != nil {
			return nil, nil, err
		}

		return NewPgxConn(pool, opts...), pool.Close, nil
	case SQLite:
		db, err := OpenSQLite(ctx, url)
		if err != nil {
			return nil, nil, err
		}

		return NewSQLConn(db), closeQuietly(db), nil
	case MySQL:
		db, err := OpenMySQL(ctx, url)
		if err != nil {
			return nil, nil, err
		}

		return NewSQLConn(db, WithNamedLock()), closeQuietly(db), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}
}

func closeQuietly(db *sql.DB) func() {
	return func() { _ = db.Close() }
}
