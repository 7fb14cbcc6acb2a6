package database

import (
	"context"
	"database/sql"
	"fmt"
)

// NamedLock is the MySQL GET_LOCK name held while migrations run.
const NamedLock = "schema_migrator"

// SQLConn runs migrations through database/sql.
type SQLConn struct {
	db        *sql.DB
	namedLock bool
}

// SQLOption configures a SQLConn.
type SQLOption func(*SQLConn)

// WithNamedLock makes the connection a Locker using MySQL GET_LOCK.
func WithNamedLock() SQLOption {
	return func(c *SQLConn) { c.namedLock = true }
}

// NewSQLConn wraps db.
func NewSQLConn(db *sql.DB, opts ...SQLOption) *SQLConn {
	c := &SQLConn{db: db}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DB returns the underlying handle.
func (c *SQLConn) DB() *sql.DB {
	return c.db
}

// Exec implements Conn.
func (c *SQLConn) Exec(ctx context.Context, query string) error {
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("executing outside transaction: %w", err)
	}

	return nil
}

// Begin implements Conn.
func (c *SQLConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return sqlTx{tx: tx}, nil
}

// QueryInt implements Conn.
func (c *SQLConn) QueryInt(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("querying: %w", err)
	}

	return n, nil
}

// QueryStrings implements Conn.
func (c *SQLConn) QueryStrings(ctx context.Context, query string) ([][]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var out [][]string

	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))

		for i := range vals {
			ptrs[i] = &vals[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		texts := make([]string, len(cols))
		for i := range vals {
			texts[i] = vals[i].String
		}

		out = append(out, texts)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	return out, nil
}

// Lock takes the named lock when the connection was built WithNamedLock. It
// returns a no-op releaser otherwise.
func (c *SQLConn) Lock(ctx context.Context) (Releaser, error) {
	if !c.namedLock {
		return noopReleaser{}, nil
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for named lock: %w", err)
	}

	var acquired sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", NamedLock).Scan(&acquired); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("executing GET_LOCK: %w", err)
	}

	if acquired.Int64 != 1 {
		_ = conn.Close()

		return nil, ErrLockNotAcquired
	}

	return &namedLockHandle{conn: conn}, nil
}

type namedLockHandle struct {
	conn *sql.Conn
}

func (h *namedLockHandle) Release(ctx context.Context) error {
	if h.conn == nil {
		return nil
	}

	_, err := h.conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", NamedLock)
	_ = h.conn.Close()
	h.conn = nil

	if err != nil {
		return fmt.Errorf("releasing named lock: %w", err)
	}

	return nil
}

type noopReleaser struct{}

func (noopReleaser) Release(context.Context) error { return nil }

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) Exec(ctx context.Context, query string) error {
	if _, err := t.tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	return nil
}

func (t sqlTx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (t sqlTx) Rollback(_ context.Context) error {
	return t.tx.Rollback()
}
