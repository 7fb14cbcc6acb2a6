package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxConn runs migrations on a PostgreSQL pool. Transactions get the
// configured lock and statement timeouts.
type PgxConn struct {
	pool             *pgxpool.Pool
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// PgxOption configures a PgxConn.
type PgxOption func(*PgxConn)

// WithLockTimeout sets lock_timeout for each migration transaction.
func WithLockTimeout(d time.Duration) PgxOption {
	return func(c *PgxConn) { c.lockTimeout = d }
}

// WithStatementTimeout sets statement_timeout for each migration transaction.
func WithStatementTimeout(d time.Duration) PgxOption {
	return func(c *PgxConn) { c.statementTimeout = d }
}

// NewPgxConn wraps pool.
func NewPgxConn(pool *pgxpool.Pool, opts ...PgxOption) *PgxConn {
	c := &PgxConn{pool: pool}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Pool returns the underlying pool.
func (c *PgxConn) Pool() *pgxpool.Pool {
	return c.pool
}

// Exec runs sql outside any transaction. Without arguments pgx uses the
// simple protocol, so sql may hold several statements.
func (c *PgxConn) Exec(ctx context.Context, sql string) error {
	if _, err := c.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("executing outside transaction: %w", err)
	}

	return nil
}

// Begin opens a transaction and applies the configured timeouts to it.
func (c *PgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if c.lockTimeout > 0 {
		if err := SetLockTimeout(ctx, tx, c.lockTimeout); err != nil {
			_ = tx.Rollback(ctx)

			return nil, err
		}
	}

	if c.statementTimeout > 0 {
		if err := SetStatementTimeout(ctx, tx, c.statementTimeout); err != nil {
			_ = tx.Rollback(ctx)

			return nil, err
		}
	}

	return pgxTx{tx: tx}, nil
}

// QueryInt implements Conn.
func (c *PgxConn) QueryInt(ctx context.Context, sql string) (int64, error) {
	var n int64
	if err := c.pool.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, fmt.Errorf("querying: %w", err)
	}

	return n, nil
}

// QueryStrings implements Conn.
func (c *PgxConn) QueryStrings(ctx context.Context, sql string) ([][]string, error) {
	rows, err := c.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]string, error) {
		vals, err := row.Values()
		if err != nil {
			return nil, err
		}

		texts := make([]string, len(vals))
		for i, v := range vals {
			if v != nil {
				texts[i] = fmt.Sprint(v)
			}
		}

		return texts, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	return out, nil
}

// Lock takes the session-level advisory lock.
func (c *PgxConn) Lock(ctx context.Context) (Releaser, error) {
	h, err := TryAcquireLock(ctx, c.pool)
	if err != nil {
		return nil, err
	}

	return h, nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t pgxTx) Exec(ctx context.Context, sql string) error {
	if _, err := t.tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	return nil
}

func (t pgxTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (t pgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// SetLockTimeout sets lock_timeout for the rest of tx, so DDL fails fast
// instead of queueing behind long-running queries.
func SetLockTimeout(ctx context.Context, tx pgx.Tx, timeout time.Duration) error {
	sql := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("setting lock_timeout: %w", err)
	}

	return nil
}

// SetStatementTimeout sets statement_timeout for the rest of tx.
func SetStatementTimeout(ctx context.Context, tx pgx.Tx, timeout time.Duration) error {
	sql := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", timeout.Milliseconds())

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("setting statement_timeout: %w", err)
	}

	return nil
}
