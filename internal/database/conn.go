package database

import "context"

// Conn runs migration SQL. Exec and Tx.Exec must accept text holding several
// statements.
type Conn interface {
	Exec(ctx context.Context, sql string) error
	Begin(ctx context.Context) (Tx, error)
	// QueryInt returns the first column of the first row.
	QueryInt(ctx context.Context, sql string) (int64, error)
	// QueryStrings returns every row as text; NULL becomes "".
	QueryStrings(ctx context.Context, sql string) ([][]string, error)
}

// Tx is an open transaction.
type Tx interface {
	Exec(ctx context.Context, sql string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Locker is implemented by connections that can hold a cross-process
// migration lock.
type Locker interface {
	Lock(ctx context.Context) (Releaser, error)
}

// Releaser releases a held lock.
type Releaser interface {
	Release(ctx context.Context) error
}
