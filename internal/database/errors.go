package database

import "errors"

// ErrInvalidDatabaseURL indicates the provided database URL could not be parsed.
var ErrInvalidDatabaseURL = errors.New("invalid database URL")

// ErrConnectionFailed indicates a connection to the database could not be established.
var ErrConnectionFailed = errors.New("database connection failed")

// ErrLockNotAcquired indicates the migration lock is already held by another process.
var ErrLockNotAcquired = errors.New("migration lock not acquired")

// ErrUnsupportedDialect indicates there is no bundled driver for the dialect.
var ErrUnsupportedDialect = errors.New("no database driver for dialect")
