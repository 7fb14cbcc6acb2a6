package runner

import "errors"

// ErrOutOfOrder is returned when a pending migration sorts before one that is
// already applied.
var ErrOutOfOrder = errors.New("pending migration precedes an applied migration")

// ErrUnknownMigration is returned when a migration ID names no migration in
// the directory.
var ErrUnknownMigration = errors.New("unknown migration")

// ErrNoConnection is returned by database operations on a script-only Runner.
var ErrNoConnection = errors.New("runner has no database connection")
