package migration

import "errors"

// ErrMissingModel is returned when SQL files exist for a migration without a model file.
var ErrMissingModel = errors.New("migration has no model file")

// ErrDuplicateID is returned when two model files share a migration ID.
var ErrDuplicateID = errors.New("duplicate migration id")
