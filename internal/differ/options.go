package differ

import "github.com/aqasim81/schema-migrator/internal/schema"

// Default rename detection thresholds.
const (
	DefaultTableSimilarity  = 0.75
	DefaultMinSharedColumns = 2
)

// RenameOptions controls rename detection.
//
// A removed table and an added table in the same schema are considered the
// same table under a new name when the Jaccard similarity of their column
// signatures (name, type, store type, nullability) is at least TableSimilarity
// and they share at least MinSharedColumns signatures. A removed column and an
// added column are a rename when they sit at the same ordinal and are equal in
// everything but their names.
type RenameOptions struct {
	Tables           bool
	Columns          bool
	TableSimilarity  float64
	MinSharedColumns int
}

// DefaultRenameOptions enables table and column rename detection with the
// default thresholds.
func DefaultRenameOptions() RenameOptions {
	return RenameOptions{
		Tables:           true,
		Columns:          true,
		TableSimilarity:  DefaultTableSimilarity,
		MinSharedColumns: DefaultMinSharedColumns,
	}
}

// Target describes the capabilities of the database the diff is meant for.
// The SQL generator implements it.
type Target interface {
	SupportsSchemaTransfer() bool
}

// AlterTarget is implemented by targets that restrict how existing tables
// change. Without one the differ assumes every change applies in place and that
// only a type change invalidates the indexes and keys over a column.
type AlterTarget interface {
	// AlterNeedsIndexRebuild reports whether the indexes, keys, and foreign
	// keys covering a column must be dropped before old is altered into new
	// and created again afterwards.
	AlterNeedsIndexRebuild(old, new *schema.Column) bool
	// RebuildsTables reports whether column alterations and constraint changes
	// are applied by recreating the table.
	RebuildsTables() bool
}

// Option configures a Differ.
type Option func(*Differ)

// WithRenameDetection replaces the rename detection settings.
func WithRenameDetection(o RenameOptions) Option {
	return func(d *Differ) { d.renames = o }
}

// WithTarget tells the differ which dialect capabilities it may rely on.
func WithTarget(t Target) Option {
	return func(d *Differ) { d.target = t }
}
