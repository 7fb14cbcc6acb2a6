package rules

import (
	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/operations"
)

// RenameRule detects table and column renames, which break running
// application code that still uses the old names.
type RenameRule struct{}

// NewRenameRule creates a new RenameRule.
func NewRenameRule() *RenameRule { return &RenameRule{} }

// ID returns the rule identifier.
func (r *RenameRule) ID() string { return "rename" }

// Check examines an operation for RENAME TABLE or RENAME COLUMN.
func (r *RenameRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	if ctx.IsNewTable(op.Target()) {
		return nil
	}

	f := ctx.Finding(r.ID(), op)
	f.Severity = analyzer.Medium

	switch op.(type) {
	case operations.RenameTable:
		f.Message = "RENAME TABLE breaks application code that references the old name"
		f.Suggestion = "Use a staged approach: add new name (view), update app code, remove old name"
	case operations.RenameColumn:
		f.Message = "RENAME COLUMN breaks application code that references the old column name"
		f.Suggestion = "Use a staged approach: add new column, backfill, update app code, drop old column"
	default:
		return nil // RENAME INDEX, etc.: safe
	}

	if ctx.Dialect == analyzer.Postgres {
		f.LockType = "ACCESS EXCLUSIVE"
	}

	return []analyzer.Finding{f}
}
