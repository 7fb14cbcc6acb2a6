package rules

import (
	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/operations"
)

const pgVersionSafeSetNotNull = 12

// SetNotNullRule detects a nullable column becoming required, which scans the
// whole table.
type SetNotNullRule struct{}

// NewSetNotNullRule creates a new SetNotNullRule.
func NewSetNotNullRule() *SetNotNullRule { return &SetNotNullRule{} }

// ID returns the rule identifier.
func (r *SetNotNullRule) ID() string { return "set-not-null" }

// Check examines an AlterColumn operation for SET NOT NULL.
func (r *SetNotNullRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	ac, ok := op.(operations.AlterColumn)
	if !ok || ctx.IsNewTable(ac.Target()) || ctx.Dialect == analyzer.SQLite {
		return nil
	}

	if !ac.Old.Nullable || ac.New.Nullable {
		return nil
	}

	f := ctx.Finding(r.ID(), op)
	f.Severity = analyzer.Medium
	f.Message = "SET NOT NULL requires a full table scan to verify no NULL values exist"
	f.Suggestion = "Backfill NULL values before the migration runs"

	if ctx.Dialect == analyzer.Postgres {
		f.LockType = "ACCESS EXCLUSIVE"
		f.Severity = analyzer.High
		f.Suggestion = "Requires full table scan. Consider application-level enforcement instead."

		if ctx.TargetPGVersion >= pgVersionSafeSetNotNull {
			f.Severity = analyzer.Medium
			f.Suggestion = "First add CHECK (col IS NOT NULL) NOT VALID, then VALIDATE CONSTRAINT, then SET NOT NULL"
		}
	}

	return []analyzer.Finding{f}
}
