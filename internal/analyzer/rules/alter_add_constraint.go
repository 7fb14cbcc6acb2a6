package rules

import (
	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/operations"
)

// AddConstraintRule detects constraints added to existing tables that are
// validated or indexed while the table is locked.
type AddConstraintRule struct{}

// NewAddConstraintRule creates a new AddConstraintRule.
func NewAddConstraintRule() *AddConstraintRule { return &AddConstraintRule{} }

// ID returns the rule identifier.
func (r *AddConstraintRule) ID() string { return "add-constraint-without-not-valid" }

// Check examines an operation for a blocking constraint addition.
func (r *AddConstraintRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	if ctx.IsNewTable(op.Target()) || ctx.Dialect == analyzer.SQLite {
		return nil
	}

	f := ctx.Finding(r.ID(), op)
	f.Severity = analyzer.High

	switch op.(type) {
	case operations.AddForeignKey, operations.AddCheckConstraint:
		f.Message = "ADD CONSTRAINT validates every existing row while holding a lock"
		f.Suggestion = "Add the constraint as NOT VALID (or WITH NOCHECK), then validate it in a separate statement"
	case operations.AddUniqueConstraint, operations.AddPrimaryKey:
		f.Message = "ADD CONSTRAINT builds a unique index while holding a lock"
		f.Suggestion = "Build a unique index concurrently first, then attach it with USING INDEX"
	default:
		return nil
	}

	if ctx.Dialect == analyzer.Postgres {
		f.LockType = "ACCESS EXCLUSIVE"
		if _, fk := op.(operations.AddForeignKey); fk {
			f.LockType = "SHARE ROW EXCLUSIVE"
		}
	}

	return []analyzer.Finding{f}
}
