package rules

import (
	"strings"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/operations"
)

// AlterColumnTypeRule detects column type changes, which rewrite the table.
// SQLite cannot alter columns at all; there the table is rebuilt by copying
// every row into a new one.
type AlterColumnTypeRule struct{}

// NewAlterColumnTypeRule creates a new AlterColumnTypeRule.
func NewAlterColumnTypeRule() *AlterColumnTypeRule { return &AlterColumnTypeRule{} }

// ID returns the rule identifier.
func (r *AlterColumnTypeRule) ID() string { return "alter-column-type" }

// Check examines AlterColumn and RebuildTable operations.
func (r *AlterColumnTypeRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	if rb, ok := op.(operations.RebuildTable); ok {
		return r.checkRebuild(rb, ctx)
	}

	ac, ok := op.(operations.AlterColumn)
	if !ok || ctx.IsNewTable(ac.Target()) || ac.Old.EqualStorage(&ac.New) {
		return nil
	}

	f := ctx.Finding(r.ID(), op)

	if ctx.Dialect == analyzer.SQLite {
		f.Severity = analyzer.Critical
		f.Message = "SQLite cannot alter a column in place and this change carries no table definition to rebuild from"
		f.Suggestion = "Generate the migration for the sqlite dialect so the table is rebuilt"

		return []analyzer.Finding{f}
	}

	if ac.Old.Type == ac.New.Type && ac.Old.StoreType == ac.New.StoreType {
		return nil
	}

	f.Severity = analyzer.High
	f.Message = "ALTER COLUMN TYPE rewrites the entire table while holding an exclusive lock"
	f.Suggestion = "Use a staged approach: add new column, backfill data, swap columns, drop old column"

	if ctx.Dialect == analyzer.Postgres {
		f.LockType = "ACCESS EXCLUSIVE"
	}

	return []analyzer.Finding{f}
}

func (r *AlterColumnTypeRule) checkRebuild(op operations.RebuildTable, ctx *analyzer.RuleContext) []analyzer.Finding {
	f := ctx.Finding(r.ID(), op)
	f.Severity = analyzer.Medium
	f.Message = "the table is recreated and every row copied into it; writers are blocked until it finishes"
	f.Suggestion = "Run during a quiet period; the copy time grows with the table"

	copied := make(map[string]bool, len(op.Sources))
	for _, src := range op.Sources {
		copied[src] = true
	}

	var lost []string

	for i := range op.Old.Columns {
		if name := op.Old.Columns[i].Name; !copied[name] {
			lost = append(lost, name)
		}
	}

	if len(lost) > 0 {
		f.Severity = analyzer.High
		f.Message += "; the values of " + strings.Join(lost, ", ") + " are not copied"
	}

	return []analyzer.Finding{f}
}
