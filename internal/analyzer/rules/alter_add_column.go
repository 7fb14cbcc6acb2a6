package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

const pgVersionSafeNonVolatileDefault = 11

// AddColumnRule detects columns added to existing tables that either fail on
// populated tables or rewrite them.
type AddColumnRule struct{}

// NewAddColumnRule creates a new AddColumnRule.
func NewAddColumnRule() *AddColumnRule { return &AddColumnRule{} }

// ID returns the rule identifier.
func (r *AddColumnRule) ID() string { return "add-column-volatile-default" }

// Check examines an AddColumn operation.
func (r *AddColumnRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	ac, ok := op.(operations.AddColumn)
	if !ok || ctx.IsNewTable(ac.Target()) {
		return nil
	}

	col := ac.Column

	if !col.Nullable && !col.HasDefault() && !col.Identity && col.ComputedSQL == "" {
		f := ctx.Finding(r.ID(), op)
		f.Severity = analyzer.High
		f.Message = "ADD COLUMN NOT NULL without a default fails on tables that already have rows"
		f.Suggestion = "Add the column as nullable, backfill it, then make it required"

		return []analyzer.Finding{f}
	}

	if ctx.Dialect != analyzer.Postgres || !col.HasDefault() {
		return nil
	}

	if ctx.TargetPGVersion >= pgVersionSafeNonVolatileDefault && !volatileDefault(&col) {
		return nil // PG 11+ with non-volatile default: metadata-only
	}

	f := ctx.Finding(r.ID(), op)
	f.Severity = analyzer.High
	f.Message = "ADD COLUMN with volatile DEFAULT rewrites the entire table"
	f.Suggestion = "Add column without DEFAULT, then backfill in batches"
	f.LockType = "ACCESS EXCLUSIVE"

	if ctx.TargetPGVersion < pgVersionSafeNonVolatileDefault {
		f.Message = "ADD COLUMN with DEFAULT rewrites the entire table on PG < 11"
	}

	return []analyzer.Finding{f}
}

// volatileDefault reports whether the column default must be evaluated per
// row. Literal defaults never are. SQL defaults are parsed as a SELECT target
// and anything other than a constant or a cast of one counts as volatile.
func volatileDefault(col *schema.Column) bool {
	if col.DefaultSQL == "" {
		return false
	}

	tree, err := pg_query.Parse("SELECT " + col.DefaultSQL)
	if err != nil || len(tree.Stmts) != 1 {
		return true
	}

	sel, ok := tree.Stmts[0].Stmt.Node.(*pg_query.Node_SelectStmt)
	if !ok || len(sel.SelectStmt.TargetList) != 1 {
		return true
	}

	rt, ok := sel.SelectStmt.TargetList[0].Node.(*pg_query.Node_ResTarget)
	if !ok {
		return true
	}

	return isVolatileExpr(rt.ResTarget.Val)
}

// isVolatileExpr treats constants and type casts of constants as
// non-volatile; everything else (including now(), gen_random_uuid()) is
// assumed volatile.
func isVolatileExpr(node *pg_query.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_AConst:
		return false
	case *pg_query.Node_TypeCast:
		if n.TypeCast.Arg != nil {
			if _, ok := n.TypeCast.Arg.Node.(*pg_query.Node_AConst); ok {
				return false
			}
		}

		return true
	default:
		return true
	}
}
