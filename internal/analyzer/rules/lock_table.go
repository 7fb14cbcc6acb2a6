package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/operations"
)

// LockTableRule detects explicit table locks in raw SQL.
type LockTableRule struct{}

// NewLockTableRule creates a new LockTableRule.
func NewLockTableRule() *LockTableRule { return &LockTableRule{} }

// ID returns the rule identifier.
func (r *LockTableRule) ID() string { return "lock-table" }

// Check examines the statements of a raw SQL operation for LOCK TABLE.
func (r *LockTableRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	if _, ok := op.(operations.SQL); !ok {
		return nil
	}

	var findings []analyzer.Finding

	for i, stmt := range ctx.PGStmts {
		node, ok := stmt.Stmt.Node.(*pg_query.Node_LockStmt)
		if !ok {
			continue
		}

		text := analyzer.TruncateSQL(analyzer.ExtractStmtSQL(ctx.PGStmts, i, ctx.SQL), analyzer.StatementDisplayLen)

		for _, rel := range node.LockStmt.Relations {
			rv, ok := rel.Node.(*pg_query.Node_RangeVar)
			if !ok {
				continue
			}

			f := r.finding(ctx, analyzer.TableName(rv.RangeVar), text)
			f.Suggestion = "Avoid explicit table locks. Let PostgreSQL manage locking through normal operations"
			findings = append(findings, f)
		}
	}

	for _, stmt := range ctx.MySQLStmts {
		lock, ok := stmt.(*sqlparser.LockTables)
		if !ok {
			continue
		}

		text := analyzer.TruncateSQL(sqlparser.String(stmt), analyzer.StatementDisplayLen)

		for _, t := range lock.Tables {
			findings = append(findings, r.finding(ctx, sqlparser.String(t.Table), text))
		}
	}

	return findings
}

func (r *LockTableRule) finding(ctx *analyzer.RuleContext, table, text string) analyzer.Finding {
	return analyzer.Finding{
		Rule:       r.ID(),
		Severity:   analyzer.High,
		Table:      table,
		Statement:  text,
		Message:    "Explicit LOCK TABLE can block other queries and cause downtime",
		Suggestion: "Avoid explicit table locks and let the engine manage locking",
		LockType:   "EXPLICIT",
		OpIndex:    ctx.OpIndex,
	}
}
