package rules

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/operations"
)

// DropTableRule detects dropped tables and columns, plus DROP TABLE and
// TRUNCATE in raw SQL.
type DropTableRule struct{}

// NewDropTableRule creates a new DropTableRule.
func NewDropTableRule() *DropTableRule { return &DropTableRule{} }

// ID returns the rule identifier.
func (r *DropTableRule) ID() string { return "drop-table" }

// Check examines an operation for destructive drops.
func (r *DropTableRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	switch op.(type) {
	case operations.DropTable:
		f := ctx.Finding(r.ID(), op)
		f.Severity = analyzer.Critical
		f.Message = "DROP TABLE is irreversible and will permanently delete all data"
		f.Suggestion = "Ensure you have a backup and that no application code references this table"
		f.LockType = lockFor(ctx, "ACCESS EXCLUSIVE")

		return []analyzer.Finding{f}
	case operations.DropColumn:
		if ctx.IsNewTable(op.Target()) {
			return nil
		}

		f := ctx.Finding(r.ID(), op)
		f.Severity = analyzer.High
		f.Message = "DROP COLUMN permanently deletes the column's data"
		f.Suggestion = "Stop reading the column in application code first, and back it up if it may be needed"
		f.LockType = lockFor(ctx, "ACCESS EXCLUSIVE")

		return []analyzer.Finding{f}
	case operations.SQL:
		return r.checkRaw(ctx)
	default:
		return nil
	}
}

func (r *DropTableRule) checkRaw(ctx *analyzer.RuleContext) []analyzer.Finding {
	var findings []analyzer.Finding

	for i, stmt := range ctx.PGStmts {
		var f *analyzer.Finding

		switch node := stmt.Stmt.Node.(type) {
		case *pg_query.Node_DropStmt:
			f = r.checkDrop(node.DropStmt)
		case *pg_query.Node_TruncateStmt:
			f = r.checkTruncate(node.TruncateStmt)
		}

		if f != nil {
			f.Statement = analyzer.TruncateSQL(analyzer.ExtractStmtSQL(ctx.PGStmts, i, ctx.SQL), analyzer.StatementDisplayLen)
			f.OpIndex = ctx.OpIndex
			f.LockType = "ACCESS EXCLUSIVE"
			findings = append(findings, *f)
		}
	}

	for _, stmt := range ctx.MySQLStmts {
		var f *analyzer.Finding

		switch s := stmt.(type) {
		case *sqlparser.DropTable:
			f = r.mysqlDrop(s)
		case *sqlparser.TruncateTable:
			f = r.finding("TRUNCATE removes all data from the table and is difficult to reverse",
				"Ensure you have a backup before truncating production tables", analyzer.MySQLTableName(s.Table))
		}

		if f != nil {
			f.Statement = analyzer.TruncateSQL(sqlparser.String(stmt), analyzer.StatementDisplayLen)
			f.OpIndex = ctx.OpIndex
			findings = append(findings, *f)
		}
	}

	return findings
}

func (r *DropTableRule) finding(msg, suggestion, table string) *analyzer.Finding {
	return &analyzer.Finding{
		Rule:       r.ID(),
		Severity:   analyzer.Critical,
		Table:      table,
		Message:    msg,
		Suggestion: suggestion,
	}
}

func (r *DropTableRule) checkDrop(drop *pg_query.DropStmt) *analyzer.Finding {
	if drop == nil || drop.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
		return nil
	}

	msg := "DROP TABLE is irreversible and will permanently delete all data"
	if drop.MissingOk {
		msg = "DROP TABLE IF EXISTS is irreversible and will permanently delete all data"
	}

	return r.finding(msg, "Ensure you have a backup and that no application code references this table",
		strings.Join(extractDropTableNames(drop), ", "))
}

func (r *DropTableRule) checkTruncate(trunc *pg_query.TruncateStmt) *analyzer.Finding {
	if trunc == nil {
		return nil
	}

	var tables []string

	for _, rel := range trunc.Relations {
		rv, ok := rel.Node.(*pg_query.Node_RangeVar)
		if !ok {
			continue
		}

		tables = append(tables, analyzer.TableName(rv.RangeVar))
	}

	return r.finding("TRUNCATE removes all data from the table and is difficult to reverse",
		"Ensure you have a backup before truncating production tables", strings.Join(tables, ", "))
}

func (r *DropTableRule) mysqlDrop(drop *sqlparser.DropTable) *analyzer.Finding {
	tables := make([]string, 0, len(drop.FromTables))
	for _, t := range drop.FromTables {
		tables = append(tables, analyzer.MySQLTableName(t))
	}

	msg := "DROP TABLE is irreversible and will permanently delete all data"
	if drop.IfExists {
		msg = "DROP TABLE IF EXISTS is irreversible and will permanently delete all data"
	}

	return r.finding(msg, "Ensure you have a backup and that no application code references this table",
		strings.Join(tables, ", "))
}

func extractDropTableNames(drop *pg_query.DropStmt) []string {
	var tables []string

	for _, obj := range drop.Objects {
		listNode, ok := obj.Node.(*pg_query.Node_List)
		if !ok {
			continue
		}

		var parts []string

		for _, item := range listNode.List.Items {
			if s, ok := item.Node.(*pg_query.Node_String_); ok {
				parts = append(parts, s.String_.Sval)
			}
		}

		if len(parts) > 0 {
			tables = append(tables, strings.Join(parts, "."))
		}
	}

	return tables
}

// lockFor returns lock when the target is PostgreSQL, whose lock modes the
// findings name.
func lockFor(ctx *analyzer.RuleContext, lock string) string {
	if ctx.Dialect == analyzer.Postgres {
		return lock
	}

	return ""
}
