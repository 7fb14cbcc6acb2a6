package analyzer

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// Dialect names understood by rules.
const (
	Postgres  = "postgres"
	MySQL     = "mysql"
	SQLite    = "sqlite"
	SQLServer = "sqlserver"
)

// Rule is the interface that all danger detection rules must implement.
type Rule interface {
	// ID returns a unique kebab-case identifier for this rule.
	ID() string
	// Check examines a single operation and returns any findings.
	Check(op operations.Operation, ctx *RuleContext) []Finding
}

// RuleContext provides contextual information to rules during analysis.
type RuleContext struct {
	Migration       *migration.Migration
	Dialect         string
	TargetPGVersion int
	OpIndex         int

	// NewTables holds the tables created earlier in the same step.
	NewTables map[schema.QualifiedName]bool

	// Set only for operations.SQL: the trimmed statement text and its parse
	// for the dialect (PGStmts for postgres, MySQLStmts for mysql).
	SQL        string
	PGStmts    []*pg_query.RawStmt
	MySQLStmts []sqlparser.Statement
}

// IsNewTable reports whether q was created earlier in the same step and so
// holds no rows yet.
func (c *RuleContext) IsNewTable(q schema.QualifiedName) bool {
	return c.NewTables[q]
}

// Finding returns a finding prefilled with the operation's index, target,
// and description.
func (c *RuleContext) Finding(rule string, op operations.Operation) Finding {
	return Finding{
		Rule:      rule,
		Table:     op.Target().String(),
		Statement: operations.Describe(op),
		OpIndex:   c.OpIndex,
	}
}

// Registry holds a collection of rules.
type Registry struct {
	rules []Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a rule to the registry.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Rules returns all registered rules.
func (r *Registry) Rules() []Rule {
	return r.rules
}

// TableName extracts a qualified table name from a RangeVar.
func TableName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return "<unknown>"
	}

	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}

	return rv.Relname
}

// MySQLTableName renders a vitess table name with its qualifier.
func MySQLTableName(t sqlparser.TableName) string {
	if q := t.Qualifier.String(); q != "" {
		return q + "." + t.Name.String()
	}

	return t.Name.String()
}

// ExtractStmtSQL extracts the SQL text for a specific statement from the full SQL string.
func ExtractStmtSQL(stmts []*pg_query.RawStmt, idx int, fullSQL string) string {
	if idx < 0 || idx >= len(stmts) {
		return ""
	}

	start := int(stmts[idx].StmtLocation)

	var end int
	if idx+1 < len(stmts) {
		end = int(stmts[idx+1].StmtLocation)
	} else {
		end = len(fullSQL)
	}

	if start > len(fullSQL) || end > len(fullSQL) || start >= end {
		return ""
	}

	return strings.TrimSpace(fullSQL[start:end])
}
