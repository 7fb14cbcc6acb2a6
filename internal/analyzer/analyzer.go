// Package analyzer flags operations in a migration step that are likely to
// lock, rewrite, or destroy data on a live database.
package analyzer

import (
	"fmt"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/parser"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// DefaultPGVersion is the PostgreSQL major version assumed when none is set.
const DefaultPGVersion = 14

// Option configures the Analyzer.
type Option func(*Analyzer)

// Analyzer runs registered rules against the operations of planned migrations.
type Analyzer struct {
	registry   *Registry
	dialect    string
	parseFn    func(string) (*parser.ParseResult, error)
	parseMySQL func(string) ([]sqlparser.Statement, error)
	pgVersion  int
}

// New creates a new Analyzer with the given options. The default dialect is
// postgres.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		registry:   NewRegistry(),
		dialect:    Postgres,
		parseFn:    parser.Parse,
		parseMySQL: parser.ParseMySQL,
		pgVersion:  DefaultPGVersion,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithRegistry sets a custom rule registry.
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) { a.registry = r }
}

// WithDialect sets the dialect the migrations will run against.
func WithDialect(d string) Option {
	return func(a *Analyzer) {
		if d != "" {
			a.dialect = d
		}
	}
}

// WithPGVersion sets the target PostgreSQL version.
func WithPGVersion(v int) Option {
	return func(a *Analyzer) {
		if v > 0 {
			a.pgVersion = v
		}
	}
}

// WithParser overrides the PostgreSQL parser function (useful for testing).
func WithParser(fn func(string) (*parser.ParseResult, error)) Option {
	return func(a *Analyzer) { a.parseFn = fn }
}

// Analyze runs every rule over the up operations of one step.
func (a *Analyzer) Analyze(step *migration.Step) (*AnalysisResult, error) {
	id := ""
	if step.Migration != nil {
		id = step.Migration.ID
	}

	var findings []Finding

	maxSeverity := Safe
	newTables := make(map[schema.QualifiedName]bool)

	for i, op := range step.Up {
		ctx := &RuleContext{
			Migration:       step.Migration,
			Dialect:         a.dialect,
			TargetPGVersion: a.pgVersion,
			OpIndex:         i,
			NewTables:       newTables,
		}

		if raw, ok := op.(operations.SQL); ok {
			if err := a.parseRaw(raw.SQL, ctx); err != nil {
				return nil, fmt.Errorf("parsing migration %s: %w", id, err)
			}
		}

		for _, rule := range a.registry.Rules() {
			fs := rule.Check(op, ctx)
			for j := range fs {
				if fs[j].Severity > maxSeverity {
					maxSeverity = fs[j].Severity
				}
			}

			findings = append(findings, fs...)
		}

		trackNewTable(newTables, op)
	}

	return &AnalysisResult{
		Migration:   step.Migration,
		Findings:    findings,
		MaxSeverity: maxSeverity,
	}, nil
}

// AnalyzeAll analyzes multiple steps and returns results for each.
func (a *Analyzer) AnalyzeAll(steps []migration.Step) ([]AnalysisResult, error) {
	results := make([]AnalysisResult, 0, len(steps))

	for i := range steps {
		r, err := a.Analyze(&steps[i])
		if err != nil {
			return nil, err
		}

		results = append(results, *r)
	}

	return results, nil
}

func (a *Analyzer) parseRaw(sql string, ctx *RuleContext) error {
	ctx.SQL = strings.TrimSpace(sql)

	switch a.dialect {
	case Postgres:
		result, err := a.parseFn(sql)
		if err != nil {
			return err
		}

		ctx.PGStmts = result.Stmts
	case MySQL:
		stmts, err := a.parseMySQL(sql)
		if err != nil {
			return err
		}

		ctx.MySQLStmts = stmts
	}

	return nil
}

func trackNewTable(newTables map[schema.QualifiedName]bool, op operations.Operation) {
	switch o := op.(type) {
	case operations.CreateTable:
		newTables[o.Target()] = true
	case operations.RenameTable:
		if newTables[o.Target()] {
			newTables[schema.QualifiedName{Schema: o.NewSchema, Name: o.NewName}] = true
		}
	}
}
