package rules

import (
	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/postgres"
)

// CreateIndexRule detects indexes built on existing PostgreSQL tables without
// CONCURRENTLY.
type CreateIndexRule struct{}

// NewCreateIndexRule creates a new CreateIndexRule.
func NewCreateIndexRule() *CreateIndexRule { return &CreateIndexRule{} }

// ID returns the rule identifier.
func (r *CreateIndexRule) ID() string { return "create-index-not-concurrent" }

// Check examines an operation for a non-concurrent index build.
func (r *CreateIndexRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	if ctx.Dialect != analyzer.Postgres {
		return nil
	}

	ci, ok := op.(operations.CreateIndex)
	if !ok || ctx.IsNewTable(ci.Target()) {
		return nil
	}

	if ci.Index.Annotations.Bool(postgres.AnnotationConcurrently, false) {
		return nil
	}

	f := ctx.Finding(r.ID(), op)
	f.Severity = analyzer.High
	f.Message = "CREATE INDEX without CONCURRENTLY locks the table for writes"
	f.Suggestion = "Set the " + postgres.AnnotationConcurrently + " annotation on the index to build it concurrently"
	f.LockType = "SHARE"

	return []analyzer.Finding{f}
}
