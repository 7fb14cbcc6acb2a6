package rules_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

var users = operations.On("", "users") //nolint:gochecknoglobals // shared fixture

// analyze runs a single rule over ops as one step.
func analyze(t *testing.T, rule analyzer.Rule, dialect string, ops ...operations.Operation) []analyzer.Finding {
	t.Helper()

	return analyzeWith(t, rule, []analyzer.Option{analyzer.WithDialect(dialect)}, ops...)
}

func analyzeWith(t *testing.T, rule analyzer.Rule, opts []analyzer.Option, ops ...operations.Operation) []analyzer.Finding {
	t.Helper()

	registry := analyzer.NewRegistry()
	registry.Register(rule)

	a := analyzer.New(append([]analyzer.Option{analyzer.WithRegistry(registry)}, opts...)...)

	result, err := a.Analyze(&migration.Step{
		Migration: &migration.Migration{ID: "20240101000000_test"},
		Up:        ops,
	})
	require.NoError(t, err)

	return result.Findings
}

func createUsers() operations.CreateTable {
	return operations.CreateTable{Table: schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64(), Identity: true},
		},
	}}
}

func column(name string, nullable bool) schema.Column {
	return schema.Column{Name: name, Type: schema.String(100), Nullable: nullable}
}
