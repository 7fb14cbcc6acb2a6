package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/parser"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// stubRule is a test rule that always returns a finding.
type stubRule struct{}

func (r *stubRule) ID() string { return "test-stub" }

func (r *stubRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	f := ctx.Finding(r.ID(), op)
	f.Severity = analyzer.High
	f.Message = "stub finding"

	return []analyzer.Finding{f}
}

// contextCapturingRule records the contexts it was called with.
type contextCapturingRule struct {
	seen []analyzer.RuleContext
}

func (r *contextCapturingRule) ID() string { return "context-capture" }

func (r *contextCapturingRule) Check(op operations.Operation, ctx *analyzer.RuleContext) []analyzer.Finding {
	c := *ctx
	c.NewTables = make(map[schema.QualifiedName]bool, len(ctx.NewTables))

	for k, v := range ctx.NewTables {
		c.NewTables[k] = v
	}

	r.seen = append(r.seen, c)

	return nil
}

func step(id string, ops ...operations.Operation) *migration.Step {
	return &migration.Step{Migration: &migration.Migration{ID: id}, Up: ops}
}

func createTable(name string) operations.CreateTable {
	return operations.CreateTable{Table: schema.Table{
		Name:    name,
		Columns: []schema.Column{{Name: "id", Type: schema.Int32()}},
	}}
}

func TestAnalyze_noRules_noFindings(t *testing.T) {
	t.Parallel()

	a := analyzer.New() // no rules registered

	result, err := a.Analyze(step("20240101000000_create_users", createTable("users")))
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	assert.Equal(t, analyzer.Safe, result.MaxSeverity)
	assert.False(t, result.AtLeast(analyzer.Safe))
}

func TestAnalyze_withStubRule_returnsFindings(t *testing.T) {
	t.Parallel()

	registry := analyzer.NewRegistry()
	registry.Register(&stubRule{})

	a := analyzer.New(analyzer.WithRegistry(registry))

	result, err := a.Analyze(step("20240101000000_create_users", createTable("users")))
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, analyzer.High, result.MaxSeverity)
	assert.True(t, result.HasHighOrCritical())
	assert.Equal(t, "test-stub", result.Findings[0].Rule)
	assert.Equal(t, "users", result.Findings[0].Table)
	assert.Equal(t, "create table users (1 columns)", result.Findings[0].Statement)
}

func TestAnalyze_invalidRawSQL_returnsError(t *testing.T) {
	t.Parallel()

	a := analyzer.New()

	_, err := a.Analyze(step("20240101000000_bad_sql", operations.SQL{SQL: "NOT VALID SQL AT ALL;;;"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing migration 20240101000000_bad_sql")
}

func TestAnalyze_rawSQLNotParsedForSQLServer(t *testing.T) {
	t.Parallel()

	a := analyzer.New(analyzer.WithDialect(analyzer.SQLServer))

	_, err := a.Analyze(step("20240101000000_tsql", operations.SQL{SQL: "EXEC sp_rename N'a', N'b';"}))
	require.NoError(t, err)
}

func TestAnalyze_emptyStep_noFindings(t *testing.T) {
	t.Parallel()

	a := analyzer.New()

	result, err := a.Analyze(step("20240101000000_empty"))
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	assert.Equal(t, analyzer.Safe, result.MaxSeverity)
}

func TestAnalyzeAll_multipleSteps_correctResultCount(t *testing.T) {
	t.Parallel()

	steps := []migration.Step{
		*step("20240101000000_first", createTable("a")),
		*step("20240102000000_second", createTable("b")),
	}

	results, err := analyzer.New().AnalyzeAll(steps)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "20240102000000_second", results[1].Migration.ID)
}

func TestAnalyzeAll_errorInOne_returnsWrappedError(t *testing.T) {
	t.Parallel()

	steps := []migration.Step{
		*step("20240101000000_good", createTable("a")),
		*step("20240102000000_bad", operations.SQL{SQL: "INVALID SQL;;;"}),
	}

	_, err := analyzer.New().AnalyzeAll(steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing migration 20240102000000_bad")
}

func TestAnalyze_multipleOperations_runsRulesOnEach(t *testing.T) {
	t.Parallel()

	registry := analyzer.NewRegistry()
	registry.Register(&stubRule{})

	a := analyzer.New(analyzer.WithRegistry(registry))

	result, err := a.Analyze(step("20240101000000_multi", createTable("a"), createTable("b")))
	require.NoError(t, err)
	require.Len(t, result.Findings, 2)
	assert.Equal(t, 0, result.Findings[0].OpIndex)
	assert.Equal(t, 1, result.Findings[1].OpIndex)
}

func TestAnalyze_tracksTablesCreatedInStep(t *testing.T) {
	t.Parallel()

	capture := &contextCapturingRule{}
	registry := analyzer.NewRegistry()
	registry.Register(capture)

	a := analyzer.New(analyzer.WithRegistry(registry))

	_, err := a.Analyze(step("20240101000000_create",
		operations.DropColumn{TableRef: operations.On("", "users"), Name: "x"},
		createTable("users"),
		operations.RenameTable{TableRef: operations.On("", "users"), NewName: "accounts"},
		operations.DropColumn{TableRef: operations.On("", "accounts"), Name: "x"},
	))
	require.NoError(t, err)
	require.Len(t, capture.seen, 4)

	users := schema.QualifiedName{Name: "users"}
	accounts := schema.QualifiedName{Name: "accounts"}

	assert.False(t, capture.seen[0].IsNewTable(users))
	assert.False(t, capture.seen[1].IsNewTable(users))
	assert.True(t, capture.seen[2].IsNewTable(users))
	assert.True(t, capture.seen[3].IsNewTable(accounts))
}

func TestAnalyze_parsesRawSQLPerDialect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect   string
		sql       string
		wantPG    int
		wantMySQL int
	}{
		{analyzer.Postgres, "SELECT 1; SELECT 2;", 2, 0},
		{analyzer.MySQL, "SELECT 1; SELECT 2", 0, 2},
		{analyzer.SQLite, "SELECT 1;", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			t.Parallel()

			capture := &contextCapturingRule{}
			registry := analyzer.NewRegistry()
			registry.Register(capture)

			a := analyzer.New(analyzer.WithRegistry(registry), analyzer.WithDialect(tt.dialect))

			_, err := a.Analyze(step("20240101000000_raw", operations.SQL{SQL: "  " + tt.sql}))
			require.NoError(t, err)
			require.Len(t, capture.seen, 1)
			assert.Len(t, capture.seen[0].PGStmts, tt.wantPG)
			assert.Len(t, capture.seen[0].MySQLStmts, tt.wantMySQL)
			assert.Equal(t, tt.sql, capture.seen[0].SQL)
			assert.Equal(t, tt.dialect, capture.seen[0].Dialect)
		})
	}
}

func TestWithPGVersion_setsVersion(t *testing.T) {
	t.Parallel()

	capture := &contextCapturingRule{}
	registry := analyzer.NewRegistry()
	registry.Register(capture)

	a := analyzer.New(
		analyzer.WithRegistry(registry),
		analyzer.WithPGVersion(10), //nolint:mnd // test value
	)

	_, err := a.Analyze(step("20240101000000_test", createTable("a")))
	require.NoError(t, err)
	require.Len(t, capture.seen, 1)
	assert.Equal(t, 10, capture.seen[0].TargetPGVersion)
}

func TestWithPGVersion_zeroKeepsDefault(t *testing.T) {
	t.Parallel()

	capture := &contextCapturingRule{}
	registry := analyzer.NewRegistry()
	registry.Register(capture)

	a := analyzer.New(analyzer.WithRegistry(registry), analyzer.WithPGVersion(0))

	_, err := a.Analyze(step("20240101000000_test", createTable("a")))
	require.NoError(t, err)
	assert.Equal(t, analyzer.DefaultPGVersion, capture.seen[0].TargetPGVersion)
}

func TestWithParser_overridesParser(t *testing.T) {
	t.Parallel()

	customParseCalled := false
	customParse := func(sql string) (*parser.ParseResult, error) {
		customParseCalled = true
		return parser.Parse(sql)
	}

	a := analyzer.New(analyzer.WithParser(customParse))

	_, err := a.Analyze(step("20240101000000_test", operations.SQL{SQL: "CREATE TABLE a (id INT);"}))
	require.NoError(t, err)
	assert.True(t, customParseCalled)
}
