package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/analyzer/rules"
	"github.com/aqasim81/schema-migrator/internal/operations"
)

func TestSetNotNullRule_ID(t *testing.T) {
	t.Parallel()

	rule := rules.NewSetNotNullRule()
	assert.Equal(t, "set-not-null", rule.ID())
}

func TestSetNotNullRule_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		dialect      string
		pgVersion    int
		oldNullable  bool
		newNullable  bool
		wantCount    int
		wantSeverity analyzer.Severity
	}{
		{"PG12 is MEDIUM", analyzer.Postgres, 12, true, false, 1, analyzer.Medium},
		{"PG11 is HIGH", analyzer.Postgres, 11, true, false, 1, analyzer.High},
		{"sqlserver is MEDIUM", analyzer.SQLServer, 0, true, false, 1, analyzer.Medium},
		{"drop not null is safe", analyzer.Postgres, 14, false, true, 0, analyzer.Safe},
		{"unchanged is safe", analyzer.Postgres, 14, true, true, 0, analyzer.Safe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			op := operations.AlterColumn{
				TableRef: users,
				Old:      column("email", tt.oldNullable),
				New:      column("email", tt.newNullable),
			}

			findings := analyzeWith(t, rules.NewSetNotNullRule(), []analyzer.Option{
				analyzer.WithDialect(tt.dialect),
				analyzer.WithPGVersion(tt.pgVersion),
			}, op)
			require.Len(t, findings, tt.wantCount)

			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantSeverity, findings[0].Severity)
				assert.Equal(t, "users", findings[0].Table)
			}
		})
	}
}
