package analyzer

import "github.com/aqasim81/schema-migrator/internal/migration"

// StatementDisplayLen bounds Finding.Statement for raw SQL.
const StatementDisplayLen = 120

// Finding represents a single dangerous pattern detected in a migration.
type Finding struct {
	Rule       string   // Rule ID (e.g., "create-index-not-concurrent")
	Severity   Severity // Danger level
	Table      string   // Affected table name
	Statement  string   // Operation description, or the SQL text truncated for display
	Message    string   // Human-readable description of the danger
	Suggestion string   // Safe alternative approach
	LockType   string   // Lock acquired, when the engine documents one (e.g., "ACCESS EXCLUSIVE")
	OpIndex    int      // Index in the step's up operations (0-based)
}

// AnalysisResult holds all findings for a single migration.
type AnalysisResult struct {
	Migration   *migration.Migration
	Findings    []Finding
	MaxSeverity Severity // Highest severity across all findings
}

// HasHighOrCritical returns true if any finding is High or Critical severity.
func (r *AnalysisResult) HasHighOrCritical() bool {
	return r.MaxSeverity >= High
}

// AtLeast reports whether any finding reaches min.
func (r *AnalysisResult) AtLeast(minimum Severity) bool {
	return len(r.Findings) > 0 && r.MaxSeverity >= minimum
}

// TruncateSQL truncates a SQL string to maxLen characters for display.
func TruncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen || maxLen < 4 { //nolint:mnd // room for "x..."
		return sql
	}

	return sql[:maxLen-3] + "..."
}
