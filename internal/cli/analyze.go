package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/analyzer/rules"
	"github.com/aqasim81/schema-migrator/internal/config"
	"github.com/aqasim81/schema-migrator/internal/migration"
)

var analyzeCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "analyze [migration-dir]",
	Short: "Analyze migrations for dangerous operations",
	Long: `Plan every migration and analyze its operations for changes that
could cause table locks, rewrites, or data loss on the target dialect.
Reports findings with severity levels and suggests safe alternatives.`,
	RunE: runAnalyze,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	analyzeFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "output format (text, json, github-actions); defaults to the configured format")
	cmd.Flags().String("fail-on", "", "exit with non-zero code if a finding reaches this severity (low, medium, high, critical)")
	cmd.Flags().Bool("fail-on-high", false, "shorthand for --fail-on high")
}

// errHighSeverityFindings is returned when findings reach the --fail-on severity.
var errHighSeverityFindings = errors.New("findings at or above the failure severity detected")

// errUnknownFormat is returned for an unsupported --format value.
var errUnknownFormat = errors.New("unknown output format")

const formatGitHubActions = "github-actions"

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := AppConfig

	dir := cfg.MigrationsDir
	if len(args) > 0 {
		dir = args[0]
	}

	format := cfg.Format
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = f
	}

	failOn, err := failSeverity(cmd)
	if err != nil {
		return err
	}

	sorted, err := loadAndSortMigrations(dir, cmd.OutOrStdout())
	if err != nil || sorted == nil {
		return err
	}

	dialect, err := offlineDialect(cfg)
	if err != nil {
		return err
	}

	p, err := newProject(cfg, dialect)
	if err != nil {
		return err
	}

	steps, err := migration.Plan(p.differ, sorted)
	if err != nil {
		return fmt.Errorf("planning migrations: %w", err)
	}

	results, err := analyzeSteps(cfg, dialect, steps)
	if err != nil {
		return err
	}

	if err := writeAnalysis(cmd.OutOrStdout(), format, results); err != nil {
		return err
	}

	if failOn != nil && anyAtLeast(results, *failOn) {
		return fmt.Errorf("%w (%s)", errHighSeverityFindings, *failOn)
	}

	return nil
}

// failSeverity reads --fail-on and --fail-on-high. It returns nil when
// neither is set.
func failSeverity(cmd *cobra.Command) (*analyzer.Severity, error) {
	if s, _ := cmd.Flags().GetString("fail-on"); s != "" {
		sev, err := analyzer.ParseSeverity(s)
		if err != nil {
			return nil, err
		}

		return &sev, nil
	}

	if high, _ := cmd.Flags().GetBool("fail-on-high"); high {
		sev := analyzer.High
		return &sev, nil
	}

	return nil, nil //nolint:nilnil // nil severity means "never fail"
}

func analyzeSteps(cfg *config.Config, dialect string, steps []migration.Step) ([]analyzer.AnalysisResult, error) {
	a := analyzer.New(
		analyzer.WithRegistry(rules.NewDefaultRegistry()),
		analyzer.WithDialect(dialect),
		analyzer.WithPGVersion(cfg.TargetPGVersion),
	)

	results, err := a.AnalyzeAll(steps)
	if err != nil {
		return nil, fmt.Errorf("analyzing migrations: %w", err)
	}

	return results, nil
}

func writeAnalysis(out io.Writer, format string, results []analyzer.AnalysisResult) error {
	switch format {
	case "", config.DefaultFormat:
		printAnalysisResults(out, results)
		return nil
	case "json":
		return printAnalysisJSON(out, results)
	case formatGitHubActions:
		printGitHubAnnotations(out, results)
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
}

// printAnalysisResults writes findings as text and reports whether any is
// High or Critical.
func printAnalysisResults(out io.Writer, results []analyzer.AnalysisResult) bool {
	totalFindings := 0
	hasHighOrCritical := false

	for _, r := range results {
		if len(r.Findings) == 0 {
			continue
		}

		fmt.Fprintf(out, "\n=== %s_%s ===\n", r.Migration.Version, r.Migration.Name)

		for _, f := range r.Findings {
			fmt.Fprintf(out, "  [%s] %s\n", f.Severity, f.Message)
			fmt.Fprintf(out, "    Table: %s\n", f.Table)
			fmt.Fprintf(out, "    Rule:  %s\n", f.Rule)

			if f.Statement != "" {
				fmt.Fprintf(out, "    Op:    %s\n", f.Statement)
			}

			if f.LockType != "" {
				fmt.Fprintf(out, "    Lock:  %s\n", f.LockType)
			}

			fmt.Fprintf(out, "    Fix:   %s\n\n", f.Suggestion)
		}

		totalFindings += len(r.Findings)

		if r.HasHighOrCritical() {
			hasHighOrCritical = true
		}
	}

	if totalFindings == 0 {
		fmt.Fprintln(out, "No dangerous operations detected.")
	} else {
		fmt.Fprintf(out, "Found %d finding(s) across %d migration(s).\n", totalFindings, countMigrationsWithFindings(results))
	}

	return hasHighOrCritical
}

type jsonFinding struct {
	Migration  string `json:"migration"`
	Rule       string `json:"rule"`
	Severity   string `json:"severity"`
	Table      string `json:"table"`
	Operation  string `json:"operation,omitempty"`
	OpIndex    int    `json:"op_index"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	LockType   string `json:"lock_type,omitempty"`
}

func printAnalysisJSON(out io.Writer, results []analyzer.AnalysisResult) error {
	findings := make([]jsonFinding, 0)

	for _, r := range results {
		for _, f := range r.Findings {
			findings = append(findings, jsonFinding{
				Migration:  r.Migration.ID,
				Rule:       f.Rule,
				Severity:   f.Severity.String(),
				Table:      f.Table,
				Operation:  f.Statement,
				OpIndex:    f.OpIndex,
				Message:    f.Message,
				Suggestion: f.Suggestion,
				LockType:   f.LockType,
			})
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(findings); err != nil {
		return fmt.Errorf("encoding findings: %w", err)
	}

	return nil
}

// printGitHubAnnotations writes one workflow command per finding so CI runs
// surface them on the migration's model file.
func printGitHubAnnotations(out io.Writer, results []analyzer.AnalysisResult) {
	for _, r := range results {
		for _, f := range r.Findings {
			level := "notice"

			switch {
			case f.Severity >= analyzer.High:
				level = "error"
			case f.Severity == analyzer.Medium:
				level = "warning"
			}

			fmt.Fprintf(out, "::%s file=%s,title=%s::[%s] %s: %s\n",
				level, r.Migration.FilePath, f.Rule, f.Severity, f.Table, f.Message)
		}
	}
}

func anyAtLeast(results []analyzer.AnalysisResult, minimum analyzer.Severity) bool {
	for i := range results {
		if results[i].AtLeast(minimum) {
			return true
		}
	}

	return false
}

func countMigrationsWithFindings(results []analyzer.AnalysisResult) int {
	count := 0

	for _, r := range results {
		if len(r.Findings) > 0 {
			count++
		}
	}

	return count
}
