package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "plan",
	Short: "Show execution plan for migrations",
	Long: `Display the execution plan for each migration: the operations the
model diff produces, the commands they render to and whether each runs
inside the migration's transaction, and the analyzer's findings.`,
	RunE: runPlan,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	planFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}

func planFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("pending-only", false, "show only pending migrations (needs a database)")
	cmd.Flags().Bool("sql", false, "print the SQL of each command")
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	pendingOnly, _ := cmd.Flags().GetBool("pending-only")
	showSQL, _ := cmd.Flags().GetBool("sql")

	sorted, err := loadAndSortMigrations(cfg.MigrationsDir, out)
	if err != nil || sorted == nil {
		return err
	}

	var (
		p       *project
		pending []migration.Migration
	)

	if pendingOnly {
		ctx := commandContext(cmd.Context())

		proj, conn, closeFn, err := onlineProject(ctx, cfg, out)
		if err != nil {
			return err
		}
		defer closeFn()

		p = proj

		pending, err = p.newRunner(conn).Pending(ctx, sorted)
		if err != nil {
			return err
		}
	} else {
		dialect, err := offlineDialect(cfg)
		if err != nil {
			return err
		}

		if p, err = newProject(cfg, dialect); err != nil {
			return err
		}

		pending = sorted
	}

	steps, err := migration.Plan(p.differ, sorted)
	if err != nil {
		return fmt.Errorf("planning migrations: %w", err)
	}

	steps = pendingSteps(steps, pending)
	if len(steps) == 0 {
		fmt.Fprintln(out, "Nothing to apply.")
		return nil
	}

	results, err := analyzeSteps(cfg, p.dialect, steps)
	if err != nil {
		return err
	}

	for i := range steps {
		if err := printStepPlan(out, p, &steps[i], &results[i], showSQL); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\n%d migration(s) planned for %s.\n", len(steps), p.dialect)

	return nil
}

func printStepPlan(out io.Writer, p *project, s *migration.Step, r *analyzer.AnalysisResult, showSQL bool) error {
	cmds, err := p.gen.Generate(s.Up)
	if err != nil {
		return fmt.Errorf("generating migration %s: %w", s.Migration.ID, err)
	}

	fmt.Fprintf(out, "\n=== %s ===\n", s.Migration.ID)

	if len(s.Up) == 0 {
		fmt.Fprintln(out, "  (no changes)")
	}

	for i, op := range s.Up {
		fmt.Fprintf(out, "  %d. %s%s\n", i+1, operations.Describe(op), findingMarker(r, i))
	}

	fmt.Fprintf(out, "  %d command(s)", len(cmds))

	if n := countAlone(cmds); n > 0 {
		fmt.Fprintf(out, ", %d outside the transaction", n)
	}

	fmt.Fprintln(out)

	if showSQL {
		for _, c := range cmds {
			fmt.Fprintf(out, "\n%s\n", c.SQL)
		}
	}

	return nil
}

// findingMarker returns the highest severity found on operation i, formatted
// as a suffix.
func findingMarker(r *analyzer.AnalysisResult, i int) string {
	found := false
	maxSev := analyzer.Safe

	for _, f := range r.Findings {
		if f.OpIndex != i {
			continue
		}

		found = true

		if f.Severity > maxSev {
			maxSev = f.Severity
		}
	}

	if !found {
		return ""
	}

	return fmt.Sprintf("  [%s]", maxSev)
}

func countAlone(cmds []sqlgen.Command) int {
	n := 0

	for _, c := range cmds {
		if c.SuppressTransaction {
			n++
		}
	}

	return n
}
