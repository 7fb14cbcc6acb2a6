package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/analyzer"
	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/runner"
)

// errDangerousMigrations is returned when apply is blocked by high/critical findings.
var errDangerousMigrations = errors.New("apply aborted: dangerous migrations detected (use --force to override)")

var applyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "apply",
	Short: "Apply pending migrations",
	Long: `Apply pending database migrations with configurable lock and
statement timeouts. Pending migrations are analyzed first and apply stops on
high or critical findings unless --force is given. Supports dry-run mode.`,
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	applyFlags(applyCmd)
	rootCmd.AddCommand(applyCmd)
}

func applyFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	cmd.Flags().Bool("force", false, "skip safety checks")
	cmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	cmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg := *AppConfig

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")

	if cmd.Flags().Changed("lock-timeout") {
		cfg.LockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	if cmd.Flags().Changed("statement-timeout") {
		cfg.StatementTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	out := cmd.OutOrStdout()

	sorted, err := loadAndSortMigrations(cfg.MigrationsDir, out)
	if err != nil || sorted == nil {
		return err
	}

	ctx := commandContext(cmd.Context())

	p, conn, closeFn, err := onlineProject(ctx, &cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	if !force && !dryRun {
		blocked, err := checkDangerousMigrations(ctx, out, p, conn, sorted)
		if err != nil {
			return err
		}

		if blocked {
			return errDangerousMigrations
		}
	}

	return executeMigrations(ctx, out, p, conn, sorted, dryRun)
}

func executeMigrations(
	ctx context.Context,
	out io.Writer,
	p *project,
	conn database.Conn,
	sorted []migration.Migration,
	dryRun bool,
) error {
	applied := 0
	skipped := 0

	r := p.newRunner(conn,
		runner.WithDryRun(dryRun),
		runner.WithProgressCallback(func(event runner.ProgressEvent) {
			switch event.Status {
			case runner.StatusStarting:
				fmt.Fprintf(out, "  Applying %s ... ", event.Migration.ID)
			case runner.StatusCompleted:
				fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
				applied++
			case runner.StatusSkipped:
				fmt.Fprintf(out, "  Would apply %s\n", event.Migration.ID)
				skipped++
			case runner.StatusFailed:
				fmt.Fprintf(out, "FAILED\n")
				fmt.Fprintf(out, "    Error: %v\n", event.Error)
			}
		}),
	)

	if dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	if err := r.Apply(ctx, sorted); err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be applied, %d already applied.\n",
			skipped, len(sorted)-skipped)
	} else {
		fmt.Fprintf(out, "\nApply complete: %d applied, %d already applied.\n", applied, len(sorted)-applied)
	}

	return nil
}

// checkDangerousMigrations analyzes the pending migrations and returns true
// if high or critical findings were found (blocking apply).
func checkDangerousMigrations(
	ctx context.Context,
	out io.Writer,
	p *project,
	conn database.Conn,
	sorted []migration.Migration,
) (bool, error) {
	pending, err := p.newRunner(conn).Pending(ctx, sorted)
	if err != nil {
		return false, err
	}

	if len(pending) == 0 {
		return false, nil
	}

	steps, err := migration.Plan(p.differ, sorted)
	if err != nil {
		return false, fmt.Errorf("planning migrations: %w", err)
	}

	results, err := analyzeSteps(p.cfg, p.dialect, pendingSteps(steps, pending))
	if err != nil {
		return false, err
	}

	if !anyAtLeast(results, analyzer.Medium) {
		return false, nil
	}

	return printAnalysisResults(out, results), nil
}

// pendingSteps keeps the steps whose migration is pending. Steps are planned
// over every migration since each diffs against its predecessor.
func pendingSteps(steps []migration.Step, pending []migration.Migration) []migration.Step {
	want := make(map[string]bool, len(pending))
	for _, m := range pending {
		want[m.ID] = true
	}

	var out []migration.Step

	for _, s := range steps {
		if want[s.Migration.ID] {
			out = append(out, s)
		}
	}

	return out
}
