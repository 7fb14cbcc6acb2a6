package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/runner"
)

// errStepsAndTarget is returned when both --steps and --target are set.
var errStepsAndTarget = errors.New("--steps and --target are mutually exclusive")

var rollbackCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "rollback",
	Short: "Roll back applied migrations",
	Long: `Roll back one or more previously applied migrations, newest first.
Each migration is reverted by diffing its model back to its predecessor's
and running its down SQL file first.`,
	RunE: runRollback,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rollbackFlags(rollbackCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func rollbackFlags(cmd *cobra.Command) {
	cmd.Flags().Int("steps", 1, "number of migrations to roll back")
	cmd.Flags().String("target", "", `roll back to a specific migration ID ("0" reverts everything)`)
	cmd.Flags().Bool("dry-run", false, "show what would be reverted without executing")
}

func runRollback(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	target, _ := cmd.Flags().GetString("target")
	steps, _ := cmd.Flags().GetInt("steps")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if target != "" && cmd.Flags().Changed("steps") {
		return errStepsAndTarget
	}

	sorted, err := loadAndSortMigrations(cfg.MigrationsDir, out)
	if err != nil || sorted == nil {
		return err
	}

	ctx := commandContext(cmd.Context())

	p, conn, closeFn, err := onlineProject(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	reverted := 0

	r := p.newRunner(conn,
		runner.WithDryRun(dryRun),
		runner.WithProgressCallback(func(event runner.ProgressEvent) {
			switch event.Status {
			case runner.StatusStarting:
				fmt.Fprintf(out, "  Reverting %s ... ", event.Migration.ID)
			case runner.StatusCompleted:
				fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
				reverted++
			case runner.StatusSkipped:
				fmt.Fprintf(out, "  Would revert %s\n", event.Migration.ID)
				reverted++
			case runner.StatusFailed:
				fmt.Fprintf(out, "FAILED\n")
				fmt.Fprintf(out, "    Error: %v\n", event.Error)
			}
		}),
	)

	if target != "" {
		err = r.RevertTo(ctx, sorted, target)
	} else {
		err = r.Revert(ctx, sorted, steps)
	}

	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be reverted.\n", reverted)
	} else {
		fmt.Fprintf(out, "\nRollback complete: %d reverted.\n", reverted)
	}

	return nil
}
