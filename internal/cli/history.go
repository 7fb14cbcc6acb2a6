package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "history",
	Short: "Show the migration history table",
	Long: `List the rows of the migration history table with the product
version that applied each migration. With --create-script, print the script
that creates the table instead; no connection is needed for that.`,
	RunE: runHistory,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	historyFlags(historyCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("create-script", false, "print the idempotent history table create script")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	if createScript, _ := cmd.Flags().GetBool("create-script"); createScript {
		dialect, err := offlineDialect(cfg)
		if err != nil {
			return err
		}

		p, err := newProject(cfg, dialect)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, p.hist.GetCreateIfNotExistsScript())

		return nil
	}

	ctx := commandContext(cmd.Context())

	p, conn, closeFn, err := onlineProject(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	rows, err := p.newRunner(conn).Applied(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "History table %s\n", p.hist.Table())

	if len(rows) == 0 {
		fmt.Fprintln(out, "No migrations applied.")
		return nil
	}

	for _, row := range rows {
		fmt.Fprintf(out, "  %s  %s\n", row.MigrationID, row.ProductVersion)
	}

	return nil
}
