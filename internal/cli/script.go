package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/runner"
)

var scriptCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "script",
	Short: "Render a migration script",
	Long: `Render the SQL that moves a database from one migration to another,
including the history table maintenance, without connecting to it. A --to
before --from renders a revert script. Idempotent scripts check the history
table before each migration so they can run against a database in any state.`,
	RunE: runScript,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	scriptFlags(scriptCmd)
	rootCmd.AddCommand(scriptCmd)
}

func scriptFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", `last migration already applied ("" or "0" for none)`)
	cmd.Flags().String("to", "", "last migration the script applies (default newest)")
	cmd.Flags().Bool("idempotent", false, "guard each migration with a history table check")
	cmd.Flags().StringP("output", "o", "", "write the script to a file instead of stdout")
}

func runScript(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	idempotent, _ := cmd.Flags().GetBool("idempotent")
	output, _ := cmd.Flags().GetString("output")

	migrations, err := migration.LoadFromDir(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	dialect, err := offlineDialect(cfg)
	if err != nil {
		return err
	}

	p, err := newProject(cfg, dialect)
	if err != nil {
		return err
	}

	text, err := p.newRunner(nil).Script(migrations, runner.ScriptOptions{
		From:       from,
		To:         to,
		Idempotent: idempotent,
	})
	if err != nil {
		return err
	}

	if output == "" {
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}

	if err := os.WriteFile(output, []byte(text), 0o600); err != nil { //nolint:mnd // owner read/write
		return fmt.Errorf("writing script: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)

	return nil
}
