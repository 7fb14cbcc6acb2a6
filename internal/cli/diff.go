package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

var diffCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "diff [old-model] new-model",
	Short: "Diff two model files",
	Long: `Diff two YAML model snapshots and print the SQL that migrates the
old model to the new one. With a single argument the old model is empty.`,
	Args: cobra.RangeArgs(1, 2), //nolint:mnd // old and new model
	RunE: runDiff,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	diffFlags(diffCmd)
	rootCmd.AddCommand(diffCmd)
}

func diffFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("ops", false, "list the operations instead of rendering SQL")
	cmd.Flags().Bool("idempotent", false, "guard creates and drops with existence checks")
}

func runDiff(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var oldModel *schema.Snapshot

	newPath := args[0]

	if len(args) == 2 { //nolint:mnd // old and new model
		var err error

		if oldModel, err = schema.Load(args[0]); err != nil {
			return err
		}

		newPath = args[1]
	}

	newModel, err := schema.Load(newPath)
	if err != nil {
		return err
	}

	dialect, err := offlineDialect(AppConfig)
	if err != nil {
		return err
	}

	p, err := newProject(AppConfig, dialect)
	if err != nil {
		return err
	}

	ops, err := p.differ.Diff(oldModel, newModel)
	if err != nil {
		return err
	}

	if listOps, _ := cmd.Flags().GetBool("ops"); listOps {
		for _, op := range ops {
			fmt.Fprintln(out, operations.Describe(op))
		}

		return nil
	}

	idempotent, _ := cmd.Flags().GetBool("idempotent")
	gen := sqlgen.New(p.gen.Dialect(), sqlgen.WithIdempotent(idempotent))

	cmds, err := gen.Generate(ops)
	if err != nil {
		return err
	}

	fmt.Fprint(out, gen.Script(cmds))

	return nil
}
