package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/introspect"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// errNoIntrospection is returned for dialects the snapshot command cannot read.
var errNoIntrospection = errors.New("snapshot is not supported for this connection")

var snapshotCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "snapshot",
	Short: "Write a model file from a live database",
	Long: `Read the tables, columns, keys, foreign keys, and indexes of a live
database and write them as a YAML model snapshot. The history table is left
out. Use it to start a migrations directory from an existing database or to
check that applied migrations produced the expected model.`,
	RunE: runSnapshot,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	snapshotFlags(snapshotCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func snapshotFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", introspect.DefaultPostgresSchema, "PostgreSQL schema to read")
	cmd.Flags().StringP("output", "o", "", "write the model to a file instead of stdout")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	schemaName, _ := cmd.Flags().GetString("schema")
	output, _ := cmd.Flags().GetString("output")

	ctx := commandContext(cmd.Context())

	p, conn, closeFn, err := onlineProject(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := readSnapshot(ctx, p.dialect, conn, schemaName, introspect.WithExcludedTables(p.hist.Table().Name))
	if err != nil {
		return err
	}

	data, err := schema.Marshal(snap)
	if err != nil {
		return err
	}

	if output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(output, data, 0o600); err != nil { //nolint:mnd // owner read/write
		return fmt.Errorf("writing snapshot: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d tables)\n", output, len(snap.Tables))

	return nil
}

func readSnapshot(
	ctx context.Context,
	dialect string,
	conn database.Conn,
	schemaName string,
	opts ...introspect.Option,
) (*schema.Snapshot, error) {
	switch c := conn.(type) {
	case *database.PgxConn:
		return introspect.Postgres(ctx, c.Pool(), schemaName, opts...)
	case *database.SQLConn:
		switch dialect {
		case database.SQLite:
			return introspect.SQLite(ctx, c.DB(), opts...)
		case database.MySQL:
			return introspect.MySQL(ctx, c.DB(), opts...)
		}
	}

	return nil, fmt.Errorf("%w: %s", errNoIntrospection, dialect)
}
