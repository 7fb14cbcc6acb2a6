package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/history"
	"github.com/aqasim81/schema-migrator/internal/migration"
)

// Migration states reported by status.
const (
	stateApplied = "applied"
	statePending = "pending"
	// stateMissing marks a history row with no migration file on disk.
	stateMissing = "missing"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display the current migration status showing applied and pending
migrations, and history rows whose migration files are missing.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func statusFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "output format (text, json); defaults to the configured format")
}

type migrationStatus struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	format := cfg.Format
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = f
	}

	migrations, err := migration.LoadFromDir(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	ctx := commandContext(cmd.Context())

	// Connection chatter would corrupt JSON output.
	connOut := out
	if format == "json" {
		connOut = io.Discard
	}

	p, conn, closeFn, err := onlineProject(ctx, cfg, connOut)
	if err != nil {
		return err
	}
	defer closeFn()

	applied, err := p.newRunner(conn).Applied(ctx)
	if err != nil {
		return err
	}

	statuses := migrationStatuses(migration.Sort(migrations), applied)

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		if err := enc.Encode(statuses); err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}

		return nil
	case "", "text":
		printStatus(out, statuses)
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
}

// migrationStatuses merges the directory with the history rows. Rows with no
// file are listed after the files, in history order.
func migrationStatuses(sorted []migration.Migration, applied []history.Row) []migrationStatus {
	done := make(map[string]bool, len(applied))
	for _, row := range applied {
		done[row.MigrationID] = true
	}

	onDisk := make(map[string]bool, len(sorted))
	statuses := make([]migrationStatus, 0, len(sorted))

	for _, m := range sorted {
		onDisk[m.ID] = true

		state := statePending
		if done[m.ID] {
			state = stateApplied
		}

		statuses = append(statuses, migrationStatus{ID: m.ID, State: state})
	}

	for _, row := range applied {
		if !onDisk[row.MigrationID] {
			statuses = append(statuses, migrationStatus{ID: row.MigrationID, State: stateMissing})
		}
	}

	return statuses
}

func printStatus(out io.Writer, statuses []migrationStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No migrations.")
		return
	}

	counts := make(map[string]int)

	for _, s := range statuses {
		fmt.Fprintf(out, "  %-8s %s\n", s.State, s.ID)
		counts[s.State]++
	}

	fmt.Fprintf(out, "\n%d applied, %d pending", counts[stateApplied], counts[statePending])

	if n := counts[stateMissing]; n > 0 {
		fmt.Fprintf(out, ", %d missing", n)
	}

	fmt.Fprintln(out, ".")
}
