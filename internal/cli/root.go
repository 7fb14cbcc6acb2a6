package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/config"
)

const version = "0.1.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// rootCmd is the base command for the migrate CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "migrate",
	Version: version,
	Short:   "Model-diffing schema migration CLI",
	Long: `migrate diffs successive schema model snapshots into ordered
migration operations, renders them as SQL for SQL Server, PostgreSQL,
MySQL, or SQLite, flags operations that lock or destroy data, and applies
or reverts them while recording progress in a history table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}

		setupLogger(cmd)

		return nil
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.PersistentFlags().String("config", "migrate.yml", "path to configuration file")
	rootCmd.PersistentFlags().String("database-url", "", "database connection string")
	rootCmd.PersistentFlags().String("dialect", "", "SQL dialect (sqlserver, postgres, mysql, sqlite); inferred from the URL when empty")
	rootCmd.PersistentFlags().String("migrations-dir", "", "path to migration files")
	rootCmd.PersistentFlags().String("history-table", "", "history table name")
	rootCmd.PersistentFlags().String("history-schema", "", "schema holding the history table")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	config.MergeEnv(cfg)
	mergeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	AppConfig = cfg

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	stringFlags := []struct {
		flag string
		dst  *string
	}{
		{"database-url", &cfg.DatabaseURL},
		{"dialect", &cfg.Dialect},
		{"migrations-dir", &cfg.MigrationsDir},
		{"history-table", &cfg.HistoryTable},
		{"history-schema", &cfg.HistorySchema},
	}

	for _, s := range stringFlags {
		if cmd.Flags().Lookup(s.flag) != nil && cmd.Flags().Changed(s.flag) {
			*s.dst, _ = cmd.Flags().GetString(s.flag)
		}
	}
}

// setupLogger routes runner logs to stderr, at debug level with --verbose
// and warnings only otherwise.
func setupLogger(cmd *cobra.Command) {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
}
