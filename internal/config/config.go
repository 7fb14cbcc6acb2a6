// Package config loads migrate.yml, MIGRATE_* environment overrides, and
// defaults into one Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aqasim81/schema-migrator/internal/differ"
)

// Default values for configuration fields.
const (
	DefaultMigrationsDir    = "./migrations"
	DefaultLockTimeout      = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultTargetPGVersion  = 14
	DefaultFormat           = "text"
)

// Dialects lists the accepted dialect names.
var Dialects = []string{"sqlserver", "postgres", "sqlite", "mysql"} //nolint:gochecknoglobals // fixed list

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	Dialect          string // empty means inferred from DatabaseURL
	MigrationsDir    string
	HistoryTable     string // empty means the dialect default
	HistorySchema    string
	ProductVersion   string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	TargetPGVersion  int
	Format           string
	RenameTables     bool
	RenameColumns    bool
	TableSimilarity  float64
	MinSharedColumns int
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string   `yaml:"database_url"`
	Dialect          string   `yaml:"dialect"`
	MigrationsDir    string   `yaml:"migrations_dir"`
	HistoryTable     string   `yaml:"history_table"`
	HistorySchema    string   `yaml:"history_schema"`
	ProductVersion   string   `yaml:"product_version"`
	LockTimeout      string   `yaml:"lock_timeout"`
	StatementTimeout string   `yaml:"statement_timeout"`
	TargetPGVersion  int      `yaml:"target_pg_version"`
	Format           string   `yaml:"format"`
	RenameTables     *bool    `yaml:"rename_tables"`
	RenameColumns    *bool    `yaml:"rename_columns"`
	TableSimilarity  *float64 `yaml:"table_similarity"`
	MinSharedColumns *int     `yaml:"min_shared_columns"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		MigrationsDir:    DefaultMigrationsDir,
		LockTimeout:      DefaultLockTimeout,
		StatementTimeout: DefaultStatementTimeout,
		TargetPGVersion:  DefaultTargetPGVersion,
		Format:           DefaultFormat,
		RenameTables:     true,
		RenameColumns:    true,
		TableSimilarity:  differ.DefaultTableSimilarity,
		MinSharedColumns: differ.DefaultMinSharedColumns,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the --config flag
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.DatabaseURL, raw.DatabaseURL)
	setString(&cfg.Dialect, raw.Dialect)
	setString(&cfg.MigrationsDir, raw.MigrationsDir)
	setString(&cfg.HistoryTable, raw.HistoryTable)
	setString(&cfg.HistorySchema, raw.HistorySchema)
	setString(&cfg.ProductVersion, raw.ProductVersion)
	setString(&cfg.Format, raw.Format)

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	if raw.StatementTimeout != "" {
		d, err := time.ParseDuration(raw.StatementTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing statement_timeout %q: %w", raw.StatementTimeout, err)
		}

		cfg.StatementTimeout = d
	}

	if raw.TargetPGVersion != 0 {
		cfg.TargetPGVersion = raw.TargetPGVersion
	}

	if raw.RenameTables != nil {
		cfg.RenameTables = *raw.RenameTables
	}

	if raw.RenameColumns != nil {
		cfg.RenameColumns = *raw.RenameColumns
	}

	if raw.TableSimilarity != nil {
		cfg.TableSimilarity = *raw.TableSimilarity
	}

	if raw.MinSharedColumns != nil {
		cfg.MinSharedColumns = *raw.MinSharedColumns
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
// Values that do not parse are ignored.
func MergeEnv(cfg *Config) {
	setString(&cfg.DatabaseURL, os.Getenv("MIGRATE_DATABASE_URL"))
	setString(&cfg.Dialect, os.Getenv("MIGRATE_DIALECT"))
	setString(&cfg.MigrationsDir, os.Getenv("MIGRATE_MIGRATIONS_DIR"))
	setString(&cfg.HistoryTable, os.Getenv("MIGRATE_HISTORY_TABLE"))
	setString(&cfg.HistorySchema, os.Getenv("MIGRATE_HISTORY_SCHEMA"))
	setString(&cfg.ProductVersion, os.Getenv("MIGRATE_PRODUCT_VERSION"))

	if v := os.Getenv("MIGRATE_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}

	if v := os.Getenv("MIGRATE_STATEMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatementTimeout = d
		}
	}

	if v := os.Getenv("MIGRATE_RENAME_TABLES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RenameTables = b
		}
	}

	if v := os.Getenv("MIGRATE_RENAME_COLUMNS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RenameColumns = b
		}
	}
}

// Validate checks value ranges and the dialect name.
func (c *Config) Validate() error {
	switch {
	case c.Dialect != "" && !knownDialect(c.Dialect):
		return fmt.Errorf("%w: unknown dialect %q (want one of %s)", ErrInvalidConfig, c.Dialect, strings.Join(Dialects, ", "))
	case c.TableSimilarity < 0 || c.TableSimilarity > 1:
		return fmt.Errorf("%w: table_similarity %v is outside [0, 1]", ErrInvalidConfig, c.TableSimilarity)
	case c.MinSharedColumns < 0:
		return fmt.Errorf("%w: min_shared_columns %d is negative", ErrInvalidConfig, c.MinSharedColumns)
	case c.Format != "text" && c.Format != "json":
		return fmt.Errorf("%w: format %q (want text or json)", ErrInvalidConfig, c.Format)
	}

	return nil
}

// RenameOptions returns the differ settings described by the config.
func (c *Config) RenameOptions() differ.RenameOptions {
	return differ.RenameOptions{
		Tables:           c.RenameTables,
		Columns:          c.RenameColumns,
		TableSimilarity:  c.TableSimilarity,
		MinSharedColumns: c.MinSharedColumns,
	}
}

// ResolveDialect returns the configured dialect, or infers it from the
// database URL: postgres:// and postgresql:// URLs, sqlite:// URLs and .db
// files, sqlserver:// URLs, and go-sql-driver DSNs with a protocol section.
func (c *Config) ResolveDialect() (string, error) {
	if c.Dialect != "" {
		return c.Dialect, nil
	}

	u := c.DatabaseURL

	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return "postgres", nil
	case strings.HasPrefix(u, "sqlite://"), strings.HasSuffix(u, ".db"), u == ":memory:":
		return "sqlite", nil
	case strings.HasPrefix(u, "sqlserver://"):
		return "sqlserver", nil
	case strings.Contains(u, "@tcp("), strings.Contains(u, "@unix("):
		return "mysql", nil
	}

	return "", fmt.Errorf("%w: cannot infer dialect from database URL; set dialect", ErrInvalidConfig)
}

func knownDialect(name string) bool {
	for _, d := range Dialects {
		if d == name {
			return true
		}
	}

	return false
}
