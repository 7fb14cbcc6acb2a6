package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/aqasim81/schema-migrator/internal/config"
)

const (
	createUsersID = "20240101000000_create_users"
	indexNameID   = "20240102000000_index_users_name"
)

func testMigrationsDir() string {
	return filepath.Join("testdata", "migrations")
}

// setupTestConfig sets AppConfig for the duration of the test and restores it on cleanup.
func setupTestConfig(t *testing.T, cfg *config.Config) {
	t.Helper()

	old := AppConfig
	AppConfig = cfg

	t.Cleanup(func() { AppConfig = old })
}

// offlineConfig returns defaults reading the testdata migrations.
func offlineConfig() *config.Config {
	cfg := config.New()
	cfg.MigrationsDir = testMigrationsDir()

	return cfg
}

// sqliteConfig returns a config pointing at a fresh SQLite file.
func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := offlineConfig()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "app.db")

	return cfg
}

// newCmd creates a fresh cobra.Command wired to run with a captured output buffer.
func newCmd(run func(*cobra.Command, []string) error, flags func(*cobra.Command), args ...string) (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{
		Use:           "test",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if flags != nil {
		flags(cmd)
	}

	if args == nil {
		args = []string{} // nil would make cobra read os.Args
	}

	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	return cmd, buf
}

// execute runs the command and returns its output.
func execute(t *testing.T, run func(*cobra.Command, []string) error, flags func(*cobra.Command), args ...string) (string, error) {
	t.Helper()

	cmd, buf := newCmd(run, flags, args...)
	err := cmd.Execute()

	return buf.String(), err
}
