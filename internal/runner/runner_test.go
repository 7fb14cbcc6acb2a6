package runner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/history"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/runner"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/postgres"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/sqlite"
)

func openSQLite(t *testing.T) database.Conn {
	t.Helper()

	conn, closeFn, err := database.Connect(context.Background(), database.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(closeFn)

	return conn
}

func appliedIDs(t *testing.T, r *runner.Runner) []string {
	t.Helper()

	rows, err := r.Applied(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.MigrationID
	}

	return ids
}

func TestRunner_sqliteLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := openSQLite(t)
	progress := &progressLog{}
	r := newRunner(t, conn, sqlite.New(), runner.WithProgressCallback(progress.record))

	ms := twoMigrations()
	ms[0].UpSQL = `INSERT INTO "users" ("name", "email") VALUES ('ada', 'ada@example.com');`

	assert.Empty(t, appliedIDs(t, r), "no history table yet")

	require.NoError(t, r.Apply(ctx, ms))
	assert.Equal(t, []string{createUsersID, addEmailID}, appliedIDs(t, r))

	rows, err := conn.QueryStrings(ctx, `SELECT "name", "email" FROM "users"`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ada", "ada@example.com"}}, rows)

	applied, err := r.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, runner.DefaultProductVersion, applied[0].ProductVersion)

	pending, err := r.Pending(ctx, ms)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, r.Apply(ctx, ms), "applying again is a no-op")

	require.NoError(t, r.Revert(ctx, ms, 1))
	assert.Equal(t, []string{createUsersID}, appliedIDs(t, r))

	n, err := conn.QueryInt(ctx, `SELECT COUNT(*) FROM pragma_table_info('users') WHERE "name" = 'email'`)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, r.RevertTo(ctx, ms, runner.InitialTarget))
	assert.Empty(t, appliedIDs(t, r))

	n, err = conn.QueryInt(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE "name" = 'users'`)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []string{
		createUsersID + ":up:starting",
		createUsersID + ":up:completed",
		addEmailID + ":up:starting",
		addEmailID + ":up:completed",
		addEmailID + ":down:starting",
		addEmailID + ":down:completed",
		createUsersID + ":down:starting",
		createUsersID + ":down:completed",
	}, progress.summary())
}

func TestRunner_pending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := openSQLite(t)
	r := newRunner(t, conn, sqlite.New())
	ms := twoMigrations()

	pending, err := r.Pending(ctx, ms)
	require.NoError(t, err)
	assert.Equal(t, []string{createUsersID, addEmailID}, migration.IDs(pending))

	require.NoError(t, r.Apply(ctx, ms[1:]))

	pending, err = r.Pending(ctx, ms)
	require.NoError(t, err)
	assert.Equal(t, []string{addEmailID}, migration.IDs(pending))
}

func TestRunner_outOfOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRunner(t, openSQLite(t), sqlite.New())
	ms := twoMigrations()

	require.NoError(t, r.Apply(ctx, ms[:1]))

	err := r.Apply(ctx, ms)
	require.ErrorIs(t, err, runner.ErrOutOfOrder)
	assert.Equal(t, []string{addEmailID}, appliedIDs(t, r))
}

func TestRunner_revertToUnknownTarget(t *testing.T) {
	t.Parallel()

	r := newRunner(t, openSQLite(t), sqlite.New())

	err := r.RevertTo(context.Background(), twoMigrations(), "20990101000000_missing")
	require.ErrorIs(t, err, runner.ErrUnknownMigration)
}

func TestRunner_revertAppliedMigrationMissingFromDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRunner(t, openSQLite(t), sqlite.New())
	ms := twoMigrations()

	require.NoError(t, r.Apply(ctx, ms))

	err := r.Revert(ctx, ms[1:], 1)
	require.ErrorIs(t, err, runner.ErrUnknownMigration)
	assert.Contains(t, err.Error(), addEmailID)
}

func TestRunner_transactionBoundaries(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	r := newRunner(t, conn, postgres.New())

	ms := twoMigrations()
	ms[0].UpSQL = "VACUUM users;"

	require.NoError(t, r.Apply(context.Background(), ms))

	assert.Equal(t, []string{
		"exec",
		"begin", "tx", "commit",
		"begin", "tx", "commit",
		"exec",
		"begin", "tx", "commit",
	}, conn.calls)
	assert.Equal(t, "VACUUM users;\n", conn.sql[7])
	assert.Contains(t, conn.sql[5], `ADD COLUMN "email"`)
	assert.Contains(t, conn.sql[9], "INSERT INTO")
}

func TestRunner_failureRollsBack(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	progress := &progressLog{}
	r := newRunner(t, conn, postgres.New(), runner.WithProgressCallback(progress.record))

	ms := twoMigrations()[1:]
	ms[0].UpSQL = "SELECT FAIL;"

	err := r.Apply(context.Background(), ms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executing migration "+createUsersID+" (up)")

	assert.Equal(t, "rollback", conn.calls[len(conn.calls)-1])
	assert.NotContains(t, conn.calls, "commit")
	assert.Equal(t, []string{
		createUsersID + ":up:starting",
		createUsersID + ":up:failed",
	}, progress.summary())
}

func TestRunner_dryRunExecutesNothing(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	progress := &progressLog{}
	r := newRunner(t, conn, postgres.New(), runner.WithDryRun(true), runner.WithProgressCallback(progress.record))

	require.NoError(t, r.Apply(context.Background(), twoMigrations()))

	assert.Empty(t, conn.calls)
	assert.Equal(t, []string{
		createUsersID + ":up:skipped",
		addEmailID + ":up:skipped",
	}, progress.summary())
}

func TestRunner_skipsAppliedRows(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{applied: [][]string{{createUsersID, "x"}}}
	r := newRunner(t, conn, postgres.New())

	require.NoError(t, r.Apply(context.Background(), twoMigrations()))

	var inserted []string

	for i, call := range conn.calls {
		if call == "tx" {
			inserted = append(inserted, conn.sql[i])
		}
	}

	require.Len(t, inserted, 1)
	assert.Contains(t, inserted[0], `ALTER TABLE "users" ADD COLUMN "email"`)
	assert.Contains(t, inserted[0], "'"+addEmailID+"'")
}

func TestRunner_withoutConnection(t *testing.T) {
	t.Parallel()

	hist, err := history.New(sqlite.New())
	require.NoError(t, err)

	r := runner.New(nil, nil, hist)

	_, err = r.Applied(context.Background())
	require.ErrorIs(t, err, runner.ErrNoConnection)
	require.ErrorIs(t, r.Apply(context.Background(), nil), runner.ErrNoConnection)
}
