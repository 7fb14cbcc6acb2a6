//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/runner"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/postgres"
)

func tableCount(t *testing.T, conn database.Conn, name string) int64 {
	t.Helper()

	n, err := conn.QueryInt(context.Background(),
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = '"+name+"'")
	require.NoError(t, err)

	return n
}

func columnCount(t *testing.T, conn database.Conn, table, column string) int64 {
	t.Helper()

	n, err := conn.QueryInt(context.Background(),
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_name = '"+table+"' AND column_name = '"+column+"'")
	require.NoError(t, err)

	return n
}

func TestApply_postgres_allTrackedAndReverted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := database.NewPgxConn(SetupPostgres(t))

	var events []runner.ProgressEvent
	r := newRunner(t, conn, postgres.New(),
		runner.WithProgressCallback(func(e runner.ProgressEvent) { events = append(events, e) }),
	)

	ms := makeMigrations()

	require.NoError(t, r.Apply(ctx, ms))
	assert.Equal(t, []string{createUsersID, createPostsID, addEmailID}, appliedIDs(t, r))

	// 3 starting + 3 completed.
	require.Len(t, events, 6)

	for i := 0; i < 3; i++ {
		assert.Equal(t, runner.StatusStarting, events[i*2].Status)
		assert.Equal(t, runner.StatusCompleted, events[i*2+1].Status)
	}

	require.NoError(t, conn.Exec(ctx, `INSERT INTO "users" ("name", "email") VALUES ('ada', 'ada@example.com')`))

	require.NoError(t, r.Revert(ctx, ms, 1))
	assert.Equal(t, []string{createUsersID, createPostsID}, appliedIDs(t, r))
	assert.Zero(t, columnCount(t, conn, "users", "email"))

	rows, err := conn.QueryStrings(ctx, `SELECT "name" FROM "users"`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ada"}}, rows, "reverting a column keeps the rows")

	require.NoError(t, r.RevertTo(ctx, ms, runner.InitialTarget))
	assert.Empty(t, appliedIDs(t, r))
	assert.Zero(t, tableCount(t, conn, "users"))
	assert.Zero(t, tableCount(t, conn, "posts"))
}

func TestApply_postgres_alreadyAppliedIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := database.NewPgxConn(SetupPostgres(t))
	ms := makeMigrations()

	require.NoError(t, newRunner(t, conn, postgres.New()).Apply(ctx, ms))

	var events []runner.ProgressEvent
	r := newRunner(t, conn, postgres.New(),
		runner.WithProgressCallback(func(e runner.ProgressEvent) { events = append(events, e) }),
	)

	require.NoError(t, r.Apply(ctx, ms))
	assert.Empty(t, events)
	assert.Len(t, appliedIDs(t, r), 3)
}

func TestApply_postgres_concurrentIndexOutsideTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := database.NewPgxConn(SetupPostgres(t))

	withIndex := schema.NewBuilder().
		Table("", "users", func(tb *schema.TableBuilder) {
			usersTable(tb, false)
			tb.Index("name").Named("IX_users_name").
				Annotate(postgres.AnnotationConcurrently, schema.BoolValue(true))
		}).
		MustBuild()

	ms := makeMigrations()[:1]
	ms = append(ms, migration.Migration{
		ID: "20240104000000_index_name", Version: "20240104000000", Name: "index_name", Model: withIndex,
	})

	r := newRunner(t, conn, postgres.New())
	require.NoError(t, r.Apply(ctx, ms), "CREATE INDEX CONCURRENTLY fails inside a transaction")

	n, err := conn.QueryInt(ctx, `SELECT COUNT(*) FROM pg_indexes WHERE indexname = 'IX_users_name'`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, r.Revert(ctx, ms, 1))

	n, err = conn.QueryInt(ctx, `SELECT COUNT(*) FROM pg_indexes WHERE indexname = 'IX_users_name'`)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApply_postgres_dryRunNoChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := database.NewPgxConn(SetupPostgres(t))

	var skipped int
	r := newRunner(t, conn, postgres.New(),
		runner.WithDryRun(true),
		runner.WithProgressCallback(func(e runner.ProgressEvent) {
			if e.Status == runner.StatusSkipped {
				skipped++
			}
		}),
	)

	require.NoError(t, r.Apply(ctx, makeMigrations()))
	assert.Equal(t, 3, skipped)
	assert.Zero(t, tableCount(t, conn, "users"))
	assert.Zero(t, tableCount(t, conn, defaultHistoryTable))
}

func TestApply_postgres_failureRollsBackMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := database.NewPgxConn(SetupPostgres(t))
	r := newRunner(t, conn, postgres.New())

	ms := makeMigrations()
	ms[1].UpSQL = "SELECT * FROM missing_table;"

	err := r.Apply(ctx, ms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), createPostsID)

	assert.Equal(t, []string{createUsersID}, appliedIDs(t, r), "earlier migrations stay applied")
	assert.Zero(t, tableCount(t, conn, "posts"), "the failed migration's DDL rolled back")
}

func TestApply_postgres_advisoryLockBlocksApply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := SetupPostgres(t)

	handle, err := database.TryAcquireLock(ctx, pool)
	require.NoError(t, err)

	t.Cleanup(func() { _ = handle.Release(context.Background()) })

	r := newRunner(t, database.NewPgxConn(pool), postgres.New())

	err = r.Apply(ctx, makeMigrations())
	require.ErrorIs(t, err, database.ErrLockNotAcquired)

	require.NoError(t, handle.Release(ctx))
	require.NoError(t, r.Apply(ctx, makeMigrations()), "lock released")
}

func TestApply_postgres_withTimeouts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := database.NewPgxConn(SetupPostgres(t),
		database.WithLockTimeout(2*time.Second),
		database.WithStatementTimeout(10*time.Second),
	)

	r := newRunner(t, conn, postgres.New())
	require.NoError(t, r.Apply(ctx, makeMigrations()))
	assert.Len(t, appliedIDs(t, r), 3)
}

func TestApply_postgres_concurrentApplyConverges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := SetupPostgres(t)
	ms := makeMigrations()

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)

	for i := range errs {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			errs[i] = newRunner(t, database.NewPgxConn(pool), postgres.New()).Apply(ctx, ms)
		}(i)
	}

	wg.Wait()

	succeeded := 0

	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		require.ErrorIs(t, err, database.ErrLockNotAcquired)
	}

	assert.GreaterOrEqual(t, succeeded, 1)
	assert.Len(t, appliedIDs(t, newRunner(t, database.NewPgxConn(pool), postgres.New())), 3)
}

func TestScript_postgres_idempotentRunsTwice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := database.NewPgxConn(SetupPostgres(t))
	r := newRunner(t, conn, postgres.New())

	script, err := r.Script(makeMigrations(), runner.ScriptOptions{Idempotent: true})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(ctx, script))
	require.NoError(t, conn.Exec(ctx, script), "a guarded script is a no-op the second time")

	assert.Equal(t, []string{createUsersID, createPostsID, addEmailID}, appliedIDs(t, r))
	assert.Equal(t, int64(1), columnCount(t, conn, "users", "email"))
}
