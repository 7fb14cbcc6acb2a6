//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/history"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/mysql"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/postgres"
)

func historyRows(t *testing.T, conn database.Conn, repo *history.Repository) [][]string {
	t.Helper()

	rows, err := conn.QueryStrings(context.Background(), repo.GetAppliedMigrationsScript())
	require.NoError(t, err)

	return rows
}

func TestHistory_scriptsAgainstServers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    history.Dialect
		conn func(t *testing.T) database.Conn
	}{
		{
			name: "postgres",
			d:    postgres.New(),
			conn: func(t *testing.T) database.Conn { return database.NewPgxConn(SetupPostgres(t)) },
		},
		{
			name: "mysql",
			d:    mysql.New(),
			conn: func(t *testing.T) database.Conn { return SetupMySQL(t) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			conn := tt.conn(t)

			repo, err := history.New(tt.d, history.WithTableName("schema_history"))
			require.NoError(t, err)

			n, err := conn.QueryInt(ctx, repo.ExistsScript())
			require.NoError(t, err)
			assert.Zero(t, n)

			require.NoError(t, conn.Exec(ctx, repo.GetCreateIfNotExistsScript()))
			require.NoError(t, conn.Exec(ctx, repo.GetCreateIfNotExistsScript()), "create is repeatable")

			n, err = conn.QueryInt(ctx, repo.ExistsScript())
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
			assert.Empty(t, historyRows(t, conn, repo))

			require.NoError(t, conn.Exec(ctx, repo.GetInsertScript(history.Row{MigrationID: addEmailID, ProductVersion: "test/2"})))
			require.NoError(t, conn.Exec(ctx, repo.GetInsertScript(history.Row{MigrationID: createUsersID, ProductVersion: "test/1"})))

			assert.Equal(t, [][]string{
				{createUsersID, "test/1"},
				{addEmailID, "test/2"},
			}, historyRows(t, conn, repo), "rows come back in id order")

			require.NoError(t, conn.Exec(ctx, repo.GetDeleteScript(addEmailID)))
			assert.Equal(t, [][]string{{createUsersID, "test/1"}}, historyRows(t, conn, repo))
		})
	}
}

func TestHistory_postgresGuardedInsertRunsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := database.NewPgxConn(SetupPostgres(t))

	repo, err := history.New(postgres.New())
	require.NoError(t, err)

	require.NoError(t, conn.Exec(ctx, repo.GetCreateIfNotExistsScript()))

	begin, err := repo.GetBeginIfNotExistsScript(createUsersID)
	require.NoError(t, err)

	end, err := repo.GetEndIfScript()
	require.NoError(t, err)

	guarded := begin + "\n" + repo.GetInsertScript(history.Row{MigrationID: createUsersID, ProductVersion: "test/1"}) + end

	require.NoError(t, conn.Exec(ctx, guarded))
	require.NoError(t, conn.Exec(ctx, guarded), "a second run skips the insert instead of violating the key")

	assert.Len(t, historyRows(t, conn, repo), 1)
}
