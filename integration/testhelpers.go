//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/history"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/runner"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

const (
	postgresImage = "postgres:16-alpine"
	mysqlImage    = "mysql:8.4"
	testDB        = "migrate_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)

	return host, mapped.Port()
}

// SetupPostgresDSN starts a PostgreSQL 16 container and returns its URL.
// The container is terminated when the test completes.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port + "/" + testDB + "?sslmode=disable"
}

// SetupPostgres starts a PostgreSQL 16 container and returns a connection pool.
// The container and pool are automatically cleaned up when the test completes.
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, SetupPostgresDSN(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	require.NoError(t, pool.Ping(ctx))

	return pool
}

// SetupMySQLDSN starts a MySQL 8.4 container and returns a go-sql-driver DSN.
func SetupMySQLDSN(t *testing.T) string {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        mysqlImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      testDB,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
			"MYSQL_ROOT_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
			WithStartupTimeout(120 * time.Second),
	}, "3306/tcp")

	return testUser + ":" + testPassword + "@tcp(" + host + ":" + port + ")/" + testDB
}

// SetupMySQL starts a MySQL container and returns a named-lock connection.
func SetupMySQL(t *testing.T) *database.SQLConn {
	t.Helper()

	db, err := database.OpenMySQL(context.Background(), SetupMySQLDSN(t))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return database.NewSQLConn(db, database.WithNamedLock())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunner(t *testing.T, conn database.Conn, d history.Dialect, opts ...runner.Option) *runner.Runner {
	t.Helper()

	hist, err := history.New(d)
	require.NoError(t, err)

	opts = append([]runner.Option{runner.WithLogger(quietLogger())}, opts...)

	return runner.New(conn, sqlgen.New(d), hist, opts...)
}

const (
	defaultHistoryTable = "__EFMigrationsHistory"

	createUsersID = "20240101000000_create_users"
	createPostsID = "20240102000000_create_posts"
	addEmailID    = "20240103000000_add_email"
)

func usersTable(tb *schema.TableBuilder, withEmail bool) {
	tb.Column("id", schema.Int32()).Identity()
	tb.Column("name", schema.String(100))

	if withEmail {
		tb.Column("email", schema.String(200)).Nullable()
	}

	tb.PrimaryKey("id")
}

func postsTable(tb *schema.TableBuilder) {
	tb.Column("id", schema.Int32()).Identity()
	tb.Column("user_id", schema.Int32())
	tb.Column("title", schema.String(200)).Nullable()
	tb.PrimaryKey("id")
	tb.ForeignKey([]string{"user_id"}, "", "users", "id").OnDelete(schema.Cascade)
	tb.Index("user_id").Named("IX_posts_user_id")
}

// makeMigrations returns three migrations: users, then posts referencing
// users, then a nullable email column on users.
func makeMigrations() []migration.Migration {
	m1 := schema.NewBuilder().
		Table("", "users", func(tb *schema.TableBuilder) { usersTable(tb, false) }).
		MustBuild()

	m2 := schema.NewBuilder().
		Table("", "users", func(tb *schema.TableBuilder) { usersTable(tb, false) }).
		Table("", "posts", postsTable).
		MustBuild()

	m3 := schema.NewBuilder().
		Table("", "users", func(tb *schema.TableBuilder) { usersTable(tb, true) }).
		Table("", "posts", postsTable).
		MustBuild()

	return []migration.Migration{
		{ID: createUsersID, Version: "20240101000000", Name: "create_users", Model: m1},
		{ID: createPostsID, Version: "20240102000000", Name: "create_posts", Model: m2},
		{ID: addEmailID, Version: "20240103000000", Name: "add_email", Model: m3},
	}
}

func appliedIDs(t *testing.T, r *runner.Runner) []string {
	t.Helper()

	rows, err := r.Applied(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MigrationID)
	}

	return ids
}
