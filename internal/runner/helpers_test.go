package runner_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/history"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/runner"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

const (
	createUsersID = "20240101000000_create_users"
	addEmailID    = "20240102000000_add_email"
)

func usersModel(withEmail bool) *schema.Snapshot {
	return schema.NewBuilder().
		Table("", "users", func(tb *schema.TableBuilder) {
			tb.Column("id", schema.Int32()).Identity()
			tb.Column("name", schema.String(100))

			if withEmail {
				tb.Column("email", schema.String(200)).Nullable()
			}

			tb.PrimaryKey("id")
		}).
		MustBuild()
}

func twoMigrations() []migration.Migration {
	return []migration.Migration{
		{ID: addEmailID, Version: "20240102000000", Name: "add_email", Model: usersModel(true)},
		{ID: createUsersID, Version: "20240101000000", Name: "create_users", Model: usersModel(false)},
	}
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

type progressLog struct {
	mu     sync.Mutex
	events []runner.ProgressEvent
}

func (p *progressLog) record(e runner.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, e)
}

// summary renders events as "id:direction:status".
func (p *progressLog) summary() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Migration.ID + ":" + string(e.Direction) + ":" + e.Status
	}

	return out
}

// fakeConn records the calls the runner makes. Exec text containing "FAIL"
// returns an error.
type fakeConn struct {
	mu      sync.Mutex
	calls   []string
	sql     []string
	applied [][]string
}

func (c *fakeConn) log(call, sql string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, call)
	c.sql = append(c.sql, sql)
}

func (c *fakeConn) Exec(_ context.Context, sql string) error {
	c.log("exec", sql)

	return failOn(sql)
}

func (c *fakeConn) Begin(context.Context) (database.Tx, error) {
	c.log("begin", "")

	return &fakeTx{c: c}, nil
}

func (c *fakeConn) QueryInt(context.Context, string) (int64, error) {
	if c.applied == nil {
		return 0, nil
	}

	return 1, nil
}

func (c *fakeConn) QueryStrings(context.Context, string) ([][]string, error) {
	return c.applied, nil
}

type fakeTx struct {
	c *fakeConn
}

func (t *fakeTx) Exec(_ context.Context, sql string) error {
	t.c.log("tx", sql)

	return failOn(sql)
}

func (t *fakeTx) Commit(context.Context) error {
	t.c.log("commit", "")

	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.c.log("rollback", "")

	return nil
}

type execError string

func (e execError) Error() string { return string(e) }

func failOn(sql string) error {
	if strings.Contains(sql, "FAIL") {
		return execError("statement failed")
	}

	return nil
}
