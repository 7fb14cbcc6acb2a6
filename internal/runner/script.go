package runner

import (
	"fmt"

	"github.com/aqasim81/schema-migrator/internal/history"
	"github.com/aqasim81/schema-migrator/internal/migration"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// ScriptOptions selects the migrations a script covers.
type ScriptOptions struct {
	// From is the last migration already applied; "" or "0" means none.
	From string
	// To is the last migration the script leaves applied; "" means the newest.
	// A To before From produces a script that reverts.
	To string
	// Idempotent guards each migration's commands with a history lookup so
	// the script can run against a database in any state.
	Idempotent bool
}

// Script renders the SQL that moves a database from opts.From to opts.To. It
// needs no connection.
func (r *Runner) Script(ms []migration.Migration, opts ScriptOptions) (string, error) {
	sorted := migration.Sort(ms)

	fromIdx, err := position(sorted, opts.From, -1)
	if err != nil {
		return "", err
	}

	toIdx, err := position(sorted, opts.To, len(sorted)-1)
	if err != nil {
		return "", err
	}

	steps, err := migration.Plan(r.differ, sorted)
	if err != nil {
		return "", err
	}

	var cmds []sqlgen.Command

	if toIdx >= fromIdx {
		cmds = append(cmds, sqlgen.Command{SQL: r.hist.GetCreateIfNotExistsScript()})

		for i := fromIdx + 1; i <= toIdx; i++ {
			s := &steps[i]
			row := history.Row{MigrationID: s.Migration.ID, ProductVersion: r.productVersion}

			block, err := r.scriptStep(s.Migration.ID, s.Up, r.hist.GetInsertScript(row), opts.Idempotent, false)
			if err != nil {
				return "", err
			}

			cmds = append(cmds, block...)
		}
	} else {
		for i := fromIdx; i > toIdx; i-- {
			s := &steps[i]

			block, err := r.scriptStep(s.Migration.ID, s.Down, r.hist.GetDeleteScript(s.Migration.ID), opts.Idempotent, true)
			if err != nil {
				return "", err
			}

			cmds = append(cmds, block...)
		}
	}

	return r.gen.Script(cmds), nil
}

// scriptStep renders one migration. In an idempotent script every command runs
// inside a history lookup, except commands that must run outside a transaction:
// a conditional block would wrap them in one, so they rely on their own
// existence checks instead.
func (r *Runner) scriptStep(id string, ops []operations.Operation, trailer string, idempotent, exists bool) ([]sqlgen.Command, error) {
	if !idempotent {
		cmds, err := r.gen.Generate(ops)
		if err != nil {
			return nil, fmt.Errorf("generating migration %s: %w", id, err)
		}

		return append(cmds, sqlgen.Command{SQL: trailer}), nil
	}

	begin, err := r.beginIf(id, exists)
	if err != nil {
		return nil, fmt.Errorf("guarding migration %s: %w", id, err)
	}

	end, err := r.hist.GetEndIfScript()
	if err != nil {
		return nil, fmt.Errorf("guarding migration %s: %w", id, err)
	}

	guarded := sqlgen.New(r.gen.Dialect(), sqlgen.WithIdempotent(true), sqlgen.WithEOL(r.gen.EOL()))

	var out []sqlgen.Command

	for _, op := range ops {
		cmds, err := r.gen.Generate([]operations.Operation{op})
		if err != nil {
			return nil, fmt.Errorf("generating migration %s: %w", id, err)
		}

		if suppresses(cmds) {
			if cmds, err = guarded.Generate([]operations.Operation{op}); err != nil {
				return nil, fmt.Errorf("generating migration %s: %w", id, err)
			}
		}

		for _, c := range cmds {
			if !c.SuppressTransaction {
				c.SQL = r.wrap(begin, end, c.SQL)
			}

			out = append(out, c)
		}
	}

	return append(out, sqlgen.Command{SQL: r.wrap(begin, end, trailer)}), nil
}

func suppresses(cmds []sqlgen.Command) bool {
	for _, c := range cmds {
		if c.SuppressTransaction {
			return true
		}
	}

	return false
}

func (r *Runner) wrap(begin, end, sql string) string {
	b := sqlgen.NewBuilder(r.gen.EOL())
	b.AppendLines(begin)
	b.IncrementIndent()
	b.AppendLines(sql)
	b.DecrementIndent()
	b.AppendLines(end)
	b.EndCommand(false)

	return b.Commands()[0].SQL
}

func (r *Runner) beginIf(id string, exists bool) (string, error) {
	if exists {
		return r.hist.GetBeginIfExistsScript(id)
	}

	return r.hist.GetBeginIfNotExistsScript(id)
}

// position returns the index of id in sorted, def for "", and -1 for "0".
func position(sorted []migration.Migration, id string, def int) (int, error) {
	switch id {
	case "":
		return def, nil
	case InitialTarget:
		return -1, nil
	}

	for i := range sorted {
		if sorted[i].ID == id {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownMigration, id)
}
