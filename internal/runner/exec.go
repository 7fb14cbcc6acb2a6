package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/database"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// execute runs cmds and then trailer. Batchable commands are sent together;
// commands marked Alone get their own round trip. A command that suppresses
// the transaction commits the open one first and runs on the connection.
func (r *Runner) execute(ctx context.Context, cmds []sqlgen.Command, trailer string) error {
	var (
		tx    database.Tx
		batch strings.Builder
	)

	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}

		sql := batch.String()
		batch.Reset()

		r.logger.Debug("executing batch", "sql", sql)

		return tx.Exec(ctx, sql)
	}

	begin := func() error {
		if tx != nil {
			return nil
		}

		var err error

		tx, err = r.conn.Begin(ctx)

		return err
	}

	commit := func() error {
		if tx == nil {
			return nil
		}

		if err := flush(); err != nil {
			return err
		}

		err := tx.Commit(ctx)
		tx = nil

		return err
	}

	for _, c := range cmds {
		if c.SuppressTransaction {
			if err := commit(); err != nil {
				return err
			}

			r.logger.Debug("executing outside transaction", "sql", c.SQL)

			if err := r.conn.Exec(ctx, c.SQL); err != nil {
				return fmt.Errorf("%s: %w", describe(c), err)
			}

			continue
		}

		if err := begin(); err != nil {
			return err
		}

		if c.Boundary == sqlgen.BoundaryAlone {
			if err := flush(); err != nil {
				return err
			}

			r.logger.Debug("executing command", "sql", c.SQL)

			if err := tx.Exec(ctx, c.SQL); err != nil {
				return fmt.Errorf("%s: %w", describe(c), err)
			}

			continue
		}

		batch.WriteString(c.SQL)
	}

	if err := begin(); err != nil {
		return err
	}

	batch.WriteString(trailer)

	return commit()
}

func describe(c sqlgen.Command) string {
	if c.Operation == nil {
		return "command"
	}

	return c.Operation.Kind().String()
}
