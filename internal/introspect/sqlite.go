package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// SQLite reads every user table of a SQLite database. SQLite does not record
// constraint names, so primary keys, unique constraints, and foreign keys come
// back unnamed. Partial index filters are not read.
func SQLite(ctx context.Context, db SQLQuerier, opts ...Option) (*schema.Snapshot, error) {
	o := newOptions(opts)

	rows, err := db.QueryContext(ctx, `
		SELECT name, sql
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	type tableRow struct {
		name, ddl string
	}

	var list []tableRow

	for rows.Next() {
		var (
			name string
			ddl  sql.NullString
		)

		if err := rows.Scan(&name, &ddl); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table name: %w", err)
		}

		if !o.skip(name) {
			list = append(list, tableRow{name: name, ddl: ddl.String})
		}
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	snap := &schema.Snapshot{}

	for _, tr := range list {
		t, err := sqliteTable(ctx, db, tr.name, tr.ddl)
		if err != nil {
			return nil, fmt.Errorf("introspecting table %s: %w", tr.name, err)
		}

		snap.Tables = append(snap.Tables, *t)
	}

	sortTables(snap.Tables)

	return snap, nil
}

func sqliteTable(ctx context.Context, db SQLQuerier, name, ddl string) (*schema.Table, error) {
	t := &schema.Table{Name: name}

	pk, err := sqliteColumns(ctx, db, t)
	if err != nil {
		return nil, err
	}

	if len(pk) > 0 {
		t.PrimaryKey = &schema.Key{Columns: pk}

		if len(pk) == 1 && strings.Contains(strings.ToUpper(ddl), "AUTOINCREMENT") {
			if c, ok := t.Column(pk[0]); ok {
				c.Identity = true
			}
		}
	}

	if err := sqliteIndexes(ctx, db, t); err != nil {
		return nil, err
	}

	if err := sqliteForeignKeys(ctx, db, t); err != nil {
		return nil, err
	}

	return t, nil
}

// sqliteColumns fills t.Columns and returns the primary key columns in key order.
func sqliteColumns(ctx context.Context, db SQLQuerier, t *schema.Table) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, t.Name)
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	defer rows.Close()

	byPos := map[int]string{}

	for rows.Next() {
		var (
			name, colType string
			notNull, pk   int
			dflt          sql.NullString
		)

		if err := rows.Scan(&name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}

		t.Columns = append(t.Columns, schema.Column{
			Name:       name,
			StoreType:  colType,
			Nullable:   notNull == 0 && pk == 0,
			DefaultSQL: dflt.String,
		})

		if pk > 0 {
			byPos[pk] = name
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	pk := make([]string, 0, len(byPos))
	for i := 1; i <= len(byPos); i++ {
		pk = append(pk, byPos[i])
	}

	return pk, nil
}

type sqliteIndex struct {
	name    string
	unique  bool
	origin  string
	columns []string
}

func sqliteIndexes(ctx context.Context, db SQLQuerier, t *schema.Table) error {
	rows, err := db.QueryContext(ctx,
		`SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`, t.Name)
	if err != nil {
		return fmt.Errorf("reading indexes: %w", err)
	}

	var list []sqliteIndex

	for rows.Next() {
		var ix sqliteIndex

		if err := rows.Scan(&ix.name, &ix.unique, &ix.origin); err != nil {
			rows.Close()
			return fmt.Errorf("scanning index: %w", err)
		}

		list = append(list, ix)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading indexes: %w", err)
	}

	for i := range list {
		ix := &list[i]
		if ix.origin == "pk" {
			continue
		}

		cols, err := sqliteIndexColumns(ctx, db, ix.name)
		if err != nil {
			return err
		}

		switch ix.origin {
		case "u":
			t.UniqueConstraints = append(t.UniqueConstraints, schema.Key{Columns: cols})
		default:
			t.Indexes = append(t.Indexes, schema.Index{Name: ix.name, Columns: cols, Unique: ix.unique})
		}
	}

	return nil
}

func sqliteIndexColumns(ctx context.Context, db SQLQuerier, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, index)
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string

	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning index column: %w", err)
		}

		if name.Valid {
			cols = append(cols, name.String)
		}
	}

	return cols, rows.Err()
}

func sqliteForeignKeys(ctx context.Context, db SQLQuerier, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, "table", "from", "to", on_update, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`, t.Name)
	if err != nil {
		return fmt.Errorf("reading foreign keys: %w", err)
	}
	defer rows.Close()

	byID := map[int]int{}

	for rows.Next() {
		var (
			id                 int
			principal, from    string
			to                 sql.NullString
			onUpdate, onDelete string
		)

		if err := rows.Scan(&id, &principal, &from, &to, &onUpdate, &onDelete); err != nil {
			return fmt.Errorf("scanning foreign key: %w", err)
		}

		i, ok := byID[id]
		if !ok {
			i = len(t.ForeignKeys)
			byID[id] = i
			t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
				PrincipalTable: principal,
				OnDelete:       referentialAction(onDelete),
				OnUpdate:       referentialAction(onUpdate),
			})
		}

		fk := &t.ForeignKeys[i]
		fk.Columns = append(fk.Columns, from)
		fk.PrincipalColumns = append(fk.PrincipalColumns, to.String)
	}

	return rows.Err()
}
