package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// DefaultPostgresSchema is read when no schema is named. Its tables come back
// with an empty Schema.
const DefaultPostgresSchema = "public"

// PgxQuerier is satisfied by *pgxpool.Pool, *pgx.Conn, and pgx.Tx.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres reads the ordinary and partitioned tables of one PostgreSQL schema
// from the system catalogs. Sequences are not read.
func Postgres(ctx context.Context, q PgxQuerier, schemaName string, opts ...Option) (*schema.Snapshot, error) {
	o := newOptions(opts)

	if schemaName == "" {
		schemaName = DefaultPostgresSchema
	}

	modelSchema := schemaName
	if schemaName == DefaultPostgresSchema {
		modelSchema = ""
	}

	rows, err := q.Query(ctx, `
		SELECT c.relname::text, coalesce(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN ('r', 'p') AND NOT c.relispartition
		ORDER BY c.relname`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	type tableRow struct {
		Name    string
		Comment string
	}

	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[tableRow])
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	snap := &schema.Snapshot{}

	for _, tr := range list {
		if o.skip(tr.Name) {
			continue
		}

		t := schema.Table{Schema: modelSchema, Name: tr.Name, Comment: tr.Comment}

		for _, step := range []func(context.Context, PgxQuerier, string, *schema.Table) error{
			pgColumns, pgKeys, pgForeignKeys, pgChecks, pgIndexes,
		} {
			if err := step(ctx, q, schemaName, &t); err != nil {
				return nil, fmt.Errorf("introspecting table %s: %w", tr.Name, err)
			}
		}

		snap.Tables = append(snap.Tables, t)
	}

	sortTables(snap.Tables)

	return snap, nil
}

func pgColumns(ctx context.Context, q PgxQuerier, schemaName string, t *schema.Table) error {
	rows, err := q.Query(ctx, `
		SELECT a.attname::text,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			a.attidentity::text,
			a.attgenerated::text,
			coalesce(col_description(a.attrelid, a.attnum), '')
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`, schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("reading columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c                   schema.Column
			expr                *string
			identity, generated string
		)

		if err := rows.Scan(&c.Name, &c.StoreType, &c.Nullable, &expr, &identity, &generated, &c.Comment); err != nil {
			return fmt.Errorf("scanning column: %w", err)
		}

		switch {
		case generated != "":
			c.ComputedSQL = deref(expr)
			c.Stored = true
		case identity != "":
			c.Identity = true
		case expr != nil && strings.HasPrefix(*expr, "nextval("):
			c.Identity = true
		default:
			c.DefaultSQL = deref(expr)
		}

		t.Columns = append(t.Columns, c)
	}

	return rows.Err()
}

func pgKeys(ctx context.Context, q PgxQuerier, schemaName string, t *schema.Table) error {
	rows, err := q.Query(ctx, `
		SELECT con.conname::text, con.contype::text, a.attname::text
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		WHERE con.contype IN ('p', 'u') AND n.nspname = $1 AND c.relname = $2
		ORDER BY con.conname, k.ord`, schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("reading keys: %w", err)
	}
	defer rows.Close()

	keys := newKeyAccumulator()
	primary := ""

	for rows.Next() {
		var name, kind, column string
		if err := rows.Scan(&name, &kind, &column); err != nil {
			return fmt.Errorf("scanning key: %w", err)
		}

		if kind == "p" {
			primary = name
		}

		keys.add(name, column)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading keys: %w", err)
	}

	for _, name := range keys.order {
		k := schema.Key{Name: name, Columns: keys.cols[name]}
		if name == primary {
			t.PrimaryKey = &k
			continue
		}

		t.UniqueConstraints = append(t.UniqueConstraints, k)
	}

	return nil
}

func pgForeignKeys(ctx context.Context, q PgxQuerier, schemaName string, t *schema.Table) error {
	rows, err := q.Query(ctx, `
		SELECT con.conname::text, a.attname::text, rn.nspname::text, rc.relname::text, ra.attname::text,
			con.confdeltype::text, con.confupdtype::text
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_class rc ON rc.oid = con.confrelid
		JOIN pg_namespace rn ON rn.oid = rc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refnum
		WHERE con.contype = 'f' AND n.nspname = $1 AND c.relname = $2
		ORDER BY con.conname, k.ord`, schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("reading foreign keys: %w", err)
	}
	defer rows.Close()

	byName := map[string]int{}

	for rows.Next() {
		var name, column, principalSchema, principalTable, principalColumn, onDelete, onUpdate string
		if err := rows.Scan(&name, &column, &principalSchema, &principalTable, &principalColumn, &onDelete, &onUpdate); err != nil {
			return fmt.Errorf("scanning foreign key: %w", err)
		}

		i, ok := byName[name]
		if !ok {
			if principalSchema == DefaultPostgresSchema {
				principalSchema = ""
			}

			i = len(t.ForeignKeys)
			byName[name] = i
			t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
				Name:            name,
				PrincipalSchema: principalSchema,
				PrincipalTable:  principalTable,
				OnDelete:        referentialAction(onDelete),
				OnUpdate:        referentialAction(onUpdate),
			})
		}

		fk := &t.ForeignKeys[i]
		fk.Columns = append(fk.Columns, column)
		fk.PrincipalColumns = append(fk.PrincipalColumns, principalColumn)
	}

	return rows.Err()
}

func pgChecks(ctx context.Context, q PgxQuerier, schemaName string, t *schema.Table) error {
	rows, err := q.Query(ctx, `
		SELECT con.conname::text, pg_get_expr(con.conbin, con.conrelid)
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE con.contype = 'c' AND n.nspname = $1 AND c.relname = $2
		ORDER BY con.conname`, schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("reading check constraints: %w", err)
	}

	checks, err := pgx.CollectRows(rows, pgx.RowToStructByPos[schema.CheckConstraint])
	if err != nil {
		return fmt.Errorf("reading check constraints: %w", err)
	}

	t.CheckConstraints = checks

	return nil
}

// pgIndexes reads the indexes that do not back a constraint.
func pgIndexes(ctx context.Context, q PgxQuerier, schemaName string, t *schema.Table) error {
	rows, err := q.Query(ctx, `
		SELECT i.relname::text,
			ix.indisunique,
			ARRAY(
				SELECT a.attname::text
				FROM unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			),
			coalesce(pg_get_expr(ix.indpred, ix.indrelid), '')
		FROM pg_index ix
		JOIN pg_class c ON c.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
			AND NOT EXISTS (SELECT 1 FROM pg_constraint con WHERE con.conindid = ix.indexrelid AND con.contype IN ('p', 'u', 'x'))
		ORDER BY i.relname`, schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("reading indexes: %w", err)
	}

	indexes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (schema.Index, error) {
		var ix schema.Index
		err := row.Scan(&ix.Name, &ix.Unique, &ix.Columns, &ix.Filter)

		return ix, err
	})
	if err != nil {
		return fmt.Errorf("reading indexes: %w", err)
	}

	t.Indexes = indexes

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
