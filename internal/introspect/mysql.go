package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// MySQL reads the base tables of the connection's current database.
func MySQL(ctx context.Context, db SQLQuerier, opts ...Option) (*schema.Snapshot, error) {
	o := newOptions(opts)

	rows, err := db.QueryContext(ctx, `
		SELECT table_name, table_comment
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	var tables []schema.Table

	for rows.Next() {
		var t schema.Table
		if err := rows.Scan(&t.Name, &t.Comment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table name: %w", err)
		}

		if !o.skip(t.Name) {
			tables = append(tables, t)
		}
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	for i := range tables {
		t := &tables[i]

		for _, step := range []func(context.Context, SQLQuerier, *schema.Table) error{
			mysqlColumns, mysqlForeignKeys, mysqlKeys, mysqlChecks,
		} {
			if err := step(ctx, db, t); err != nil {
				return nil, fmt.Errorf("introspecting table %s: %w", t.Name, err)
			}
		}
	}

	sortTables(tables)

	return &schema.Snapshot{Tables: tables}, nil
}

func mysqlColumns(ctx context.Context, db SQLQuerier, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable, column_default, extra,
			column_comment, generation_expression
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, t.Name)
	if err != nil {
		return fmt.Errorf("reading columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c                  schema.Column
			nullable, extra    string
			dflt, generatedSQL sql.NullString
		)

		if err := rows.Scan(&c.Name, &c.StoreType, &nullable, &dflt, &extra, &c.Comment, &generatedSQL); err != nil {
			return fmt.Errorf("scanning column: %w", err)
		}

		c.Nullable = nullable == "YES"
		extra = strings.ToUpper(extra)

		switch {
		case generatedSQL.String != "":
			c.ComputedSQL = generatedSQL.String
			c.Stored = strings.Contains(extra, "STORED GENERATED")
		case strings.Contains(extra, "AUTO_INCREMENT"):
			c.Identity = true
		case strings.Contains(extra, "DEFAULT_GENERATED"):
			c.DefaultSQL = dflt.String
		case dflt.Valid:
			v := schema.StringValue(dflt.String)
			c.DefaultValue = &v
		}

		t.Columns = append(t.Columns, c)
	}

	return rows.Err()
}

// mysqlKeys reads the primary key, unique constraints, and indexes. MySQL
// backs every foreign key with an index of the same name; those are skipped,
// so mysqlForeignKeys must run first.
func mysqlKeys(ctx context.Context, db SQLQuerier, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT s.index_name, s.non_unique, s.column_name,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				WHERE tc.table_schema = s.table_schema AND tc.table_name = s.table_name
					AND tc.constraint_name = s.index_name AND tc.constraint_type = 'UNIQUE'
			)
		FROM information_schema.statistics s
		WHERE s.table_schema = DATABASE() AND s.table_name = ? AND s.column_name IS NOT NULL
		ORDER BY s.index_name, s.seq_in_index`, t.Name)
	if err != nil {
		return fmt.Errorf("reading indexes: %w", err)
	}
	defer rows.Close()

	fkNames := make(map[string]bool, len(t.ForeignKeys))
	for i := range t.ForeignKeys {
		fkNames[t.ForeignKeys[i].Name] = true
	}

	keys := newKeyAccumulator()
	nonUnique := map[string]bool{}
	constraint := map[string]bool{}

	for rows.Next() {
		var (
			name, column   string
			nonUniq, isKey bool
		)

		if err := rows.Scan(&name, &nonUniq, &column, &isKey); err != nil {
			return fmt.Errorf("scanning index: %w", err)
		}

		keys.add(name, column)
		nonUnique[name] = nonUniq
		constraint[name] = isKey
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading indexes: %w", err)
	}

	for _, name := range keys.order {
		cols := keys.cols[name]

		switch {
		case name == "PRIMARY":
			t.PrimaryKey = &schema.Key{Columns: cols}
		case fkNames[name]:
			// backs a foreign key
		case constraint[name]:
			t.UniqueConstraints = append(t.UniqueConstraints, schema.Key{Name: name, Columns: cols})
		default:
			t.Indexes = append(t.Indexes, schema.Index{Name: name, Columns: cols, Unique: !nonUnique[name]})
		}
	}

	return nil
}

func mysqlForeignKeys(ctx context.Context, db SQLQuerier, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT k.constraint_name, k.column_name, k.referenced_table_name, k.referenced_column_name,
			r.update_rule, r.delete_rule
		FROM information_schema.key_column_usage k
		JOIN information_schema.referential_constraints r
			ON r.constraint_schema = k.constraint_schema AND r.constraint_name = k.constraint_name
		WHERE k.table_schema = DATABASE() AND k.table_name = ? AND k.referenced_table_name IS NOT NULL
		ORDER BY k.constraint_name, k.ordinal_position`, t.Name)
	if err != nil {
		return fmt.Errorf("reading foreign keys: %w", err)
	}
	defer rows.Close()

	byName := map[string]int{}

	for rows.Next() {
		var name, column, principal, principalColumn, onUpdate, onDelete string
		if err := rows.Scan(&name, &column, &principal, &principalColumn, &onUpdate, &onDelete); err != nil {
			return fmt.Errorf("scanning foreign key: %w", err)
		}

		i, ok := byName[name]
		if !ok {
			i = len(t.ForeignKeys)
			byName[name] = i
			t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
				Name:           name,
				PrincipalTable: principal,
				OnDelete:       referentialAction(onDelete),
				OnUpdate:       referentialAction(onUpdate),
			})
		}

		fk := &t.ForeignKeys[i]
		fk.Columns = append(fk.Columns, column)
		fk.PrincipalColumns = append(fk.PrincipalColumns, principalColumn)
	}

	return rows.Err()
}

func mysqlChecks(ctx context.Context, db SQLQuerier, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT cc.constraint_name, cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
			ON cc.constraint_schema = tc.constraint_schema AND cc.constraint_name = tc.constraint_name
		WHERE tc.table_schema = DATABASE() AND tc.table_name = ? AND tc.constraint_type = 'CHECK'
		ORDER BY cc.constraint_name`, t.Name)
	if err != nil {
		return fmt.Errorf("reading check constraints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc schema.CheckConstraint
		if err := rows.Scan(&cc.Name, &cc.SQL); err != nil {
			return fmt.Errorf("scanning check constraint: %w", err)
		}

		t.CheckConstraints = append(t.CheckConstraints, cc)
	}

	return rows.Err()
}
