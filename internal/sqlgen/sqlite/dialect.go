// Package sqlite is the SQLite dialect.
package sqlite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// Name identifies the dialect in configuration and errors.
const Name = "sqlite"

//nolint:gochecknoglobals // fixed literal layouts
var timeLayouts = sqlgen.TimeLayouts{
	Date:           "2006-01-02",
	TimeOfDay:      "15:04:05.999999999",
	DateTime:       "2006-01-02 15:04:05.999999999",
	DateTimeOffset: "2006-01-02 15:04:05.999999999-07:00",
}

// Dialect renders SQLite. SQLite has no schemas, sequences, or constraint
// changes after a table is created; column and constraint changes rebuild the
// table.
type Dialect struct{}

// New returns the SQLite dialect.
func New() *Dialect {
	return &Dialect{}
}

// Name returns "sqlite".
func (*Dialect) Name() string { return Name }

// Capabilities reports transactional DDL, DROP COLUMN, and partial indexes.
func (*Dialect) Capabilities() sqlgen.Capabilities {
	return sqlgen.Capabilities{
		TransactionalDDL: true,
		DropColumn:       true,
		BatchStatements:  true,
		FilteredIndexes:  true,
	}
}

// DelimitIdentifier wraps name in double quotes.
func (*Dialect) DelimitIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifyName ignores the schema; the generator rejects schema-qualified
// operations before they reach the dialect.
func (d *Dialect) QualifyName(_, name string) string {
	return d.DelimitIdentifier(name)
}

// StringLiteral quotes s with doubled single quotes.
func (*Dialect) StringLiteral(s string) string {
	return sqlgen.QuoteString(s, "")
}

// Literal renders booleans as 0 and 1 and binary values as X'..' blobs.
func (d *Dialect) Literal(v schema.Value, t schema.ColumnType) (string, error) {
	switch v.Kind {
	case schema.NullKind:
		return "NULL", nil
	case schema.StringKind:
		return d.StringLiteral(v.Str), nil
	case schema.IntKind:
		return strconv.FormatInt(v.Int, 10), nil
	case schema.FloatKind:
		return sqlgen.FormatFloat(v.Float)
	case schema.BoolKind:
		if v.Bool {
			return "1", nil
		}

		return "0", nil
	case schema.BytesKind:
		return "X'" + sqlgen.UpperHex(v.Bytes) + "'", nil
	case schema.TimeKind:
		return d.StringLiteral(timeLayouts.FormatTime(v.Time, t.Kind)), nil
	default:
		return "", fmt.Errorf("%w: value kind %s", sqlgen.ErrInvalidLiteral, v.Kind)
	}
}

// StoreType maps logical types to SQLite type affinities.
func (*Dialect) StoreType(t schema.ColumnType) (string, error) {
	switch t.Kind {
	case schema.Int16Type, schema.Int32Type, schema.Int64Type, schema.BoolType:
		return "INTEGER", nil
	case schema.Float32Type, schema.Float64Type:
		return "REAL", nil
	case schema.BinaryType:
		return "BLOB", nil
	case schema.StringType, schema.DecimalType, schema.DateType, schema.TimeOfDayType,
		schema.DateTimeType, schema.DateTimeOffsetType, schema.GUIDType, schema.JSONType:
		return "TEXT", nil
	case schema.UnknownType:
	}

	return "", sqlgen.UnmappedType(Name, t)
}

// ColumnDefinition writes `"Name" TYPE [NOT NULL] [CONSTRAINT pk PRIMARY KEY
// AUTOINCREMENT] [DEFAULT x] [COLLATE c]`.
func (d *Dialect) ColumnDefinition(b *sqlgen.Builder, ctx sqlgen.ColumnContext, c *schema.Column) error {
	storeType, err := sqlgen.ResolveStoreType(d, c)
	if err != nil {
		return err
	}

	b.Append(d.DelimitIdentifier(c.Name)).Append(" ").Append(storeType)

	if c.ComputedSQL != "" {
		b.Append(" AS (").Append(c.ComputedSQL).Append(")")

		if c.Stored {
			b.Append(" STORED")
		}

		return nil
	}

	def, err := sqlgen.DefaultLiteral(d, c)
	if err != nil {
		return err
	}

	if !c.Nullable {
		b.Append(" NOT NULL")
	}

	if pk := ctx.PrimaryKey; pk != nil && len(pk.Columns) == 1 && pk.Columns[0] == c.Name {
		b.Append(" CONSTRAINT ").Append(d.DelimitIdentifier(pk.Name)).Append(" PRIMARY KEY AUTOINCREMENT")
	}

	if def != "" {
		b.Append(" DEFAULT ").Append(def)
	}

	if c.Collation != "" {
		b.Append(" COLLATE ").Append(c.Collation)
	}

	return nil
}

// EnsureSchema writes nothing; SQLite has no schemas.
func (*Dialect) EnsureSchema(*sqlgen.Builder, string) {}

// StatementTerminator returns ";".
func (*Dialect) StatementTerminator() string { return ";" }

// BatchTerminator returns ""; SQLite scripts have no batches.
func (*Dialect) BatchTerminator() string { return "" }

// RenameTable writes ALTER TABLE ... RENAME TO.
func (d *Dialect) RenameTable(b *sqlgen.Builder, op operations.RenameTable) error {
	b.Append("ALTER TABLE ").Append(d.DelimitIdentifier(op.Table)).
		Append(" RENAME TO ").Append(d.DelimitIdentifier(op.NewName)).EndStatement(";")

	return nil
}

// InlinePrimaryKey reports a single integer identity key, which SQLite must
// declare on the column to get AUTOINCREMENT.
func (*Dialect) InlinePrimaryKey(t *schema.Table) bool {
	if t.PrimaryKey == nil || len(t.PrimaryKey.Columns) != 1 {
		return false
	}

	c, ok := t.Column(t.PrimaryKey.Columns[0])

	return ok && c.Identity && (c.Type.Kind.IsInteger() || strings.EqualFold(c.StoreType, "INTEGER"))
}

// GuardStyle guards tables and indexes inline. Columns cannot be guarded.
func (*Dialect) GuardStyle(t sqlgen.GuardTarget) sqlgen.GuardStyle {
	switch t.Kind {
	case sqlgen.GuardTable, sqlgen.GuardIndex:
		return sqlgen.GuardInline
	case sqlgen.GuardColumn, sqlgen.GuardSequence:
	}

	return sqlgen.GuardNone
}

// BeginGuard writes nothing; SQLite has no conditional blocks.
func (*Dialect) BeginGuard(*sqlgen.Builder, sqlgen.GuardTarget) {}

// EndGuard writes nothing.
func (*Dialect) EndGuard(*sqlgen.Builder) {}

// ForeignKeyChecks toggles PRAGMA foreign_keys around a table rebuild so that
// dropping the old table neither cascades nor fails. The pragma is a no-op
// inside a transaction.
func (*Dialect) ForeignKeyChecks(b *sqlgen.Builder, on bool) {
	v := "0"
	if on {
		v = "1"
	}

	b.Append("PRAGMA foreign_keys = ").Append(v).AppendLine(";")
}

// CreateIfNotExists turns the history table's CREATE TABLE into CREATE TABLE
// IF NOT EXISTS.
func (*Dialect) CreateIfNotExists(_ schema.QualifiedName, createScript, _ string) string {
	return strings.Replace(createScript, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
}

// ExistsQuery counts tables named like the history table.
func (d *Dialect) ExistsQuery(table schema.QualifiedName) string {
	return `SELECT COUNT(*) FROM "sqlite_master" WHERE "name" = ` + d.StringLiteral(table.Name) +
		` AND "type" = 'table';`
}
