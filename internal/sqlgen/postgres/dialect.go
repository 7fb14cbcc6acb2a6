// Package postgres is the PostgreSQL dialect.
package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/parser"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// Name identifies the dialect in configuration and errors.
const Name = "postgres"

const maxIdentifier = 63

// AnnotationConcurrently marks an index to be built with CREATE INDEX CONCURRENTLY.
const AnnotationConcurrently = "Postgres:Concurrently"

//nolint:gochecknoglobals // fixed literal layouts
var timeLayouts = sqlgen.TimeLayouts{
	Date:           "2006-01-02",
	TimeOfDay:      "15:04:05.999999",
	DateTime:       "2006-01-02 15:04:05.999999",
	DateTimeOffset: "2006-01-02 15:04:05.999999-07:00",
}

//nolint:gochecknoglobals // lookup table
var timeKeywords = map[schema.TypeKind]string{
	schema.DateType:           "DATE",
	schema.TimeOfDayType:      "TIME",
	schema.DateTimeType:       "TIMESTAMP",
	schema.DateTimeOffsetType: "TIMESTAMPTZ",
}

// Dialect renders PostgreSQL.
type Dialect struct{}

// New returns the PostgreSQL dialect.
func New() *Dialect {
	return &Dialect{}
}

// Name returns "postgres".
func (*Dialect) Name() string { return Name }

// Capabilities reports schemas, sequences, and transactional DDL.
func (*Dialect) Capabilities() sqlgen.Capabilities {
	return sqlgen.Capabilities{
		Schemas:             true,
		SchemaTransfer:      true,
		TransactionalDDL:    true,
		AlterColumn:         true,
		DropColumn:          true,
		AlterConstraints:    true,
		Sequences:           true,
		BatchStatements:     true,
		IndexScopedToTable:  false,
		FilteredIndexes:     true,
		MaxIdentifierLength: maxIdentifier,
	}
}

// DelimitIdentifier double-quotes name, doubling embedded quotes.
func (*Dialect) DelimitIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifyName joins schema and name as "schema"."name".
func (d *Dialect) QualifyName(schemaName, name string) string {
	if schemaName == "" {
		return d.DelimitIdentifier(name)
	}

	return d.DelimitIdentifier(schemaName) + "." + d.DelimitIdentifier(name)
}

// StringLiteral quotes s with doubled single quotes.
func (*Dialect) StringLiteral(s string) string {
	return sqlgen.QuoteString(s, "")
}

// Literal renders typed date and time literals and bytea hex strings.
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
			return "TRUE", nil
		}

		return "FALSE", nil
	case schema.BytesKind:
		return `'\x` + strings.ToLower(sqlgen.UpperHex(v.Bytes)) + "'::bytea", nil
	case schema.TimeKind:
		kw, ok := timeKeywords[t.Kind]
		if !ok {
			kw = "TIMESTAMP"
		}

		return kw + " " + d.StringLiteral(timeLayouts.FormatTime(v.Time, t.Kind)), nil
	default:
		return "", fmt.Errorf("%w: value kind %s", sqlgen.ErrInvalidLiteral, v.Kind)
	}
}

// StoreType maps logical types to PostgreSQL column types.
//nolint:cyclop // one case per kind
func (*Dialect) StoreType(t schema.ColumnType) (string, error) {
	switch t.Kind {
	case schema.StringType:
		switch {
		case t.FixedLength:
			return fmt.Sprintf("character(%d)", max(t.MaxLength, 1)), nil
		case t.MaxLength > 0:
			return fmt.Sprintf("character varying(%d)", t.MaxLength), nil
		default:
			return "text", nil
		}
	case schema.Int16Type:
		return "smallint", nil
	case schema.Int32Type:
		return "integer", nil
	case schema.Int64Type:
		return "bigint", nil
	case schema.BoolType:
		return "boolean", nil
	case schema.DecimalType:
		if t.Precision > 0 {
			return fmt.Sprintf("numeric(%d,%d)", t.Precision, t.Scale), nil
		}

		return "numeric", nil
	case schema.Float32Type:
		return "real", nil
	case schema.Float64Type:
		return "double precision", nil
	case schema.DateType:
		return "date", nil
	case schema.TimeOfDayType:
		return "time without time zone", nil
	case schema.DateTimeType:
		return "timestamp without time zone", nil
	case schema.DateTimeOffsetType:
		return "timestamp with time zone", nil
	case schema.GUIDType:
		return "uuid", nil
	case schema.BinaryType:
		return "bytea", nil
	case schema.JSONType:
		return "jsonb", nil
	case schema.UnknownType:
	}

	return "", sqlgen.UnmappedType(Name, t)
}

// ColumnDefinition writes `"Name" type [COLLATE c] [NOT NULL] [identity] [DEFAULT x]`.
// Computed columns must be stored.
func (d *Dialect) ColumnDefinition(b *sqlgen.Builder, _ sqlgen.ColumnContext, c *schema.Column) error {
	storeType, err := sqlgen.ResolveStoreType(d, c)
	if err != nil {
		return err
	}

	b.Append(d.DelimitIdentifier(c.Name)).Append(" ").Append(storeType)

	if c.ComputedSQL != "" {
		if !c.Stored {
			return fmt.Errorf("%w: column %s: computed columns must be stored", sqlgen.ErrUnsupportedOperation, c.Name)
		}

		b.Append(" GENERATED ALWAYS AS (").Append(c.ComputedSQL).Append(") STORED")

		return nil
	}

	def, err := sqlgen.DefaultLiteral(d, c)
	if err != nil {
		return err
	}

	if c.Collation != "" {
		b.Append(" COLLATE ").Append(d.DelimitIdentifier(c.Collation))
	}

	if !c.Nullable {
		b.Append(" NOT NULL")
	}

	if c.Identity {
		b.Append(" GENERATED BY DEFAULT AS IDENTITY")
	}

	if def != "" {
		b.Append(" DEFAULT ").Append(def)
	}

	return nil
}

// EnsureSchema writes CREATE SCHEMA IF NOT EXISTS.
func (d *Dialect) EnsureSchema(b *sqlgen.Builder, name string) {
	b.Append("CREATE SCHEMA IF NOT EXISTS ").Append(d.DelimitIdentifier(name))
}

// StatementTerminator returns ";".
func (*Dialect) StatementTerminator() string { return ";" }

// BatchTerminator returns ""; PostgreSQL scripts have no batches.
func (*Dialect) BatchTerminator() string { return "" }

// RequiresNoTransaction reports raw SQL PostgreSQL will not run inside a
// transaction block. SQL that does not parse is left to run transactionally.
func (*Dialect) RequiresNoTransaction(sql string) bool {
	ok, err := parser.RequiresNoTransaction(sql)

	return err == nil && ok
}
