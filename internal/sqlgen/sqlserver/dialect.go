// Package sqlserver is the Microsoft SQL Server dialect.
package sqlserver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// Name identifies the dialect in configuration and errors.
const Name = "sqlserver"

// Type-mapping limits.
const (
	maxUnicodeLength = 4000
	maxAnsiLength    = 8000
	maxBinaryLength  = 8000
	maxIdentifier    = 128
)

// Annotation keys understood by the dialect.
const (
	AnnotationClustered = "SqlServer:Clustered"
)

//nolint:gochecknoglobals // fixed literal layouts
var timeLayouts = sqlgen.TimeLayouts{
	Date:           "2006-01-02",
	TimeOfDay:      "15:04:05.0000000",
	DateTime:       "2006-01-02T15:04:05.0000000",
	DateTimeOffset: "2006-01-02T15:04:05.0000000-07:00",
}

// Dialect renders SQL Server T-SQL.
type Dialect struct{}

// New returns the SQL Server dialect.
func New() *Dialect {
	return &Dialect{}
}

// Name returns "sqlserver".
func (*Dialect) Name() string { return Name }

// Capabilities reports schemas, sequences, and transactional DDL; every
// command runs in its own batch.
func (*Dialect) Capabilities() sqlgen.Capabilities {
	return sqlgen.Capabilities{
		Schemas:             true,
		SchemaTransfer:      true,
		TransactionalDDL:    true,
		AlterColumn:         true,
		DropColumn:          true,
		AlterConstraints:    true,
		Sequences:           true,
		BatchStatements:     false,
		IndexScopedToTable:  true,
		FilteredIndexes:     true,
		MaxIdentifierLength: maxIdentifier,
	}
}

// DelimitIdentifier brackets name, doubling closing brackets.
func (*Dialect) DelimitIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QualifyName joins schema and name as [schema].[name].
func (d *Dialect) QualifyName(schemaName, name string) string {
	if schemaName == "" {
		return d.DelimitIdentifier(name)
	}

	return d.DelimitIdentifier(schemaName) + "." + d.DelimitIdentifier(name)
}

// StringLiteral renders a unicode string literal.
func (*Dialect) StringLiteral(s string) string {
	return sqlgen.QuoteString(s, "N")
}

// Literal renders bit casts for booleans, 0x hex for binary, and N-prefixed
// strings unless the column is ANSI.
func (d *Dialect) Literal(v schema.Value, t schema.ColumnType) (string, error) {
	switch v.Kind {
	case schema.NullKind:
		return "NULL", nil
	case schema.StringKind:
		if t.Ansi || t.Kind == schema.GUIDType {
			return sqlgen.QuoteString(v.Str, ""), nil
		}

		return d.StringLiteral(v.Str), nil
	case schema.IntKind:
		return strconv.FormatInt(v.Int, 10), nil
	case schema.FloatKind:
		return sqlgen.FormatFloat(v.Float)
	case schema.BoolKind:
		if v.Bool {
			return "CAST(1 AS bit)", nil
		}

		return "CAST(0 AS bit)", nil
	case schema.BytesKind:
		return "0x" + sqlgen.UpperHex(v.Bytes), nil
	case schema.TimeKind:
		return sqlgen.QuoteString(timeLayouts.FormatTime(v.Time, t.Kind), ""), nil
	default:
		return "", fmt.Errorf("%w: value kind %s", sqlgen.ErrInvalidLiteral, v.Kind)
	}
}

// StoreType maps logical types to SQL Server column types.
//nolint:cyclop // one case per kind
func (*Dialect) StoreType(t schema.ColumnType) (string, error) {
	switch t.Kind {
	case schema.StringType:
		return stringType(t), nil
	case schema.Int16Type:
		return "smallint", nil
	case schema.Int32Type:
		return "int", nil
	case schema.Int64Type:
		return "bigint", nil
	case schema.BoolType:
		return "bit", nil
	case schema.DecimalType:
		if t.Precision > 0 {
			return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale), nil
		}

		return "decimal(18,2)", nil
	case schema.Float32Type:
		return "real", nil
	case schema.Float64Type:
		return "float", nil
	case schema.DateType:
		return "date", nil
	case schema.TimeOfDayType:
		return "time", nil
	case schema.DateTimeType:
		return "datetime2", nil
	case schema.DateTimeOffsetType:
		return "datetimeoffset", nil
	case schema.GUIDType:
		return "uniqueidentifier", nil
	case schema.BinaryType:
		if t.MaxLength > 0 && t.MaxLength <= maxBinaryLength {
			return fmt.Sprintf("varbinary(%d)", t.MaxLength), nil
		}

		return "varbinary(max)", nil
	case schema.JSONType:
		return "nvarchar(max)", nil
	case schema.UnknownType:
	}

	return "", sqlgen.UnmappedType(Name, t)
}

func stringType(t schema.ColumnType) string {
	prefix, limit := "n", maxUnicodeLength
	if t.Ansi {
		prefix, limit = "", maxAnsiLength
	}

	if t.FixedLength {
		n := max(t.MaxLength, 1)

		return fmt.Sprintf("%schar(%d)", prefix, n)
	}

	if t.MaxLength > 0 && t.MaxLength <= limit {
		return fmt.Sprintf("%svarchar(%d)", prefix, t.MaxLength)
	}

	return prefix + "varchar(max)"
}

// ColumnDefinition writes "[Name] type [COLLATE c] [NOT] NULL [IDENTITY] [DEFAULT x]",
// or "[Name] AS (expr) [PERSISTED]" for computed columns.
func (d *Dialect) ColumnDefinition(b *sqlgen.Builder, _ sqlgen.ColumnContext, c *schema.Column) error {
	b.Append(d.DelimitIdentifier(c.Name))

	if c.ComputedSQL != "" {
		b.Append(" AS (").Append(c.ComputedSQL).Append(")")

		if c.Stored {
			b.Append(" PERSISTED")
		}

		return nil
	}

	storeType, err := sqlgen.ResolveStoreType(d, c)
	if err != nil {
		return err
	}

	def, err := sqlgen.DefaultLiteral(d, c)
	if err != nil {
		return err
	}

	b.Append(" ").Append(storeType)

	if c.Collation != "" {
		b.Append(" COLLATE ").Append(c.Collation)
	}

	if c.Nullable {
		b.Append(" NULL")
	} else {
		b.Append(" NOT NULL")
	}

	if c.Identity {
		b.Append(" IDENTITY")
	}

	if def != "" {
		b.Append(" DEFAULT ").Append(def)
	}

	return nil
}

// EnsureSchema writes the one-line conditional CREATE SCHEMA.
func (d *Dialect) EnsureSchema(b *sqlgen.Builder, name string) {
	b.Append("IF SCHEMA_ID(").Append(d.StringLiteral(name)).Append(") IS NULL EXEC(").
		Append(d.StringLiteral("CREATE SCHEMA " + d.DelimitIdentifier(name) + ";")).Append(")")
}

// StatementTerminator returns ";".
func (*Dialect) StatementTerminator() string { return ";" }

// BatchTerminator returns "GO".
func (*Dialect) BatchTerminator() string { return "GO" }
