// Package mysql is the MySQL dialect. Schemas are MySQL databases.
package mysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// Name identifies the dialect in configuration and errors.
const Name = "mysql"

const (
	maxIdentifier    = 64
	maxVarcharLength = 16383 // utf8mb4 row limit
	maxVarbinary     = 65535
)

//nolint:gochecknoglobals // fixed literal layouts
var timeLayouts = sqlgen.TimeLayouts{
	Date:           "2006-01-02",
	TimeOfDay:      "15:04:05.999999",
	DateTime:       "2006-01-02 15:04:05.999999",
	DateTimeOffset: "2006-01-02 15:04:05.999999",
}

// Dialect renders MySQL 8.
type Dialect struct{}

// New returns the MySQL dialect.
func New() *Dialect {
	return &Dialect{}
}

// Name returns "mysql".
func (*Dialect) Name() string { return Name }

// Capabilities reports schemas as databases and non-transactional DDL.
func (*Dialect) Capabilities() sqlgen.Capabilities {
	return sqlgen.Capabilities{
		Schemas:             true,
		SchemaTransfer:      true,
		TransactionalDDL:    false,
		AlterColumn:         true,
		DropColumn:          true,
		AlterConstraints:    true,
		BatchStatements:     true,
		IndexScopedToTable:  true,
		MaxIdentifierLength: maxIdentifier,
	}
}

// DelimitIdentifier backquotes name, doubling embedded backquotes.
func (*Dialect) DelimitIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QualifyName joins database and table as `db`.`name`.
func (d *Dialect) QualifyName(schemaName, name string) string {
	if schemaName == "" {
		return d.DelimitIdentifier(name)
	}

	return d.DelimitIdentifier(schemaName) + "." + d.DelimitIdentifier(name)
}

// StringLiteral quotes s, escaping backslashes as well as quotes.
func (*Dialect) StringLiteral(s string) string {
	return sqlgen.QuoteString(strings.ReplaceAll(s, `\`, `\\`), "")
}

// Literal renders booleans as TRUE and FALSE and binary values as 0x hex.
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
		return "0x" + sqlgen.UpperHex(v.Bytes), nil
	case schema.TimeKind:
		return d.StringLiteral(timeLayouts.FormatTime(v.Time, t.Kind)), nil
	default:
		return "", fmt.Errorf("%w: value kind %s", sqlgen.ErrInvalidLiteral, v.Kind)
	}
}

// StoreType maps logical types to MySQL column types.
//nolint:cyclop // one case per kind
func (*Dialect) StoreType(t schema.ColumnType) (string, error) {
	switch t.Kind {
	case schema.StringType:
		switch {
		case t.FixedLength:
			return fmt.Sprintf("char(%d)", max(t.MaxLength, 1)), nil
		case t.MaxLength > 0 && t.MaxLength <= maxVarcharLength:
			return fmt.Sprintf("varchar(%d)", t.MaxLength), nil
		default:
			return "longtext", nil
		}
	case schema.Int16Type:
		return "smallint", nil
	case schema.Int32Type:
		return "int", nil
	case schema.Int64Type:
		return "bigint", nil
	case schema.BoolType:
		return "tinyint(1)", nil
	case schema.DecimalType:
		if t.Precision > 0 {
			return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale), nil
		}

		return "decimal(65,30)", nil
	case schema.Float32Type:
		return "float", nil
	case schema.Float64Type:
		return "double", nil
	case schema.DateType:
		return "date", nil
	case schema.TimeOfDayType:
		return "time(6)", nil
	case schema.DateTimeType, schema.DateTimeOffsetType:
		return "datetime(6)", nil
	case schema.GUIDType:
		return "char(36)", nil
	case schema.BinaryType:
		if t.MaxLength > 0 && t.MaxLength <= maxVarbinary {
			return fmt.Sprintf("varbinary(%d)", t.MaxLength), nil
		}

		return "longblob", nil
	case schema.JSONType:
		return "json", nil
	case schema.UnknownType:
	}

	return "", sqlgen.UnmappedType(Name, t)
}

// ColumnDefinition writes "`Name` type [COLLATE c] [NOT] NULL [AUTO_INCREMENT]
// [DEFAULT x] [COMMENT 'c']". Comments travel with the definition.
func (d *Dialect) ColumnDefinition(b *sqlgen.Builder, _ sqlgen.ColumnContext, c *schema.Column) error {
	storeType, err := sqlgen.ResolveStoreType(d, c)
	if err != nil {
		return err
	}

	b.Append(d.DelimitIdentifier(c.Name)).Append(" ").Append(storeType)

	if c.Collation != "" {
		b.Append(" COLLATE ").Append(c.Collation)
	}

	if c.ComputedSQL != "" {
		b.Append(" AS (").Append(c.ComputedSQL).Append(")")

		if c.Stored {
			b.Append(" STORED")
		} else {
			b.Append(" VIRTUAL")
		}
	} else {
		def, err := sqlgen.DefaultLiteral(d, c)
		if err != nil {
			return err
		}

		if c.Nullable {
			b.Append(" NULL")
		} else {
			b.Append(" NOT NULL")
		}

		if c.Identity {
			b.Append(" AUTO_INCREMENT")
		}

		if def != "" {
			b.Append(" DEFAULT ").Append(def)
		}
	}

	if c.Comment != "" {
		b.Append(" COMMENT ").Append(d.StringLiteral(c.Comment))
	}

	return nil
}

// EnsureSchema writes CREATE SCHEMA IF NOT EXISTS.
func (d *Dialect) EnsureSchema(b *sqlgen.Builder, name string) {
	b.Append("CREATE SCHEMA IF NOT EXISTS ").Append(d.DelimitIdentifier(name))
}

// StatementTerminator returns ";".
func (*Dialect) StatementTerminator() string { return ";" }

// BatchTerminator returns ""; MySQL scripts have no batches.
func (*Dialect) BatchTerminator() string { return "" }
