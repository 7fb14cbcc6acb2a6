package sqlserver

import (
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// CreateIfNotExists wraps the history table's create script in an OBJECT_ID
// check. The schema guard stays inside the block.
func (d *Dialect) CreateIfNotExists(table schema.QualifiedName, createScript, eol string) string {
	b := sqlgen.NewBuilder(eol)

	b.Append("IF OBJECT_ID(").Append(d.StringLiteral(table.String())).AppendLine(") IS NULL")
	b.AppendLine("BEGIN")
	b.IncrementIndent()
	b.AppendLines(createScript)
	b.DecrementIndent()
	b.AppendLine("END;")

	return b.String()
}

// BeginIf opens a block that runs only if query returns (or, with exists
// false, does not return) a row.
func (*Dialect) BeginIf(exists bool, query, eol string) (string, error) {
	not := "NOT "
	if exists {
		not = ""
	}

	return "IF " + not + "EXISTS(" + query + ")" + eol + "BEGIN", nil
}

// EndIf closes the BEGIN block opened by BeginIf.
func (*Dialect) EndIf(eol string) (string, error) {
	return "END;" + eol, nil
}

// ExistsQuery counts tables named like the history table.
func (d *Dialect) ExistsQuery(table schema.QualifiedName) string {
	return "SELECT COUNT(*) FROM [sys].[tables] WHERE [object_id] = OBJECT_ID(" +
		d.StringLiteral(d.QualifyName(table.Schema, table.Name)) + ");"
}
