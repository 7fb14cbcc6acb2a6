package postgres

import (
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// CreateIfNotExists turns the history table's CREATE TABLE into CREATE TABLE
// IF NOT EXISTS. The schema statement is already conditional.
func (*Dialect) CreateIfNotExists(_ schema.QualifiedName, createScript, _ string) string {
	return strings.Replace(createScript, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
}

// BeginIf opens an anonymous code block whose body runs only if query
// returns (or, with exists false, does not return) a row.
func (*Dialect) BeginIf(exists bool, query, eol string) (string, error) {
	not := "NOT "
	if exists {
		not = ""
	}

	return "DO $EF$" + eol +
		"BEGIN" + eol +
		"    IF " + not + "EXISTS(" + query + ") THEN", nil
}

// EndIf closes the IF and the DO block opened by BeginIf.
func (*Dialect) EndIf(eol string) (string, error) {
	return "    END IF;" + eol + "END $EF$;" + eol, nil
}

// ExistsQuery counts tables named like the history table.
func (d *Dialect) ExistsQuery(table schema.QualifiedName) string {
	schemaExpr := "current_schema()"
	if table.Schema != "" {
		schemaExpr = d.StringLiteral(table.Schema)
	}

	return "SELECT COUNT(*) FROM pg_catalog.pg_tables WHERE schemaname = " + schemaExpr +
		" AND tablename = " + d.StringLiteral(table.Name) + ";"
}
