package mysql

import (
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// procedureName is the temporary procedure hosting conditional script blocks.
const procedureName = "MigrationsScript"

// CreateIfNotExists turns the history table's CREATE TABLE into CREATE TABLE
// IF NOT EXISTS.
func (*Dialect) CreateIfNotExists(_ schema.QualifiedName, createScript, _ string) string {
	return strings.Replace(createScript, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
}

// BeginIf opens a temporary stored procedure whose body runs only if query
// returns (or, with exists false, does not return) a row. The script needs a
// client that understands DELIMITER.
func (*Dialect) BeginIf(exists bool, query, eol string) (string, error) {
	not := "NOT "
	if exists {
		not = ""
	}

	return "DROP PROCEDURE IF EXISTS " + procedureName + ";" + eol +
		"DELIMITER //" + eol +
		"CREATE PROCEDURE " + procedureName + "()" + eol +
		"BEGIN" + eol +
		"    IF " + not + "EXISTS(" + query + ") THEN", nil
}

// EndIf closes the procedure opened by BeginIf, then calls and drops it.
func (*Dialect) EndIf(eol string) (string, error) {
	return "    END IF;" + eol +
		"END //" + eol +
		"DELIMITER ;" + eol +
		"CALL " + procedureName + "();" + eol +
		"DROP PROCEDURE " + procedureName + ";" + eol, nil
}

// ExistsQuery counts tables named like the history table in its database.
func (d *Dialect) ExistsQuery(table schema.QualifiedName) string {
	schemaExpr := "DATABASE()"
	if table.Schema != "" {
		schemaExpr = d.StringLiteral(table.Schema)
	}

	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = " + schemaExpr +
		" AND table_name = " + d.StringLiteral(table.Name) + ";"
}
