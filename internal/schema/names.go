package schema

import (
	"strconv"
	"strings"
)

// QualifiedName identifies a schema object. An empty Schema is the default schema.
type QualifiedName struct {
	Schema string
	Name   string
}

// String renders "schema.name", or just the name for the default schema.
func (q QualifiedName) String() string {
	if q.Schema == "" {
		return q.Name
	}

	return q.Schema + "." + q.Name
}

// Less orders names by schema then name.
func (q QualifiedName) Less(o QualifiedName) bool {
	if q.Schema != o.Schema {
		return q.Schema < o.Schema
	}

	return q.Name < o.Name
}

// PrimaryKeyName returns the conventional primary key name for a table.
func PrimaryKeyName(schemaName, table string) string {
	if schemaName == "" {
		return "PK_" + table
	}

	return "PK_" + schemaName + "_" + table
}

// UniqueConstraintName returns the conventional alternate key name.
func UniqueConstraintName(table string, cols []string) string {
	return "AK_" + table + "_" + strings.Join(cols, "_")
}

// ForeignKeyName returns the conventional foreign key name.
func ForeignKeyName(table, principal string, cols []string) string {
	return "FK_" + table + "_" + principal + "_" + strings.Join(cols, "_")
}

// IndexName returns the conventional index name.
func IndexName(table string, cols []string) string {
	return "IX_" + table + "_" + strings.Join(cols, "_")
}

// CheckConstraintName returns the conventional name of the n-th (1-based) check.
func CheckConstraintName(table string, n int) string {
	return "CK_" + table + "_" + strconv.Itoa(n)
}

// assignDefaultNames fills in empty constraint and index names in place.
func assignDefaultNames(t *Table) {
	if t.PrimaryKey != nil && t.PrimaryKey.Name == "" {
		t.PrimaryKey.Name = PrimaryKeyName(t.Schema, t.Name)
	}

	for i := range t.UniqueConstraints {
		if t.UniqueConstraints[i].Name == "" {
			t.UniqueConstraints[i].Name = UniqueConstraintName(t.Name, t.UniqueConstraints[i].Columns)
		}
	}

	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		if fk.Name == "" {
			fk.Name = ForeignKeyName(t.Name, fk.PrincipalTable, fk.Columns)
		}
	}

	for i := range t.Indexes {
		if t.Indexes[i].Name == "" {
			t.Indexes[i].Name = IndexName(t.Name, t.Indexes[i].Columns)
		}
	}

	for i := range t.CheckConstraints {
		if t.CheckConstraints[i].Name == "" {
			t.CheckConstraints[i].Name = CheckConstraintName(t.Name, i+1)
		}
	}
}
