// Package operations defines the closed set of schema migration operations
// produced by the differ and rendered by the SQL generator. Operations are
// plain values and are never modified after construction.
package operations

import (
	"fmt"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// Kind identifies an operation variant.
type Kind int

// Operation kinds.
const (
	KindEnsureSchema Kind = iota + 1
	KindDropSchema
	KindCreateTable
	KindDropTable
	KindRenameTable
	KindAlterTable
	KindRebuildTable
	KindAddColumn
	KindDropColumn
	KindAlterColumn
	KindRenameColumn
	KindAddPrimaryKey
	KindDropPrimaryKey
	KindAddUniqueConstraint
	KindDropUniqueConstraint
	KindAddForeignKey
	KindDropForeignKey
	KindCreateIndex
	KindDropIndex
	KindRenameIndex
	KindAddCheckConstraint
	KindDropCheckConstraint
	KindCreateSequence
	KindDropSequence
	KindAlterSequence
	KindSQL
)

var kindNames = map[Kind]string{ //nolint:gochecknoglobals // lookup table
	KindEnsureSchema:         "EnsureSchema",
	KindDropSchema:           "DropSchema",
	KindCreateTable:          "CreateTable",
	KindDropTable:            "DropTable",
	KindRenameTable:          "RenameTable",
	KindAlterTable:           "AlterTable",
	KindRebuildTable:         "RebuildTable",
	KindAddColumn:            "AddColumn",
	KindDropColumn:           "DropColumn",
	KindAlterColumn:          "AlterColumn",
	KindRenameColumn:         "RenameColumn",
	KindAddPrimaryKey:        "AddPrimaryKey",
	KindDropPrimaryKey:       "DropPrimaryKey",
	KindAddUniqueConstraint:  "AddUniqueConstraint",
	KindDropUniqueConstraint: "DropUniqueConstraint",
	KindAddForeignKey:        "AddForeignKey",
	KindDropForeignKey:       "DropForeignKey",
	KindCreateIndex:          "CreateIndex",
	KindDropIndex:            "DropIndex",
	KindRenameIndex:          "RenameIndex",
	KindAddCheckConstraint:   "AddCheckConstraint",
	KindDropCheckConstraint:  "DropCheckConstraint",
	KindCreateSequence:       "CreateSequence",
	KindDropSequence:         "DropSequence",
	KindAlterSequence:        "AlterSequence",
	KindSQL:                  "Sql",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Operation is one atomic schema change. The set of implementations is closed.
type Operation interface {
	Kind() Kind
	// Target is the table, sequence, or schema the operation acts on. For
	// schema operations only Schema is set.
	Target() schema.QualifiedName
	operation()
}

// TableRef names the table an operation applies to.
type TableRef struct {
	Schema string
	Table  string
}

// On returns a TableRef.
func On(schemaName, table string) TableRef {
	return TableRef{Schema: schemaName, Table: table}
}

// Target implements Operation.
func (r TableRef) Target() schema.QualifiedName {
	return schema.QualifiedName{Schema: r.Schema, Name: r.Table}
}

// EnsureSchema creates a schema if it does not exist.
type EnsureSchema struct {
	Name string
}

// DropSchema drops a schema.
type DropSchema struct {
	Name string
}

// CreateTable creates a table with its columns, keys, foreign keys, checks, and
// comment. Indexes are created by separate CreateIndex operations.
type CreateTable struct {
	Table schema.Table
}

// DropTable drops a table.
type DropTable struct {
	TableRef
}

// RenameTable renames a table and/or moves it to another schema.
type RenameTable struct {
	TableRef
	NewSchema string
	NewName   string
}

// AlterTable changes table-level metadata.
type AlterTable struct {
	TableRef
	Comment        string
	OldComment     string
	Annotations    schema.Annotations
	OldAnnotations schema.Annotations
}

// RebuildTable recreates a table under its new definition and copies the rows
// across, for databases that cannot change columns or constraints in place.
// Old is the current definition under the name in TableRef. Sources holds, for
// each column of New, the column of Old it is copied from, or "" when the
// column starts from its default. Indexes are created by separate CreateIndex
// operations.
type RebuildTable struct {
	TableRef
	Old     schema.Table
	New     schema.Table
	Sources []string
}

// AddColumn adds a column to an existing table.
type AddColumn struct {
	TableRef
	Column schema.Column
}

// DropColumn drops a column.
type DropColumn struct {
	TableRef
	Name string
}

// AlterColumn changes a column's definition. Old and New share a name.
type AlterColumn struct {
	TableRef
	Old schema.Column
	New schema.Column
}

// RenameColumn renames a column.
type RenameColumn struct {
	TableRef
	Name    string
	NewName string
}

// AddPrimaryKey adds a primary key constraint.
type AddPrimaryKey struct {
	TableRef
	Key schema.Key
}

// DropPrimaryKey drops a primary key constraint.
type DropPrimaryKey struct {
	TableRef
	Name string
}

// AddUniqueConstraint adds a unique constraint.
type AddUniqueConstraint struct {
	TableRef
	Key schema.Key
}

// DropUniqueConstraint drops a unique constraint.
type DropUniqueConstraint struct {
	TableRef
	Name string
}

// AddForeignKey adds a foreign key constraint.
type AddForeignKey struct {
	TableRef
	ForeignKey schema.ForeignKey
}

// DropForeignKey drops a foreign key constraint.
type DropForeignKey struct {
	TableRef
	Name string
}

// CreateIndex creates an index.
type CreateIndex struct {
	TableRef
	Index schema.Index
}

// DropIndex drops an index.
type DropIndex struct {
	TableRef
	Name string
}

// RenameIndex renames an index. Index holds the full definition under the new
// name for dialects that must recreate it.
type RenameIndex struct {
	TableRef
	Name    string
	NewName string
	Index   schema.Index
}

// AddCheckConstraint adds a check constraint.
type AddCheckConstraint struct {
	TableRef
	Check schema.CheckConstraint
}

// DropCheckConstraint drops a check constraint.
type DropCheckConstraint struct {
	TableRef
	Name string
}

// CreateSequence creates a sequence.
type CreateSequence struct {
	Sequence schema.Sequence
}

// DropSequence drops a sequence.
type DropSequence struct {
	Schema string
	Name   string
}

// AlterSequence changes a sequence's increment, start, bounds, or cycling.
type AlterSequence struct {
	Old schema.Sequence
	New schema.Sequence
}

// SQL is a raw statement passed through to the script unchanged.
type SQL struct {
	SQL                 string
	SuppressTransaction bool
}

func (EnsureSchema) Kind() Kind         { return KindEnsureSchema }
func (DropSchema) Kind() Kind           { return KindDropSchema }
func (CreateTable) Kind() Kind          { return KindCreateTable }
func (DropTable) Kind() Kind            { return KindDropTable }
func (RenameTable) Kind() Kind          { return KindRenameTable }
func (AlterTable) Kind() Kind           { return KindAlterTable }
func (RebuildTable) Kind() Kind         { return KindRebuildTable }
func (AddColumn) Kind() Kind            { return KindAddColumn }
func (DropColumn) Kind() Kind           { return KindDropColumn }
func (AlterColumn) Kind() Kind          { return KindAlterColumn }
func (RenameColumn) Kind() Kind         { return KindRenameColumn }
func (AddPrimaryKey) Kind() Kind        { return KindAddPrimaryKey }
func (DropPrimaryKey) Kind() Kind       { return KindDropPrimaryKey }
func (AddUniqueConstraint) Kind() Kind  { return KindAddUniqueConstraint }
func (DropUniqueConstraint) Kind() Kind { return KindDropUniqueConstraint }
func (AddForeignKey) Kind() Kind        { return KindAddForeignKey }
func (DropForeignKey) Kind() Kind       { return KindDropForeignKey }
func (CreateIndex) Kind() Kind          { return KindCreateIndex }
func (DropIndex) Kind() Kind            { return KindDropIndex }
func (RenameIndex) Kind() Kind          { return KindRenameIndex }
func (AddCheckConstraint) Kind() Kind   { return KindAddCheckConstraint }
func (DropCheckConstraint) Kind() Kind  { return KindDropCheckConstraint }
func (CreateSequence) Kind() Kind       { return KindCreateSequence }
func (DropSequence) Kind() Kind         { return KindDropSequence }
func (AlterSequence) Kind() Kind        { return KindAlterSequence }
func (SQL) Kind() Kind                  { return KindSQL }

func (o EnsureSchema) Target() schema.QualifiedName { return schema.QualifiedName{Schema: o.Name} }
func (o DropSchema) Target() schema.QualifiedName   { return schema.QualifiedName{Schema: o.Name} }
func (o CreateTable) Target() schema.QualifiedName  { return o.Table.QualifiedName() }

func (o CreateSequence) Target() schema.QualifiedName {
	return schema.QualifiedName{Schema: o.Sequence.Schema, Name: o.Sequence.Name}
}

func (o DropSequence) Target() schema.QualifiedName {
	return schema.QualifiedName{Schema: o.Schema, Name: o.Name}
}

func (o AlterSequence) Target() schema.QualifiedName {
	return schema.QualifiedName{Schema: o.New.Schema, Name: o.New.Name}
}

func (SQL) Target() schema.QualifiedName { return schema.QualifiedName{} }

func (EnsureSchema) operation()         {}
func (DropSchema) operation()           {}
func (CreateTable) operation()          {}
func (DropTable) operation()            {}
func (RenameTable) operation()          {}
func (AlterTable) operation()           {}
func (RebuildTable) operation()         {}
func (AddColumn) operation()            {}
func (DropColumn) operation()           {}
func (AlterColumn) operation()          {}
func (RenameColumn) operation()         {}
func (AddPrimaryKey) operation()        {}
func (DropPrimaryKey) operation()       {}
func (AddUniqueConstraint) operation()  {}
func (DropUniqueConstraint) operation() {}
func (AddForeignKey) operation()        {}
func (DropForeignKey) operation()       {}
func (CreateIndex) operation()          {}
func (DropIndex) operation()            {}
func (RenameIndex) operation()          {}
func (AddCheckConstraint) operation()   {}
func (DropCheckConstraint) operation()  {}
func (CreateSequence) operation()       {}
func (DropSequence) operation()         {}
func (AlterSequence) operation()        {}
func (SQL) operation()                  {}

// Describe returns a one-line human readable summary of op.
func Describe(op Operation) string {
	target := op.Target().String()

	switch o := op.(type) {
	case EnsureSchema:
		return "ensure schema " + o.Name
	case DropSchema:
		return "drop schema " + o.Name
	case CreateTable:
		return fmt.Sprintf("create table %s (%d columns)", target, len(o.Table.Columns))
	case DropTable:
		return "drop table " + target
	case RenameTable:
		return fmt.Sprintf("rename table %s to %s", target,
			schema.QualifiedName{Schema: o.NewSchema, Name: o.NewName})
	case AlterTable:
		return "alter table " + target
	case RebuildTable:
		return fmt.Sprintf("rebuild table %s (%d columns)", target, len(o.New.Columns))
	case AddColumn:
		return fmt.Sprintf("add column %s.%s", target, o.Column.Name)
	case DropColumn:
		return fmt.Sprintf("drop column %s.%s", target, o.Name)
	case AlterColumn:
		return fmt.Sprintf("alter column %s.%s", target, o.New.Name)
	case RenameColumn:
		return fmt.Sprintf("rename column %s.%s to %s", target, o.Name, o.NewName)
	case AddPrimaryKey:
		return fmt.Sprintf("add primary key %s on %s (%s)", o.Key.Name, target, strings.Join(o.Key.Columns, ", "))
	case DropPrimaryKey:
		return fmt.Sprintf("drop primary key %s on %s", o.Name, target)
	case AddUniqueConstraint:
		return fmt.Sprintf("add unique constraint %s on %s (%s)", o.Key.Name, target, strings.Join(o.Key.Columns, ", "))
	case DropUniqueConstraint:
		return fmt.Sprintf("drop unique constraint %s on %s", o.Name, target)
	case AddForeignKey:
		return fmt.Sprintf("add foreign key %s on %s", o.ForeignKey.Name, target)
	case DropForeignKey:
		return fmt.Sprintf("drop foreign key %s on %s", o.Name, target)
	case CreateIndex:
		return fmt.Sprintf("create index %s on %s (%s)", o.Index.Name, target, strings.Join(o.Index.Columns, ", "))
	case DropIndex:
		return fmt.Sprintf("drop index %s on %s", o.Name, target)
	case RenameIndex:
		return fmt.Sprintf("rename index %s on %s to %s", o.Name, target, o.NewName)
	case AddCheckConstraint:
		return fmt.Sprintf("add check constraint %s on %s", o.Check.Name, target)
	case DropCheckConstraint:
		return fmt.Sprintf("drop check constraint %s on %s", o.Name, target)
	case CreateSequence:
		return "create sequence " + target
	case DropSequence:
		return "drop sequence " + target
	case AlterSequence:
		return "alter sequence " + target
	case SQL:
		return "sql: " + firstLine(o.SQL)
	default:
		return op.Kind().String() + " " + target
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}

	return s
}
