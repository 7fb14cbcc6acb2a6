package mysql

import (
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// RenameTable renames and moves a table in one RENAME TABLE statement.
func (d *Dialect) RenameTable(b *sqlgen.Builder, op operations.RenameTable) error {
	b.Append("RENAME TABLE ").Append(d.QualifyName(op.Schema, op.Table)).
		Append(" TO ").Append(d.QualifyName(op.NewSchema, op.NewName)).EndStatement(";")

	return nil
}

// RenameIndex writes ALTER TABLE ... RENAME INDEX.
func (d *Dialect) RenameIndex(b *sqlgen.Builder, op operations.RenameIndex) error {
	b.Append("ALTER TABLE ").Append(d.QualifyName(op.Schema, op.Table)).
		Append(" RENAME INDEX ").Append(d.DelimitIdentifier(op.Name)).
		Append(" TO ").Append(d.DelimitIdentifier(op.NewName)).EndStatement(";")

	return nil
}

// AlterColumn restates the whole column with MODIFY COLUMN. Switching between
// stored and virtual generated columns needs a rebuild.
func (d *Dialect) AlterColumn(b *sqlgen.Builder, op operations.AlterColumn) error {
	if (op.Old.ComputedSQL == "") != (op.New.ComputedSQL == "") || op.Old.Stored != op.New.Stored {
		return sqlgen.ErrRebuildRequired
	}

	b.Append("ALTER TABLE ").Append(d.QualifyName(op.Schema, op.Table)).Append(" MODIFY COLUMN ")

	if err := d.ColumnDefinition(b, sqlgen.ColumnContext{Table: op.Target()}, &op.New); err != nil {
		return err
	}

	b.EndStatement(";")

	return nil
}

// DropConstraintClause names the constraint kind, as MySQL has no generic
// DROP CONSTRAINT for keys.
func (d *Dialect) DropConstraintClause(kind operations.Kind, name string) string {
	switch kind {
	case operations.KindDropPrimaryKey:
		return "PRIMARY KEY"
	case operations.KindDropUniqueConstraint:
		return "INDEX " + d.DelimitIdentifier(name)
	case operations.KindDropForeignKey:
		return "FOREIGN KEY " + d.DelimitIdentifier(name)
	case operations.KindDropCheckConstraint:
		return "CHECK " + d.DelimitIdentifier(name)
	default:
		return "CONSTRAINT " + d.DelimitIdentifier(name)
	}
}

// TableComment writes ALTER TABLE ... COMMENT =.
func (d *Dialect) TableComment(b *sqlgen.Builder, table schema.QualifiedName, comment, _ string) {
	b.Append("ALTER TABLE ").Append(d.QualifyName(table.Schema, table.Name)).
		Append(" COMMENT = ").Append(d.StringLiteral(comment)).EndStatement(";")
}

// ColumnComment writes nothing; column comments are part of the definition.
func (*Dialect) ColumnComment(*sqlgen.Builder, schema.QualifiedName, string, string, string) {}

// GuardStyle guards tables inline. MySQL has no IF [NOT] EXISTS for indexes
// or columns.
func (*Dialect) GuardStyle(t sqlgen.GuardTarget) sqlgen.GuardStyle {
	if t.Kind == sqlgen.GuardTable {
		return sqlgen.GuardInline
	}

	return sqlgen.GuardNone
}

// BeginGuard writes nothing; MySQL guards are inline.
func (*Dialect) BeginGuard(*sqlgen.Builder, sqlgen.GuardTarget) {}

// EndGuard writes nothing.
func (*Dialect) EndGuard(*sqlgen.Builder) {}
