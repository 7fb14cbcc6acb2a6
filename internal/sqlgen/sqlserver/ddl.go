package sqlserver

import (
	"fmt"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// RenameTable uses sp_rename for the name and ALTER SCHEMA ... TRANSFER for
// the schema, each as its own statement.
func (d *Dialect) RenameTable(b *sqlgen.Builder, op operations.RenameTable) error {
	name := op.Table

	if op.NewName != op.Table {
		b.Append("EXEC sp_rename ").Append(d.StringLiteral(d.QualifyName(op.Schema, op.Table))).
			Append(", ").Append(d.StringLiteral(op.NewName)).EndStatement(";")

		name = op.NewName
	}

	if op.NewSchema == op.Schema {
		return nil
	}

	source := d.QualifyName(op.Schema, name)

	if op.NewSchema == "" {
		b.AppendLine("DECLARE @defaultSchema sysname = SCHEMA_NAME();")
		b.Append("EXEC(N'ALTER SCHEMA [' + @defaultSchema + N'] TRANSFER ").
			Append(escape(source)).Append(";')").EndStatement(";")

		return nil
	}

	b.Append("ALTER SCHEMA ").Append(d.DelimitIdentifier(op.NewSchema)).
		Append(" TRANSFER ").Append(source).EndStatement(";")

	return nil
}

// RenameColumn calls sp_rename with the COLUMN object type.
func (d *Dialect) RenameColumn(b *sqlgen.Builder, op operations.RenameColumn) error {
	d.spRename(b, op.TableRef, op.Name, op.NewName, "COLUMN")

	return nil
}

// RenameIndex calls sp_rename with the INDEX object type.
func (d *Dialect) RenameIndex(b *sqlgen.Builder, op operations.RenameIndex) error {
	d.spRename(b, op.TableRef, op.Name, op.NewName, "INDEX")

	return nil
}

func (d *Dialect) spRename(b *sqlgen.Builder, t operations.TableRef, name, newName, kind string) {
	object := d.QualifyName(t.Schema, t.Table) + "." + d.DelimitIdentifier(name)

	b.Append("EXEC sp_rename ").Append(d.StringLiteral(object)).
		Append(", ").Append(d.StringLiteral(newName)).
		Append(", ").Append(d.StringLiteral(kind)).EndStatement(";")
}

// AddColumn writes ALTER TABLE ... ADD without the COLUMN keyword.
func (d *Dialect) AddColumn(b *sqlgen.Builder, op operations.AddColumn) error {
	b.Append("ALTER TABLE ").Append(d.QualifyName(op.Schema, op.Table)).Append(" ADD ")

	return d.ColumnDefinition(b, sqlgen.ColumnContext{Table: op.Target()}, &op.Column)
}

// DropDefaultConstraint looks up the column's unnamed default constraint and
// drops it when present.
func (d *Dialect) DropDefaultConstraint(b *sqlgen.Builder, table schema.QualifiedName, column string) {
	qualified := d.QualifyName(table.Schema, table.Name)

	b.AppendLine("DECLARE @var sysname;")
	b.AppendLine("SELECT @var = [d].[name]")
	b.AppendLine("FROM [sys].[default_constraints] [d]")
	b.AppendLine("INNER JOIN [sys].[columns] [c] ON [d].[parent_column_id] = [c].[column_id]" +
		" AND [d].[parent_object_id] = [c].[object_id]")
	b.Append("WHERE ([d].[parent_object_id] = OBJECT_ID(").Append(d.StringLiteral(qualified)).
		Append(") AND [c].[name] = ").Append(d.StringLiteral(column)).AppendLine(");")
	b.Append("IF @var IS NOT NULL EXEC(N'ALTER TABLE ").Append(escape(qualified)).
		Append(" DROP CONSTRAINT [' + @var + '];')").EndStatement(";")
}

// AlterBlockedByIndex reports the changes that need ALTER COLUMN, which SQL
// Server rejects while an index or constraint covers the column.
func (*Dialect) AlterBlockedByIndex(o, n *schema.Column) bool {
	return n.ComputedSQL == "" && (o.Type != n.Type || o.StoreType != n.StoreType ||
		o.Nullable != n.Nullable || o.Collation != n.Collation)
}

// AlterColumn drops the default constraint, alters the column's type and
// nullability, and re-adds the default. Identity and computed changes need a
// rebuild.
func (d *Dialect) AlterColumn(b *sqlgen.Builder, op operations.AlterColumn) error {
	o, n := &op.Old, &op.New

	if o.Identity != n.Identity || o.ComputedSQL != n.ComputedSQL || o.Stored != n.Stored {
		return sqlgen.ErrRebuildRequired
	}

	table := op.Target()
	qualified := d.QualifyName(op.Schema, op.Table)

	typeChanged := d.AlterBlockedByIndex(o, n)
	defaultChanged := o.DefaultSQL != n.DefaultSQL || !equalDefault(o.DefaultValue, n.DefaultValue)

	if typeChanged || defaultChanged {
		d.DropDefaultConstraint(b, table, n.Name)
	}

	if typeChanged {
		storeType, err := sqlgen.ResolveStoreType(d, n)
		if err != nil {
			return err
		}

		b.Append("ALTER TABLE ").Append(qualified).Append(" ALTER COLUMN ").
			Append(d.DelimitIdentifier(n.Name)).Append(" ").Append(storeType)

		if n.Collation != "" {
			b.Append(" COLLATE ").Append(n.Collation)
		}

		if n.Nullable {
			b.Append(" NULL")
		} else {
			b.Append(" NOT NULL")
		}

		b.EndStatement(";")
	}

	if typeChanged || defaultChanged {
		def, err := sqlgen.DefaultLiteral(d, n)
		if err != nil {
			return err
		}

		if def != "" {
			b.Append("ALTER TABLE ").Append(qualified).Append(" ADD DEFAULT ").Append(def).
				Append(" FOR ").Append(d.DelimitIdentifier(n.Name)).EndStatement(";")
		}
	}

	if o.Comment != n.Comment {
		d.ColumnComment(b, table, n.Name, n.Comment, o.Comment)
	}

	return nil
}

func equalDefault(a, b *schema.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Equal(*b)
}

// TableComment maintains the MS_Description extended property of a table.
func (d *Dialect) TableComment(b *sqlgen.Builder, table schema.QualifiedName, comment, old string) {
	d.description(b, table, "", comment, old)
}

// ColumnComment maintains the MS_Description extended property of a column.
func (d *Dialect) ColumnComment(b *sqlgen.Builder, table schema.QualifiedName, column, comment, old string) {
	d.description(b, table, column, comment, old)
}

func (d *Dialect) description(b *sqlgen.Builder, table schema.QualifiedName, column, comment, old string) {
	proc := "sp_updateextendedproperty"

	switch {
	case old == "":
		proc = "sp_addextendedproperty"
	case comment == "":
		proc = "sp_dropextendedproperty"
	}

	schemaArg := "@defaultSchema"
	if table.Schema == "" {
		b.AppendLine("DECLARE @defaultSchema sysname = SCHEMA_NAME();")
	} else {
		schemaArg = d.StringLiteral(table.Schema)
	}

	b.Append("EXEC ").Append(proc).Append(" 'MS_Description', ")

	if comment != "" {
		b.Append(d.StringLiteral(comment)).Append(", ")
	}

	b.Append("'SCHEMA', ").Append(schemaArg).Append(", 'TABLE', ").Append(d.StringLiteral(table.Name))

	if column != "" {
		b.Append(", 'COLUMN', ").Append(d.StringLiteral(column))
	}

	b.EndStatement(";")
}

// IndexOptions maps the SqlServer:Clustered annotation to CLUSTERED or NONCLUSTERED.
func (*Dialect) IndexOptions(ix *schema.Index) sqlgen.IndexOptions {
	v, ok := ix.Annotations.Get(AnnotationClustered)
	if !ok || v.Kind != schema.BoolKind {
		return sqlgen.IndexOptions{}
	}

	if v.Bool {
		return sqlgen.IndexOptions{BeforeIndex: "CLUSTERED"}
	}

	return sqlgen.IndexOptions{BeforeIndex: "NONCLUSTERED"}
}

// GuardStyle wraps every guarded statement in an IF ... BEGIN ... END block.
func (*Dialect) GuardStyle(sqlgen.GuardTarget) sqlgen.GuardStyle {
	return sqlgen.GuardBlock
}

// BeginGuard opens an IF ... BEGIN block testing for the object.
func (d *Dialect) BeginGuard(b *sqlgen.Builder, t sqlgen.GuardTarget) {
	table := d.StringLiteral(d.QualifyName(t.Table.Schema, t.Table.Name))

	null := "IS NULL"
	not := "NOT "

	if t.Exists {
		null = "IS NOT NULL"
		not = ""
	}

	switch t.Kind {
	case sqlgen.GuardTable:
		b.AppendLine(fmt.Sprintf("IF OBJECT_ID(%s) %s", table, null))
	case sqlgen.GuardColumn:
		b.AppendLine(fmt.Sprintf("IF COL_LENGTH(%s, %s) %s", table, d.StringLiteral(t.Name), null))
	case sqlgen.GuardIndex:
		b.AppendLine(fmt.Sprintf("IF %sEXISTS (SELECT * FROM [sys].[indexes] WHERE [name] = %s AND [object_id] = OBJECT_ID(%s))",
			not, d.StringLiteral(t.Name), table))
	case sqlgen.GuardSequence:
		b.AppendLine(fmt.Sprintf("IF OBJECT_ID(%s, N'SO') %s", table, null))
	}

	b.AppendLine("BEGIN")
}

// EndGuard closes the block opened by BeginGuard.
func (*Dialect) EndGuard(b *sqlgen.Builder) {
	b.AppendLine("END;")
}

// escape doubles single quotes so text can sit inside an N'...' literal.
func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
