package postgres

import (
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// defaultSchema is where unqualified tables live.
const defaultSchema = "public"

// RenameTable renames in place, then moves the table with SET SCHEMA.
func (d *Dialect) RenameTable(b *sqlgen.Builder, op operations.RenameTable) error {
	name := op.Table

	if op.NewName != op.Table {
		b.Append("ALTER TABLE ").Append(d.QualifyName(op.Schema, op.Table)).
			Append(" RENAME TO ").Append(d.DelimitIdentifier(op.NewName)).EndStatement(";")

		name = op.NewName
	}

	if op.NewSchema != op.Schema {
		target := op.NewSchema
		if target == "" {
			target = defaultSchema
		}

		b.Append("ALTER TABLE ").Append(d.QualifyName(op.Schema, name)).
			Append(" SET SCHEMA ").Append(d.DelimitIdentifier(target)).EndStatement(";")
	}

	return nil
}

// RenameIndex writes ALTER INDEX ... RENAME TO.
func (d *Dialect) RenameIndex(b *sqlgen.Builder, op operations.RenameIndex) error {
	b.Append("ALTER INDEX ").Append(d.QualifyName(op.Schema, op.Name)).
		Append(" RENAME TO ").Append(d.DelimitIdentifier(op.NewName)).EndStatement(";")

	return nil
}

// AlterColumn emits one ALTER COLUMN statement per changed aspect.
func (d *Dialect) AlterColumn(b *sqlgen.Builder, op operations.AlterColumn) error {
	o, n := &op.Old, &op.New

	if o.ComputedSQL != n.ComputedSQL || o.Stored != n.Stored {
		return sqlgen.ErrRebuildRequired
	}

	prefix := "ALTER TABLE " + d.QualifyName(op.Schema, op.Table) + " ALTER COLUMN " + d.DelimitIdentifier(n.Name)

	if o.Type != n.Type || o.StoreType != n.StoreType || o.Collation != n.Collation {
		storeType, err := sqlgen.ResolveStoreType(d, n)
		if err != nil {
			return err
		}

		b.Append(prefix).Append(" TYPE ").Append(storeType)

		if n.Collation != "" {
			b.Append(" COLLATE ").Append(d.DelimitIdentifier(n.Collation))
		}

		b.EndStatement(";")
	}

	if o.Nullable != n.Nullable {
		if n.Nullable {
			b.Append(prefix).Append(" DROP NOT NULL").EndStatement(";")
		} else {
			b.Append(prefix).Append(" SET NOT NULL").EndStatement(";")
		}
	}

	if o.Identity != n.Identity {
		if n.Identity {
			b.Append(prefix).Append(" ADD GENERATED BY DEFAULT AS IDENTITY").EndStatement(";")
		} else {
			b.Append(prefix).Append(" DROP IDENTITY").EndStatement(";")
		}
	}

	if o.DefaultSQL != n.DefaultSQL || !equalDefault(o.DefaultValue, n.DefaultValue) {
		def, err := sqlgen.DefaultLiteral(d, n)
		if err != nil {
			return err
		}

		if def == "" {
			b.Append(prefix).Append(" DROP DEFAULT").EndStatement(";")
		} else {
			b.Append(prefix).Append(" SET DEFAULT ").Append(def).EndStatement(";")
		}
	}

	if o.Comment != n.Comment {
		d.ColumnComment(b, op.Target(), n.Name, n.Comment, o.Comment)
	}

	return nil
}

func equalDefault(a, b *schema.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Equal(*b)
}

// TableComment writes COMMENT ON TABLE; an empty comment clears it.
func (d *Dialect) TableComment(b *sqlgen.Builder, table schema.QualifiedName, comment, _ string) {
	b.Append("COMMENT ON TABLE ").Append(d.QualifyName(table.Schema, table.Name)).
		Append(" IS ").Append(d.commentLiteral(comment)).EndStatement(";")
}

// ColumnComment writes COMMENT ON COLUMN; an empty comment clears it.
func (d *Dialect) ColumnComment(b *sqlgen.Builder, table schema.QualifiedName, column, comment, _ string) {
	b.Append("COMMENT ON COLUMN ").Append(d.QualifyName(table.Schema, table.Name)).
		Append(".").Append(d.DelimitIdentifier(column)).
		Append(" IS ").Append(d.commentLiteral(comment)).EndStatement(";")
}

func (d *Dialect) commentLiteral(comment string) string {
	if comment == "" {
		return "NULL"
	}

	return d.StringLiteral(comment)
}

// IndexOptions builds indexes concurrently, outside any transaction, when
// the Postgres:Concurrently annotation is true.
func (*Dialect) IndexOptions(ix *schema.Index) sqlgen.IndexOptions {
	if ix.Annotations.Bool(AnnotationConcurrently, false) {
		return sqlgen.IndexOptions{AfterIndex: "CONCURRENTLY", SuppressTransaction: true}
	}

	return sqlgen.IndexOptions{}
}

// GuardStyle uses IF [NOT] EXISTS clauses for every guarded object.
func (*Dialect) GuardStyle(sqlgen.GuardTarget) sqlgen.GuardStyle {
	return sqlgen.GuardInline
}

// BeginGuard writes nothing; PostgreSQL guards are inline.
func (*Dialect) BeginGuard(*sqlgen.Builder, sqlgen.GuardTarget) {}

// EndGuard writes nothing.
func (*Dialect) EndGuard(*sqlgen.Builder) {}
