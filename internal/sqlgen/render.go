package sqlgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

//nolint:cyclop,funlen // one case per operation kind
func (g *Generator) render(b *Builder, op operations.Operation) error {
	if err := g.checkSchemas(op); err != nil {
		return err
	}

	switch o := op.(type) {
	case operations.EnsureSchema:
		return g.statement(b, nil, false, func(string) error {
			g.d.EnsureSchema(b, o.Name)

			return nil
		})
	case operations.DropSchema:
		return g.statement(b, nil, false, func(string) error {
			b.Append("DROP SCHEMA ").Append(g.d.DelimitIdentifier(o.Name))

			return nil
		})
	case operations.CreateTable:
		return g.createTable(b, o)
	case operations.DropTable:
		guard := &GuardTarget{Kind: GuardTable, Exists: true, Table: o.Target()}

		return g.statement(b, guard, false, func(inline string) error {
			b.Append("DROP TABLE ").Append(inline).Append(g.table(o.TableRef))

			return nil
		})
	case operations.RenameTable:
		return g.renameTable(b, o)
	case operations.AlterTable:
		if c, ok := g.d.(Commenter); ok && o.Comment != o.OldComment {
			c.TableComment(b, o.Target(), o.Comment, o.OldComment)
		}

		return nil
	case operations.RebuildTable:
		return g.rebuildTable(b, o)
	case operations.AddColumn:
		return g.addColumn(b, o)
	case operations.DropColumn:
		return g.dropColumn(b, o)
	case operations.AlterColumn:
		return g.alterColumn(b, o)
	case operations.RenameColumn:
		if r, ok := g.d.(ColumnRenamer); ok {
			return r.RenameColumn(b, o)
		}

		return g.statement(b, nil, false, func(string) error {
			b.Append("ALTER TABLE ").Append(g.table(o.TableRef)).
				Append(" RENAME COLUMN ").Append(g.d.DelimitIdentifier(o.Name)).
				Append(" TO ").Append(g.d.DelimitIdentifier(o.NewName))

			return nil
		})
	case operations.AddPrimaryKey:
		return g.addConstraint(b, op, o.TableRef, o.Key.Name, "PRIMARY KEY "+g.columnList(o.Key.Columns))
	case operations.AddUniqueConstraint:
		return g.addConstraint(b, op, o.TableRef, o.Key.Name, "UNIQUE "+g.columnList(o.Key.Columns))
	case operations.AddForeignKey:
		return g.addConstraint(b, op, o.TableRef, o.ForeignKey.Name, g.foreignKeyBody(&o.ForeignKey))
	case operations.AddCheckConstraint:
		return g.addConstraint(b, op, o.TableRef, o.Check.Name, "CHECK ("+o.Check.SQL+")")
	case operations.DropPrimaryKey:
		return g.dropConstraint(b, op, o.TableRef, o.Name)
	case operations.DropUniqueConstraint:
		return g.dropConstraint(b, op, o.TableRef, o.Name)
	case operations.DropForeignKey:
		return g.dropConstraint(b, op, o.TableRef, o.Name)
	case operations.DropCheckConstraint:
		return g.dropConstraint(b, op, o.TableRef, o.Name)
	case operations.CreateIndex:
		return g.createIndex(b, op, o.TableRef, &o.Index)
	case operations.DropIndex:
		return g.dropIndex(b, o.TableRef, o.Name)
	case operations.RenameIndex:
		if r, ok := g.d.(IndexRenamer); ok {
			return r.RenameIndex(b, o)
		}

		if err := g.dropIndex(b, o.TableRef, o.Name); err != nil {
			return err
		}

		return g.createIndex(b, op, o.TableRef, &o.Index)
	case operations.CreateSequence:
		return g.createSequence(b, op, &o.Sequence)
	case operations.AlterSequence:
		return g.alterSequence(b, op, o)
	case operations.DropSequence:
		if !g.d.Capabilities().Sequences {
			return Unsupported(g.d, op, "sequences are not supported")
		}

		guard := &GuardTarget{Kind: GuardSequence, Exists: true, Table: o.Target(), Name: o.Name}

		return g.statement(b, guard, false, func(inline string) error {
			b.Append("DROP SEQUENCE ").Append(inline).Append(g.d.QualifyName(o.Schema, o.Name))

			return nil
		})
	case operations.SQL:
		suppress := o.SuppressTransaction
		if in, ok := g.d.(SQLInspector); ok && in.RequiresNoTransaction(o.SQL) {
			suppress = true
		}

		b.AppendLines(o.SQL)
		b.EndCommand(suppress)

		return nil
	default:
		return Unsupported(g.d, op, "unknown operation")
	}
}

// checkSchemas rejects schema-qualified operations on dialects without schemas.
func (g *Generator) checkSchemas(op operations.Operation) error {
	if g.d.Capabilities().Schemas {
		return nil
	}

	var names []string

	switch o := op.(type) {
	case operations.EnsureSchema:
		names = append(names, o.Name)
	case operations.DropSchema:
		names = append(names, o.Name)
	case operations.RenameTable:
		names = append(names, o.Schema, o.NewSchema)
	case operations.CreateTable:
		names = append(names, o.Table.Schema)
		for _, fk := range o.Table.ForeignKeys {
			names = append(names, fk.PrincipalSchema)
		}
	case operations.AddForeignKey:
		names = append(names, o.Schema, o.ForeignKey.PrincipalSchema)
	default:
		names = append(names, op.Target().Schema)
	}

	for _, n := range names {
		if n != "" {
			return Unsupported(g.d, op, fmt.Sprintf("schema %q: the dialect has no schemas", n))
		}
	}

	return nil
}

func (g *Generator) checkIdentifiers(op operations.Operation, names ...string) error {
	limit := g.d.Capabilities().MaxIdentifierLength
	if limit <= 0 {
		return nil
	}

	for _, n := range names {
		if len(n) > limit {
			return Unsupported(g.d, op, fmt.Sprintf("identifier %q is longer than %d characters", n, limit))
		}
	}

	return nil
}

func (g *Generator) table(r operations.TableRef) string {
	return g.d.QualifyName(r.Schema, r.Table)
}

func (g *Generator) columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = g.d.DelimitIdentifier(c)
	}

	return "(" + strings.Join(quoted, ", ") + ")"
}

func (g *Generator) foreignKeyBody(fk *schema.ForeignKey) string {
	var sb strings.Builder

	sb.WriteString("FOREIGN KEY ")
	sb.WriteString(g.columnList(fk.Columns))
	sb.WriteString(" REFERENCES ")
	sb.WriteString(g.d.QualifyName(fk.PrincipalSchema, fk.PrincipalTable))
	sb.WriteString(" ")
	sb.WriteString(g.columnList(fk.PrincipalColumns))

	if fk.OnDelete != schema.NoAction {
		sb.WriteString(" ON DELETE ")
		sb.WriteString(fk.OnDelete.String())
	}

	if fk.OnUpdate != schema.NoAction {
		sb.WriteString(" ON UPDATE ")
		sb.WriteString(fk.OnUpdate.String())
	}

	return sb.String()
}

func (g *Generator) createTable(b *Builder, op operations.CreateTable) error {
	t := &op.Table
	name := t.QualifiedName()

	ids := []string{t.Name}
	for i := range t.Columns {
		ids = append(ids, t.Columns[i].Name)
	}

	if err := g.checkIdentifiers(op, ids...); err != nil {
		return err
	}

	ctx := ColumnContext{Table: name}

	inlinePK := false
	if in, ok := g.d.(PrimaryKeyInliner); ok && t.PrimaryKey != nil && in.InlinePrimaryKey(t) {
		ctx.PrimaryKey = t.PrimaryKey
		inlinePK = true
	}

	var lines []func() error

	for i := range t.Columns {
		c := &t.Columns[i]
		lines = append(lines, func() error { return g.d.ColumnDefinition(b, ctx, c) })
	}

	constraint := func(name, body string) func() error {
		return func() error {
			b.Append("CONSTRAINT ").Append(g.d.DelimitIdentifier(name)).Append(" ").Append(body)

			return nil
		}
	}

	for _, k := range t.UniqueConstraints {
		lines = append(lines, constraint(k.Name, "UNIQUE "+g.columnList(k.Columns)))
	}

	for _, c := range t.CheckConstraints {
		lines = append(lines, constraint(c.Name, "CHECK ("+c.SQL+")"))
	}

	for i := range t.ForeignKeys {
		lines = append(lines, constraint(t.ForeignKeys[i].Name, g.foreignKeyBody(&t.ForeignKeys[i])))
	}

	if t.PrimaryKey != nil && !inlinePK {
		lines = append(lines, constraint(t.PrimaryKey.Name, "PRIMARY KEY "+g.columnList(t.PrimaryKey.Columns)))
	}

	guard := &GuardTarget{Kind: GuardTable, Table: name}

	err := g.statement(b, guard, false, func(inline string) error {
		b.Append("CREATE TABLE ").Append(inline).Append(g.d.QualifyName(t.Schema, t.Name)).AppendLine(" (")
		b.IncrementIndent()

		for i, line := range lines {
			if err := line(); err != nil {
				return err
			}

			if i < len(lines)-1 {
				b.AppendLine(",")
			} else {
				b.AppendLine("")
			}
		}

		b.DecrementIndent()
		b.Append(")")

		return nil
	})
	if err != nil {
		return err
	}

	if c, ok := g.d.(Commenter); ok {
		if t.Comment != "" {
			c.TableComment(b, name, t.Comment, "")
		}

		for i := range t.Columns {
			if t.Columns[i].Comment != "" {
				c.ColumnComment(b, name, t.Columns[i].Name, t.Columns[i].Comment, "")
			}
		}
	}

	return nil
}

func (g *Generator) renameTable(b *Builder, op operations.RenameTable) error {
	if op.NewSchema != op.Schema && !g.d.Capabilities().SchemaTransfer {
		return Unsupported(g.d, op, "tables cannot move between schemas")
	}

	if err := g.checkIdentifiers(op, op.NewName); err != nil {
		return err
	}

	r, ok := g.d.(TableRenamer)
	if !ok {
		return Unsupported(g.d, op, "tables cannot be renamed")
	}

	return r.RenameTable(b, op)
}

func (g *Generator) addColumn(b *Builder, op operations.AddColumn) error {
	if err := g.checkIdentifiers(op, op.Column.Name); err != nil {
		return err
	}

	guard := &GuardTarget{Kind: GuardColumn, Table: op.Target(), Name: op.Column.Name}

	err := g.statement(b, guard, false, func(inline string) error {
		if a, ok := g.d.(ColumnAdder); ok {
			return a.AddColumn(b, op)
		}

		b.Append("ALTER TABLE ").Append(g.table(op.TableRef)).Append(" ADD COLUMN ").Append(inline)

		return g.d.ColumnDefinition(b, ColumnContext{Table: op.Target()}, &op.Column)
	})
	if err != nil {
		return err
	}

	if c, ok := g.d.(Commenter); ok && op.Column.Comment != "" {
		c.ColumnComment(b, op.Target(), op.Column.Name, op.Column.Comment, "")
	}

	return nil
}

func (g *Generator) dropColumn(b *Builder, op operations.DropColumn) error {
	if !g.d.Capabilities().DropColumn {
		return Unsupported(g.d, op, "columns cannot be dropped")
	}

	if dd, ok := g.d.(DefaultConstraintDropper); ok {
		dd.DropDefaultConstraint(b, op.Target(), op.Name)
	}

	guard := &GuardTarget{Kind: GuardColumn, Exists: true, Table: op.Target(), Name: op.Name}

	return g.statement(b, guard, false, func(inline string) error {
		b.Append("ALTER TABLE ").Append(g.table(op.TableRef)).
			Append(" DROP COLUMN ").Append(inline).Append(g.d.DelimitIdentifier(op.Name))

		return nil
	})
}

// alterColumn renders in place when the dialect can, and otherwise lowers the
// change to dropping and re-adding the column. A change that leaves the stored
// data alone only updates the comment. Dialects that rebuild tables refuse a
// stored change here: it arrives as RebuildTable when the differ targets them.
func (g *Generator) alterColumn(b *Builder, op operations.AlterColumn) error {
	caps := g.d.Capabilities()
	storage := op.Old.EqualStorage(&op.New)

	if storage && op.Old.Comment == op.New.Comment {
		return nil
	}

	if alt, ok := g.d.(ColumnAlterer); ok && caps.AlterColumn {
		scratch := NewBuilder(g.eol)

		err := alt.AlterColumn(scratch, op)
		if err == nil {
			scratch.EndCommand(false)
			b.commands = append(b.commands, scratch.Commands()...)

			return nil
		}

		if !errors.Is(err, ErrRebuildRequired) {
			return err
		}
	}

	if storage {
		if c, ok := g.d.(Commenter); ok {
			c.ColumnComment(b, op.Target(), op.New.Name, op.New.Comment, op.Old.Comment)
		}

		return nil
	}

	if _, ok := g.d.(TableRebuilder); ok {
		return Unsupported(g.d, op, "the column can only change by rebuilding the table")
	}

	if !caps.DropColumn {
		return Unsupported(g.d, op, "the column cannot be altered or rebuilt")
	}

	if err := g.dropColumn(b, operations.DropColumn{TableRef: op.TableRef, Name: op.Old.Name}); err != nil {
		return err
	}

	return g.addColumn(b, operations.AddColumn{TableRef: op.TableRef, Column: op.New})
}

// rebuildTable creates the new definition under a scratch name, copies the rows
// across, and swaps it in for the old table with foreign key enforcement off.
func (g *Generator) rebuildTable(b *Builder, op operations.RebuildTable) error {
	rb, ok := g.d.(TableRebuilder)
	if !ok {
		return Unsupported(g.d, op, "tables cannot be rebuilt")
	}

	if len(op.Sources) != len(op.New.Columns) {
		return fmt.Errorf("rebuilding %s: %d column sources for %d columns",
			op.Target(), len(op.Sources), len(op.New.Columns))
	}

	scratch := op.New.Clone()
	scratch.Schema = op.Schema
	scratch.Name = rebuildPrefix + op.Table
	scratch.Indexes = nil
	scratch.Comment = ""

	for i := range scratch.Columns {
		scratch.Columns[i].Comment = ""
	}

	rb.ForeignKeyChecks(b, false)
	b.EndCommand(true)

	if err := g.createTable(b, operations.CreateTable{Table: scratch}); err != nil {
		return err
	}

	if err := g.copyRows(b, op, scratch.Name); err != nil {
		return err
	}

	err := g.statement(b, nil, false, func(string) error {
		b.Append("DROP TABLE ").Append(g.table(op.TableRef))

		return nil
	})
	if err != nil {
		return err
	}

	err = g.renameTable(b, operations.RenameTable{
		TableRef:  operations.On(op.Schema, scratch.Name),
		NewSchema: op.Schema,
		NewName:   op.Table,
	})
	if err != nil {
		return err
	}

	rb.ForeignKeyChecks(b, true)
	b.EndCommand(true)

	return nil
}

// rebuildPrefix names the scratch table a rebuild copies rows into.
const rebuildPrefix = "_rebuild_"

// copyRows writes INSERT ... SELECT from the old table into the scratch one.
// Computed columns and columns without a source are left to the database. A
// column that becomes required takes its default where the old value is NULL.
func (g *Generator) copyRows(b *Builder, op operations.RebuildTable, into string) error {
	var targets, values []string

	for i := range op.New.Columns {
		nc := &op.New.Columns[i]

		src := op.Sources[i]
		if src == "" || nc.ComputedSQL != "" {
			continue
		}

		oc, ok := op.Old.Column(src)
		if !ok || oc.ComputedSQL != "" {
			continue
		}

		value := g.d.DelimitIdentifier(src)

		if oc.Nullable && !nc.Nullable && nc.HasDefault() {
			def, err := DefaultLiteral(g.d, nc)
			if err != nil {
				return err
			}

			value = "COALESCE(" + value + ", " + def + ")"
		}

		targets = append(targets, g.d.DelimitIdentifier(nc.Name))
		values = append(values, value)
	}

	if len(targets) == 0 {
		return nil
	}

	return g.statement(b, nil, false, func(string) error {
		b.Append("INSERT INTO ").Append(g.d.QualifyName(op.Schema, into)).
			Append(" (").Append(strings.Join(targets, ", ")).AppendLine(")")
		b.Append("SELECT ").Append(strings.Join(values, ", ")).
			Append(" FROM ").Append(g.table(op.TableRef))

		return nil
	})
}

func (g *Generator) addConstraint(b *Builder, op operations.Operation, t operations.TableRef, name, body string) error {
	if !g.d.Capabilities().AlterConstraints {
		return Unsupported(g.d, op, "constraints cannot be added to existing tables")
	}

	if err := g.checkIdentifiers(op, name); err != nil {
		return err
	}

	return g.statement(b, nil, false, func(string) error {
		b.Append("ALTER TABLE ").Append(g.table(t)).
			Append(" ADD CONSTRAINT ").Append(g.d.DelimitIdentifier(name)).Append(" ").Append(body)

		return nil
	})
}

func (g *Generator) dropConstraint(b *Builder, op operations.Operation, t operations.TableRef, name string) error {
	if !g.d.Capabilities().AlterConstraints {
		return Unsupported(g.d, op, "constraints cannot be dropped from existing tables")
	}

	clause := "CONSTRAINT " + g.d.DelimitIdentifier(name)
	if cd, ok := g.d.(ConstraintDropper); ok {
		clause = cd.DropConstraintClause(op.Kind(), name)
	}

	return g.statement(b, nil, false, func(string) error {
		b.Append("ALTER TABLE ").Append(g.table(t)).Append(" DROP ").Append(clause)

		return nil
	})
}

func (g *Generator) createIndex(b *Builder, op operations.Operation, t operations.TableRef, ix *schema.Index) error {
	if ix.Filter != "" && !g.d.Capabilities().FilteredIndexes {
		return Unsupported(g.d, op, "filtered indexes are not supported")
	}

	if err := g.checkIdentifiers(op, ix.Name); err != nil {
		return err
	}

	var opts IndexOptions
	if o, ok := g.d.(IndexOptioner); ok {
		opts = o.IndexOptions(ix)
	}

	guard := &GuardTarget{Kind: GuardIndex, Table: t.Target(), Name: ix.Name}

	return g.statement(b, guard, opts.SuppressTransaction, func(inline string) error {
		b.Append("CREATE ")

		if ix.Unique {
			b.Append("UNIQUE ")
		}

		if opts.BeforeIndex != "" {
			b.Append(opts.BeforeIndex).Append(" ")
		}

		b.Append("INDEX ")

		if opts.AfterIndex != "" {
			b.Append(opts.AfterIndex).Append(" ")
		}

		b.Append(inline).Append(g.d.DelimitIdentifier(ix.Name)).
			Append(" ON ").Append(g.table(t)).Append(" ").Append(g.columnList(ix.Columns))

		if ix.Filter != "" {
			b.Append(" WHERE ").Append(ix.Filter)
		}

		return nil
	})
}

func (g *Generator) dropIndex(b *Builder, t operations.TableRef, name string) error {
	guard := &GuardTarget{Kind: GuardIndex, Exists: true, Table: t.Target(), Name: name}

	return g.statement(b, guard, false, func(inline string) error {
		b.Append("DROP INDEX ").Append(inline)

		if g.d.Capabilities().IndexScopedToTable {
			b.Append(g.d.DelimitIdentifier(name)).Append(" ON ").Append(g.table(t))
		} else {
			b.Append(g.d.QualifyName(t.Schema, name))
		}

		return nil
	})
}

func (g *Generator) createSequence(b *Builder, op operations.Operation, s *schema.Sequence) error {
	if !g.d.Capabilities().Sequences {
		return Unsupported(g.d, op, "sequences are not supported")
	}

	storeType, err := g.d.StoreType(s.Type)
	if err != nil {
		return fmt.Errorf("sequence %s: %w", s.Name, err)
	}

	guard := &GuardTarget{
		Kind:  GuardSequence,
		Table: schema.QualifiedName{Schema: s.Schema, Name: s.Name},
		Name:  s.Name,
	}

	return g.statement(b, guard, false, func(inline string) error {
		b.Append("CREATE SEQUENCE ").Append(inline).Append(g.d.QualifyName(s.Schema, s.Name)).
			Append(" AS ").Append(storeType).
			Append(" START WITH ").Append(strconv.FormatInt(s.StartValue, 10))
		g.sequenceOptions(b, s)

		return nil
	})
}

func (g *Generator) sequenceOptions(b *Builder, s *schema.Sequence) {
	b.Append(" INCREMENT BY ").Append(strconv.FormatInt(s.IncrementBy, 10))

	if s.MinValue != nil {
		b.Append(" MINVALUE ").Append(strconv.FormatInt(*s.MinValue, 10))
	} else {
		b.Append(" NO MINVALUE")
	}

	if s.MaxValue != nil {
		b.Append(" MAXVALUE ").Append(strconv.FormatInt(*s.MaxValue, 10))
	} else {
		b.Append(" NO MAXVALUE")
	}

	if s.Cyclic {
		b.Append(" CYCLE")
	} else {
		b.Append(" NO CYCLE")
	}
}

func (g *Generator) alterSequence(b *Builder, op operations.Operation, o operations.AlterSequence) error {
	if !g.d.Capabilities().Sequences {
		return Unsupported(g.d, op, "sequences are not supported")
	}

	name := g.d.QualifyName(o.New.Schema, o.New.Name)

	if o.New.StartValue != o.Old.StartValue {
		err := g.statement(b, nil, false, func(string) error {
			b.Append("ALTER SEQUENCE ").Append(name).
				Append(" RESTART WITH ").Append(strconv.FormatInt(o.New.StartValue, 10))

			return nil
		})
		if err != nil {
			return err
		}
	}

	restarted := o.Old
	restarted.StartValue = o.New.StartValue

	if restarted.Equal(&o.New) {
		return nil
	}

	return g.statement(b, nil, false, func(string) error {
		b.Append("ALTER SEQUENCE ").Append(name)
		g.sequenceOptions(b, &o.New)

		return nil
	})
}
