package schema

import "fmt"

// Builder assembles a Snapshot. Build returns a validated deep copy, so a
// builder can keep being used without affecting snapshots it already produced.
type Builder struct {
	tables      []*TableBuilder
	sequences   []*SequenceBuilder
	annotations Annotations
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Table declares a table and lets fn populate it.
func (b *Builder) Table(schemaName, name string, fn func(*TableBuilder)) *Builder {
	tb := &TableBuilder{t: Table{Schema: schemaName, Name: name}}
	if fn != nil {
		fn(tb)
	}

	b.tables = append(b.tables, tb)

	return b
}

// Sequence declares a sequence. The defaults are int64, start 1, increment 1.
func (b *Builder) Sequence(schemaName, name string, fn func(*SequenceBuilder)) *Builder {
	sb := &SequenceBuilder{s: Sequence{
		Schema:      schemaName,
		Name:        name,
		Type:        Int64(),
		StartValue:  1,
		IncrementBy: 1,
	}}
	if fn != nil {
		fn(sb)
	}

	b.sequences = append(b.sequences, sb)

	return b
}

// Annotate sets a model-level annotation.
func (b *Builder) Annotate(key string, v Value) *Builder {
	if b.annotations == nil {
		b.annotations = make(Annotations)
	}

	b.annotations[key] = v

	return b
}

// Build assigns default names, validates, and returns the finished snapshot.
func (b *Builder) Build() (*Snapshot, error) {
	s := &Snapshot{Annotations: b.annotations.Clone()}

	for _, tb := range b.tables {
		t := tb.t.Clone()
		assignDefaultNames(&t)
		s.Tables = append(s.Tables, t)
	}

	for _, sb := range b.sequences {
		s.Sequences = append(s.Sequences, sb.s.Clone())
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}

	return s, nil
}

// MustBuild is Build for statically known models; it panics on invalid input.
func (b *Builder) MustBuild() *Snapshot {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}

	return s
}

// TableBuilder populates one table.
type TableBuilder struct {
	t Table
}

// Column appends a column with the given logical type.
func (tb *TableBuilder) Column(name string, typ ColumnType) *ColumnBuilder {
	tb.t.Columns = append(tb.t.Columns, Column{Name: name, Type: typ})

	return &ColumnBuilder{tb: tb, i: len(tb.t.Columns) - 1}
}

// PrimaryKey sets the primary key.
func (tb *TableBuilder) PrimaryKey(cols ...string) *KeyBuilder {
	tb.t.PrimaryKey = &Key{Columns: cols}

	return &KeyBuilder{key: func() *Key { return tb.t.PrimaryKey }}
}

// Unique adds a unique constraint.
func (tb *TableBuilder) Unique(cols ...string) *KeyBuilder {
	tb.t.UniqueConstraints = append(tb.t.UniqueConstraints, Key{Columns: cols})
	i := len(tb.t.UniqueConstraints) - 1

	return &KeyBuilder{key: func() *Key { return &tb.t.UniqueConstraints[i] }}
}

// ForeignKey adds a foreign key referencing principal columns of another table.
func (tb *TableBuilder) ForeignKey(cols []string, principalSchema, principalTable string, principalCols ...string) *ForeignKeyBuilder {
	tb.t.ForeignKeys = append(tb.t.ForeignKeys, ForeignKey{
		Columns:          cols,
		PrincipalSchema:  principalSchema,
		PrincipalTable:   principalTable,
		PrincipalColumns: principalCols,
	})

	return &ForeignKeyBuilder{tb: tb, i: len(tb.t.ForeignKeys) - 1}
}

// Index adds an index.
func (tb *TableBuilder) Index(cols ...string) *IndexBuilder {
	tb.t.Indexes = append(tb.t.Indexes, Index{Columns: cols})

	return &IndexBuilder{tb: tb, i: len(tb.t.Indexes) - 1}
}

// Check adds a check constraint. An empty name gets the default CK_ name.
func (tb *TableBuilder) Check(name, sql string) *TableBuilder {
	tb.t.CheckConstraints = append(tb.t.CheckConstraints, CheckConstraint{Name: name, SQL: sql})

	return tb
}

// Comment sets the table comment.
func (tb *TableBuilder) Comment(c string) *TableBuilder {
	tb.t.Comment = c

	return tb
}

// Annotate sets a table annotation.
func (tb *TableBuilder) Annotate(key string, v Value) *TableBuilder {
	tb.t.Annotations = annotate(tb.t.Annotations, key, v)

	return tb
}

// ColumnBuilder refines the most recently declared column.
type ColumnBuilder struct {
	tb *TableBuilder
	i  int
}

func (cb *ColumnBuilder) col() *Column { return &cb.tb.t.Columns[cb.i] }

// Nullable marks the column as accepting nulls.
func (cb *ColumnBuilder) Nullable() *ColumnBuilder {
	cb.col().Nullable = true

	return cb
}

// Default sets a literal default value.
func (cb *ColumnBuilder) Default(v Value) *ColumnBuilder {
	c := v.clone()
	cb.col().DefaultValue = &c

	return cb
}

// DefaultSQL sets a default SQL expression.
func (cb *ColumnBuilder) DefaultSQL(sql string) *ColumnBuilder {
	cb.col().DefaultSQL = sql

	return cb
}

// Computed makes the column computed from sql, persisted when stored is true.
func (cb *ColumnBuilder) Computed(sql string, stored bool) *ColumnBuilder {
	c := cb.col()
	c.ComputedSQL = sql
	c.Stored = stored

	return cb
}

// Identity marks the column as database generated on insert.
func (cb *ColumnBuilder) Identity() *ColumnBuilder {
	cb.col().Identity = true

	return cb
}

// StoreType sets the native type, bypassing the dialect's type mapping.
func (cb *ColumnBuilder) StoreType(t string) *ColumnBuilder {
	cb.col().StoreType = t

	return cb
}

// Collation sets the column collation.
func (cb *ColumnBuilder) Collation(c string) *ColumnBuilder {
	cb.col().Collation = c

	return cb
}

// Comment sets the column comment.
func (cb *ColumnBuilder) Comment(c string) *ColumnBuilder {
	cb.col().Comment = c

	return cb
}

// Annotate sets a column annotation.
func (cb *ColumnBuilder) Annotate(key string, v Value) *ColumnBuilder {
	c := cb.col()
	c.Annotations = annotate(c.Annotations, key, v)

	return cb
}

// KeyBuilder refines a primary key or unique constraint.
type KeyBuilder struct {
	key func() *Key
}

// Named overrides the default constraint name.
func (kb *KeyBuilder) Named(name string) *KeyBuilder {
	kb.key().Name = name

	return kb
}

// Annotate sets a key annotation.
func (kb *KeyBuilder) Annotate(key string, v Value) *KeyBuilder {
	k := kb.key()
	k.Annotations = annotate(k.Annotations, key, v)

	return kb
}

// ForeignKeyBuilder refines a foreign key.
type ForeignKeyBuilder struct {
	tb *TableBuilder
	i  int
}

func (fb *ForeignKeyBuilder) fk() *ForeignKey { return &fb.tb.t.ForeignKeys[fb.i] }

// Named overrides the default constraint name.
func (fb *ForeignKeyBuilder) Named(name string) *ForeignKeyBuilder {
	fb.fk().Name = name

	return fb
}

// OnDelete sets the delete action.
func (fb *ForeignKeyBuilder) OnDelete(a ReferentialAction) *ForeignKeyBuilder {
	fb.fk().OnDelete = a

	return fb
}

// OnUpdate sets the update action.
func (fb *ForeignKeyBuilder) OnUpdate(a ReferentialAction) *ForeignKeyBuilder {
	fb.fk().OnUpdate = a

	return fb
}

// IndexBuilder refines an index.
type IndexBuilder struct {
	tb *TableBuilder
	i  int
}

func (ib *IndexBuilder) ix() *Index { return &ib.tb.t.Indexes[ib.i] }

// Named overrides the default index name.
func (ib *IndexBuilder) Named(name string) *IndexBuilder {
	ib.ix().Name = name

	return ib
}

// Unique marks the index unique.
func (ib *IndexBuilder) Unique() *IndexBuilder {
	ib.ix().Unique = true

	return ib
}

// Filter sets the partial index predicate.
func (ib *IndexBuilder) Filter(sql string) *IndexBuilder {
	ib.ix().Filter = sql

	return ib
}

// Annotate sets an index annotation.
func (ib *IndexBuilder) Annotate(key string, v Value) *IndexBuilder {
	ix := ib.ix()
	ix.Annotations = annotate(ix.Annotations, key, v)

	return ib
}

// SequenceBuilder populates a sequence.
type SequenceBuilder struct {
	s Sequence
}

// Type sets the sequence's numeric type.
func (sb *SequenceBuilder) Type(t ColumnType) *SequenceBuilder {
	sb.s.Type = t

	return sb
}

// StartAt sets the first value.
func (sb *SequenceBuilder) StartAt(v int64) *SequenceBuilder {
	sb.s.StartValue = v

	return sb
}

// IncrementBy sets the step.
func (sb *SequenceBuilder) IncrementBy(v int64) *SequenceBuilder {
	sb.s.IncrementBy = v

	return sb
}

// Min sets the lower bound.
func (sb *SequenceBuilder) Min(v int64) *SequenceBuilder {
	sb.s.MinValue = &v

	return sb
}

// Max sets the upper bound.
func (sb *SequenceBuilder) Max(v int64) *SequenceBuilder {
	sb.s.MaxValue = &v

	return sb
}

// Cyclic makes the sequence wrap around at its bounds.
func (sb *SequenceBuilder) Cyclic() *SequenceBuilder {
	sb.s.Cyclic = true

	return sb
}

func annotate(a Annotations, key string, v Value) Annotations {
	if a == nil {
		a = make(Annotations)
	}

	a[key] = v.clone()

	return a
}
