package schema

// ReferentialAction is the action taken on dependent rows when a principal row
// is deleted or updated.
type ReferentialAction int

// Referential actions.
const (
	NoAction ReferentialAction = iota
	Restrict
	Cascade
	SetNull
	SetDefault
)

// String returns the SQL keyword form.
func (a ReferentialAction) String() string {
	switch a {
	case Restrict:
		return "RESTRICT"
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

// Snapshot is an immutable description of a relational schema at one point in time.
// Values are built by Builder or decoded from YAML and must not be modified afterwards.
type Snapshot struct {
	Tables      []Table
	Sequences   []Sequence
	Annotations Annotations
}

// Table describes one table.
type Table struct {
	Schema            string // empty means the default schema
	Name              string
	Columns           []Column
	PrimaryKey        *Key
	UniqueConstraints []Key
	ForeignKeys       []ForeignKey
	Indexes           []Index
	CheckConstraints  []CheckConstraint
	Comment           string
	Annotations       Annotations
}

// Column describes one table column.
type Column struct {
	Name         string
	Type         ColumnType
	StoreType    string // native type; overrides the dialect's mapping of Type when set
	Nullable     bool
	DefaultValue *Value
	DefaultSQL   string
	ComputedSQL  string
	Stored       bool // computed value is persisted
	Identity     bool
	Collation    string
	Comment      string
	Annotations  Annotations
}

// Key is a primary key or unique constraint.
type Key struct {
	Name        string
	Columns     []string
	Annotations Annotations
}

// ForeignKey references a key of a principal table.
type ForeignKey struct {
	Name             string
	Columns          []string
	PrincipalSchema  string
	PrincipalTable   string
	PrincipalColumns []string
	OnDelete         ReferentialAction
	OnUpdate         ReferentialAction
}

// Index is a (possibly unique, possibly filtered) table index.
type Index struct {
	Name        string
	Columns     []string
	Unique      bool
	Filter      string
	Annotations Annotations
}

// CheckConstraint is a named boolean SQL expression over a row.
type CheckConstraint struct {
	Name string
	SQL  string
}

// Sequence is a standalone number generator.
type Sequence struct {
	Schema      string
	Name        string
	Type        ColumnType
	StartValue  int64
	IncrementBy int64
	MinValue    *int64
	MaxValue    *int64
	Cyclic      bool
}

// QualifiedName returns the table's schema-qualified identity.
func (t *Table) QualifiedName() QualifiedName {
	return QualifiedName{Schema: t.Schema, Name: t.Name}
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}

	return nil, false
}

// ColumnIndex returns the ordinal of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}

	return -1
}

// HasKey reports whether cols exactly match the primary key or a unique constraint.
func (t *Table) HasKey(cols []string) bool {
	if t.PrimaryKey != nil && equalStrings(t.PrimaryKey.Columns, cols) {
		return true
	}

	for i := range t.UniqueConstraints {
		if equalStrings(t.UniqueConstraints[i].Columns, cols) {
			return true
		}
	}

	return false
}

// Table returns the table with the given identity.
func (s *Snapshot) Table(schema, name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}

	for i := range s.Tables {
		if s.Tables[i].Schema == schema && s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}

	return nil, false
}

// Sequence returns the sequence with the given identity.
func (s *Snapshot) Sequence(schema, name string) (*Sequence, bool) {
	if s == nil {
		return nil, false
	}

	for i := range s.Sequences {
		if s.Sequences[i].Schema == schema && s.Sequences[i].Name == name {
			return &s.Sequences[i], true
		}
	}

	return nil, false
}

// Schemas returns the distinct non-empty schema names used by tables and
// sequences, in declaration order.
func (s *Snapshot) Schemas() []string {
	if s == nil {
		return nil
	}

	var out []string

	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}

		seen[name] = true
		out = append(out, name)
	}

	for i := range s.Tables {
		add(s.Tables[i].Schema)
	}

	for i := range s.Sequences {
		add(s.Sequences[i].Schema)
	}

	return out
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	c := &Snapshot{Annotations: s.Annotations.Clone()}

	if s.Tables != nil {
		c.Tables = make([]Table, len(s.Tables))
		for i := range s.Tables {
			c.Tables[i] = s.Tables[i].Clone()
		}
	}

	if s.Sequences != nil {
		c.Sequences = make([]Sequence, len(s.Sequences))
		for i := range s.Sequences {
			c.Sequences[i] = s.Sequences[i].Clone()
		}
	}

	return c
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	c := t
	c.Annotations = t.Annotations.Clone()

	if t.Columns != nil {
		c.Columns = make([]Column, len(t.Columns))
		for i := range t.Columns {
			c.Columns[i] = t.Columns[i].Clone()
		}
	}

	if t.PrimaryKey != nil {
		pk := t.PrimaryKey.Clone()
		c.PrimaryKey = &pk
	}

	c.UniqueConstraints = cloneSlice(t.UniqueConstraints, Key.Clone)
	c.ForeignKeys = cloneSlice(t.ForeignKeys, ForeignKey.Clone)
	c.Indexes = cloneSlice(t.Indexes, Index.Clone)
	c.CheckConstraints = cloneSlice(t.CheckConstraints, func(cc CheckConstraint) CheckConstraint { return cc })

	return c
}

// Clone returns a deep copy.
func (c Column) Clone() Column {
	out := c
	out.DefaultValue = cloneValuePtr(c.DefaultValue)
	out.Annotations = c.Annotations.Clone()

	return out
}

// Clone returns a deep copy.
func (k Key) Clone() Key {
	out := k
	out.Columns = cloneStrings(k.Columns)
	out.Annotations = k.Annotations.Clone()

	return out
}

// Clone returns a deep copy.
func (fk ForeignKey) Clone() ForeignKey {
	out := fk
	out.Columns = cloneStrings(fk.Columns)
	out.PrincipalColumns = cloneStrings(fk.PrincipalColumns)

	return out
}

// Clone returns a deep copy.
func (ix Index) Clone() Index {
	out := ix
	out.Columns = cloneStrings(ix.Columns)
	out.Annotations = ix.Annotations.Clone()

	return out
}

// Clone returns a deep copy.
func (s Sequence) Clone() Sequence {
	out := s

	if s.MinValue != nil {
		v := *s.MinValue
		out.MinValue = &v
	}

	if s.MaxValue != nil {
		v := *s.MaxValue
		out.MaxValue = &v
	}

	return out
}

// Equal reports whether two column definitions are identical, name included.
func (c *Column) Equal(o *Column) bool {
	return c.Name == o.Name && c.EqualDefinition(o)
}

// EqualDefinition reports whether two columns are identical apart from their names.
func (c *Column) EqualDefinition(o *Column) bool {
	return c.EqualStorage(o) &&
		c.Comment == o.Comment &&
		c.Annotations.Equal(o.Annotations)
}

// EqualStorage reports whether two columns store the same data the same way:
// names, comments, and annotations are ignored.
func (c *Column) EqualStorage(o *Column) bool {
	return c.Type == o.Type &&
		c.StoreType == o.StoreType &&
		c.Nullable == o.Nullable &&
		equalValuePtr(c.DefaultValue, o.DefaultValue) &&
		c.DefaultSQL == o.DefaultSQL &&
		c.ComputedSQL == o.ComputedSQL &&
		c.Stored == o.Stored &&
		c.Identity == o.Identity &&
		c.Collation == o.Collation
}

// HasDefault reports whether the column has a literal or SQL default.
func (c *Column) HasDefault() bool {
	return c.DefaultValue != nil || c.DefaultSQL != ""
}

// Equal compares keys including names.
func (k *Key) Equal(o *Key) bool {
	return k.Name == o.Name && equalStrings(k.Columns, o.Columns) && k.Annotations.Equal(o.Annotations)
}

// Equal compares foreign keys including names.
func (fk *ForeignKey) Equal(o *ForeignKey) bool {
	return fk.Name == o.Name &&
		equalStrings(fk.Columns, o.Columns) &&
		fk.PrincipalSchema == o.PrincipalSchema &&
		fk.PrincipalTable == o.PrincipalTable &&
		equalStrings(fk.PrincipalColumns, o.PrincipalColumns) &&
		fk.OnDelete == o.OnDelete &&
		fk.OnUpdate == o.OnUpdate
}

// Equal compares indexes including names.
func (ix *Index) Equal(o *Index) bool {
	return ix.Name == o.Name && ix.EqualDefinition(o)
}

// EqualDefinition compares indexes ignoring their names.
func (ix *Index) EqualDefinition(o *Index) bool {
	return equalStrings(ix.Columns, o.Columns) &&
		ix.Unique == o.Unique &&
		ix.Filter == o.Filter &&
		ix.Annotations.Equal(o.Annotations)
}

// Equal compares sequences including identity.
func (s *Sequence) Equal(o *Sequence) bool {
	return s.Schema == o.Schema && s.Name == o.Name &&
		s.Type == o.Type &&
		s.StartValue == o.StartValue &&
		s.IncrementBy == o.IncrementBy &&
		equalInt64Ptr(s.MinValue, o.MinValue) &&
		equalInt64Ptr(s.MaxValue, o.MaxValue) &&
		s.Cyclic == o.Cyclic
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}

	return append([]string(nil), s...)
}

func cloneSlice[T any](s []T, clone func(T) T) []T {
	if s == nil {
		return nil
	}

	out := make([]T, len(s))
	for i := range s {
		out[i] = clone(s[i])
	}

	return out
}
