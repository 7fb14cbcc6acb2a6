package sqlgen

import (
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// Capabilities describes what a dialect can express.
type Capabilities struct {
	Schemas             bool
	SchemaTransfer      bool
	TransactionalDDL    bool
	AlterColumn         bool
	DropColumn          bool
	AlterConstraints    bool
	Sequences           bool
	BatchStatements     bool // several commands may share one executed batch
	IndexScopedToTable  bool // DROP INDEX names the table
	FilteredIndexes     bool
	MaxIdentifierLength int // 0 means unlimited
}

// ColumnContext tells a dialect where a column definition is being rendered.
type ColumnContext struct {
	Table schema.QualifiedName
	// PrimaryKey is set when the dialect inlines the table's primary key into
	// this CREATE TABLE.
	PrimaryKey *schema.Key
}

// Dialect is the capability set the generator renders through. New databases
// are supported by implementing Dialect plus any optional interfaces below.
type Dialect interface {
	Name() string
	Capabilities() Capabilities
	DelimitIdentifier(name string) string
	// QualifyName delimits and joins schema and name. An empty schema is omitted.
	QualifyName(schemaName, name string) string
	StringLiteral(s string) string
	Literal(v schema.Value, t schema.ColumnType) (string, error)
	StoreType(t schema.ColumnType) (string, error)
	// ColumnDefinition writes the column as it appears in CREATE TABLE and
	// ALTER TABLE ADD, name first.
	ColumnDefinition(b *Builder, ctx ColumnContext, c *schema.Column) error
	// EnsureSchema writes a statement, without terminator, creating the schema
	// when it is absent.
	EnsureSchema(b *Builder, name string)
	StatementTerminator() string
	// BatchTerminator separates batches in scripts, "" when the dialect has none.
	BatchTerminator() string
}

// TableRenamer renders RenameTable, including moves between schemas.
type TableRenamer interface {
	RenameTable(b *Builder, op operations.RenameTable) error
}

// ColumnRenamer overrides the ALTER TABLE ... RENAME COLUMN form.
type ColumnRenamer interface {
	RenameColumn(b *Builder, op operations.RenameColumn) error
}

// IndexRenamer renders RenameIndex. Without it an index is dropped and
// recreated under the new name.
type IndexRenamer interface {
	RenameIndex(b *Builder, op operations.RenameIndex) error
}

// ColumnAlterer renders AlterColumn in place, or returns ErrRebuildRequired.
type ColumnAlterer interface {
	AlterColumn(b *Builder, op operations.AlterColumn) error
}

// CoveredColumnAlterer reports column changes the database refuses while an
// index, key, or foreign key covers the column.
type CoveredColumnAlterer interface {
	AlterBlockedByIndex(old, new *schema.Column) bool
}

// TableRebuilder marks dialects that change the columns and constraints of an
// existing table by recreating it. ForeignKeyChecks writes the statement that
// switches enforcement off before the copy and back on after it; both run
// outside the transaction.
type TableRebuilder interface {
	ForeignKeyChecks(b *Builder, on bool)
}

// ColumnAdder overrides the ALTER TABLE ... ADD COLUMN form. It writes the
// statement without terminator.
type ColumnAdder interface {
	AddColumn(b *Builder, op operations.AddColumn) error
}

// Commenter writes table and column comment statements. Writing nothing is
// allowed when comments travel inside column definitions.
type Commenter interface {
	TableComment(b *Builder, table schema.QualifiedName, comment, old string)
	ColumnComment(b *Builder, table schema.QualifiedName, column, comment, old string)
}

// DefaultConstraintDropper writes the statements removing a column's default
// constraint, needed before the column can be dropped or altered.
type DefaultConstraintDropper interface {
	DropDefaultConstraint(b *Builder, table schema.QualifiedName, column string)
}

// ConstraintDropper overrides the DROP CONSTRAINT clause for a kind of
// constraint, for example DROP FOREIGN KEY.
type ConstraintDropper interface {
	DropConstraintClause(kind operations.Kind, name string) string
}

// PrimaryKeyInliner reports whether the primary key of a new table is written
// inside a column definition instead of as a trailing constraint.
type PrimaryKeyInliner interface {
	InlinePrimaryKey(t *schema.Table) bool
}

// SQLInspector detects raw SQL that must run outside a transaction.
type SQLInspector interface {
	RequiresNoTransaction(sql string) bool
}

// IndexOptions are dialect words placed around the INDEX keyword.
type IndexOptions struct {
	BeforeIndex         string // e.g. NONCLUSTERED
	AfterIndex          string // e.g. CONCURRENTLY
	SuppressTransaction bool
}

// IndexOptioner derives IndexOptions from an index's annotations.
type IndexOptioner interface {
	IndexOptions(ix *schema.Index) IndexOptions
}

// GuardKind is the kind of object an existence guard checks.
type GuardKind int

// Guarded object kinds.
const (
	GuardTable GuardKind = iota
	GuardColumn
	GuardIndex
	GuardSequence
)

// GuardStyle is how a dialect makes a statement idempotent.
type GuardStyle int

const (
	// GuardNone leaves the statement unguarded.
	GuardNone GuardStyle = iota
	// GuardInline adds IF [NOT] EXISTS inside the statement.
	GuardInline
	// GuardBlock wraps the statement in a conditional block.
	GuardBlock
)

// GuardTarget identifies the object a guard checks. Exists is true when the
// statement should only run if the object exists, as for drops.
type GuardTarget struct {
	Kind   GuardKind
	Exists bool
	Table  schema.QualifiedName
	Name   string // column or index name; the sequence name for GuardSequence
}

// Guarder renders existence guards for idempotent scripts.
type Guarder interface {
	GuardStyle(t GuardTarget) GuardStyle
	// BeginGuard and EndGuard bracket a statement for GuardBlock.
	BeginGuard(b *Builder, t GuardTarget)
	EndGuard(b *Builder)
}
