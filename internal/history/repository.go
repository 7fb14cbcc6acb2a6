// Package history generates the scripts that maintain the migrations history
// table, the bookkeeping table recording which migrations a database has had
// applied. The repository holds configuration only and opens no connections.
package history

import (
	"fmt"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/differ"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
)

// History table layout.
const (
	DefaultProduct       = "EF"
	MigrationIDColumn    = "MigrationId"
	ProductVersionColumn = "ProductVersion"
	MigrationIDLength    = 150
	ProductVersionLength = 32
)

// Row is one applied migration.
type Row struct {
	MigrationID    string
	ProductVersion string
}

// Guards are the dialect constructs the repository needs besides the
// generator's.
type Guards interface {
	// CreateIfNotExists makes the create script a no-op when table exists.
	CreateIfNotExists(table schema.QualifiedName, createScript, eol string) string
	// ExistsQuery returns a query yielding a positive count when table exists.
	ExistsQuery(table schema.QualifiedName) string
}

// ConditionalBlocks is implemented by dialects that can run a script section
// only when a query finds (or does not find) a row.
type ConditionalBlocks interface {
	BeginIf(exists bool, query, eol string) (string, error)
	EndIf(eol string) (string, error)
}

// Dialect is a SQL dialect able to host a history table.
type Dialect interface {
	sqlgen.Dialect
	Guards
}

// Repository renders history table scripts for one dialect and table.
type Repository struct {
	d         Dialect
	schema    string
	table     string
	tableSet  bool
	product   string
	eol       string
	create    string
	qualified string
}

// Option configures a Repository.
type Option func(*Repository)

// WithSchema places the history table in a schema.
func WithSchema(name string) Option {
	return func(r *Repository) { r.schema = name }
}

// WithTableName overrides the default table name.
func WithTableName(name string) Option {
	return func(r *Repository) {
		r.table = name
		r.tableSet = true
	}
}

// WithProduct sets the product tag used in the default table name.
func WithProduct(product string) Option {
	return func(r *Repository) { r.product = product }
}

// WithEOL sets the line terminator. The default is "\n".
func WithEOL(eol string) Option {
	return func(r *Repository) {
		if eol != "" {
			r.eol = eol
		}
	}
}

// New validates the configuration and prepares the create script, which is
// rendered by diffing an empty model against the history table model.
func New(d Dialect, opts ...Option) (*Repository, error) {
	r := &Repository{d: d, product: DefaultProduct, eol: "\n"}

	for _, opt := range opts {
		opt(r)
	}

	if !r.tableSet {
		r.table = "__" + r.product + "MigrationsHistory"
	}

	if err := r.validate(); err != nil {
		return nil, err
	}

	ops, err := differ.Diff(nil, r.Model())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	cmds, err := sqlgen.New(d, sqlgen.WithEOL(r.eol)).Generate(ops)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	var sb strings.Builder
	for _, c := range cmds {
		sb.WriteString(c.SQL)
	}

	r.create = sb.String()
	r.qualified = d.QualifyName(r.schema, r.table)

	return r, nil
}

func (r *Repository) validate() error {
	caps := r.d.Capabilities()

	switch {
	case strings.TrimSpace(r.table) == "":
		return fmt.Errorf("%w: table name is empty", ErrInvalidConfiguration)
	case r.schema != "" && !caps.Schemas:
		return fmt.Errorf("%w: %s does not support schemas (schema %q)", ErrInvalidConfiguration, r.d.Name(), r.schema)
	}

	if limit := caps.MaxIdentifierLength; limit > 0 {
		for _, name := range []string{r.schema, r.table} {
			if len(name) > limit {
				return fmt.Errorf("%w: identifier %q is longer than %d characters", ErrInvalidConfiguration, name, limit)
			}
		}
	}

	return nil
}

// Table returns the history table's identity.
func (r *Repository) Table() schema.QualifiedName {
	return schema.QualifiedName{Schema: r.schema, Name: r.table}
}

// Model returns the history table as a snapshot. Its primary key is named
// after the table alone, even when a schema is configured.
func (r *Repository) Model() *schema.Snapshot {
	return schema.NewBuilder().
		Table(r.schema, r.table, func(t *schema.TableBuilder) {
			t.Column(MigrationIDColumn, schema.String(MigrationIDLength))
			t.Column(ProductVersionColumn, schema.String(ProductVersionLength))
			t.PrimaryKey(MigrationIDColumn).Named(schema.PrimaryKeyName("", r.table))
		}).
		MustBuild()
}

// GetCreateScript creates the history table, and its schema when configured.
func (r *Repository) GetCreateScript() string {
	return r.create
}

// GetCreateIfNotExistsScript creates the history table only when it is absent.
func (r *Repository) GetCreateIfNotExistsScript() string {
	return r.d.CreateIfNotExists(r.Table(), r.create, r.eol)
}

// GetInsertScript records row as applied.
func (r *Repository) GetInsertScript(row Row) string {
	return "INSERT INTO " + r.qualified + " (" +
		r.d.DelimitIdentifier(MigrationIDColumn) + ", " + r.d.DelimitIdentifier(ProductVersionColumn) + ")" + r.eol +
		"VALUES (" + r.d.StringLiteral(row.MigrationID) + ", " + r.d.StringLiteral(row.ProductVersion) + ")" +
		r.d.StatementTerminator() + r.eol
}

// GetDeleteScript removes the record of one migration.
func (r *Repository) GetDeleteScript(migrationID string) string {
	return "DELETE FROM " + r.qualified + r.eol +
		"WHERE " + r.idEquals(migrationID) + r.d.StatementTerminator() + r.eol
}

// GetBeginIfNotExistsScript opens a block that runs only when the migration
// has not been applied.
func (r *Repository) GetBeginIfNotExistsScript(migrationID string) (string, error) {
	return r.beginIf(false, migrationID)
}

// GetBeginIfExistsScript opens a block that runs only when the migration has
// been applied.
func (r *Repository) GetBeginIfExistsScript(migrationID string) (string, error) {
	return r.beginIf(true, migrationID)
}

// GetEndIfScript closes a block opened by either Begin script.
func (r *Repository) GetEndIfScript() (string, error) {
	cb, err := r.blocks()
	if err != nil {
		return "", err
	}

	return cb.EndIf(r.eol)
}

// ExistsScript returns a query counting tables named like the history table.
func (r *Repository) ExistsScript() string {
	return r.d.ExistsQuery(r.Table())
}

// GetAppliedMigrationsScript lists applied migrations in id order.
func (r *Repository) GetAppliedMigrationsScript() string {
	id := r.d.DelimitIdentifier(MigrationIDColumn)

	return "SELECT " + id + ", " + r.d.DelimitIdentifier(ProductVersionColumn) + r.eol +
		"FROM " + r.qualified + r.eol +
		"ORDER BY " + id + r.d.StatementTerminator() + r.eol
}

func (r *Repository) beginIf(exists bool, migrationID string) (string, error) {
	cb, err := r.blocks()
	if err != nil {
		return "", err
	}

	return cb.BeginIf(exists, "SELECT * FROM "+r.qualified+" WHERE "+r.idEquals(migrationID), r.eol)
}

func (r *Repository) blocks() (ConditionalBlocks, error) {
	cb, ok := r.d.(ConditionalBlocks)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConditionalBlocksUnsupported, r.d.Name())
	}

	return cb, nil
}

func (r *Repository) idEquals(migrationID string) string {
	return r.d.DelimitIdentifier(MigrationIDColumn) + " = " + r.d.StringLiteral(migrationID)
}
