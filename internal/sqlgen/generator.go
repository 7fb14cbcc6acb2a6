// Package sqlgen renders migration operations as dialect SQL. The generator
// holds the rendering shared by all dialects; each dialect package supplies a
// Dialect plus the optional interfaces for the syntax it does differently.
package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// Generator renders operations for one dialect. It holds only configuration
// and is safe for concurrent use.
type Generator struct {
	d          Dialect
	idempotent bool
	eol        string
}

// Option configures a Generator.
type Option func(*Generator)

// WithIdempotent guards creates and drops with existence checks.
func WithIdempotent(on bool) Option {
	return func(g *Generator) { g.idempotent = on }
}

// WithEOL sets the line terminator. The default is "\n".
func WithEOL(eol string) Option {
	return func(g *Generator) {
		if eol != "" {
			g.eol = eol
		}
	}
}

// New creates a Generator for d.
func New(d Dialect, opts ...Option) *Generator {
	g := &Generator{d: d, eol: "\n"}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Dialect returns the dialect the generator renders for.
func (g *Generator) Dialect() Dialect {
	return g.d
}

// EOL returns the configured line terminator.
func (g *Generator) EOL() string {
	return g.eol
}

// SupportsSchemaTransfer reports whether tables can move between schemas in
// place. It lets a Generator serve as the differ's target.
func (g *Generator) SupportsSchemaTransfer() bool {
	return g.d.Capabilities().SchemaTransfer
}

// RebuildsTables reports whether column and constraint changes to existing
// tables are made by recreating the table.
func (g *Generator) RebuildsTables() bool {
	_, ok := g.d.(TableRebuilder)

	return ok
}

// AlterNeedsIndexRebuild reports whether the indexes, keys, and foreign keys
// covering a column must be dropped before old is altered into new and
// created again afterwards.
func (g *Generator) AlterNeedsIndexRebuild(old, new *schema.Column) bool {
	if old.EqualStorage(new) || g.RebuildsTables() {
		return false
	}

	if old.Type != new.Type || old.StoreType != new.StoreType {
		return true
	}

	alt, ok := g.d.(ColumnAlterer)
	if !ok || !g.d.Capabilities().AlterColumn {
		return true
	}

	renamed := old.Clone()
	renamed.Name = new.Name

	if err := alt.AlterColumn(NewBuilder(g.eol), operations.AlterColumn{Old: renamed, New: new.Clone()}); errors.Is(err, ErrRebuildRequired) {
		return true
	}

	cc, ok := g.d.(CoveredColumnAlterer)

	return ok && cc.AlterBlockedByIndex(old, new)
}

// Generate renders ops in order. Each operation renders completely or the
// whole call fails and no commands are returned.
func (g *Generator) Generate(ops []operations.Operation) ([]Command, error) {
	caps := g.d.Capabilities()

	var out []Command

	for _, op := range ops {
		b := NewBuilder(g.eol)

		if err := g.render(b, op); err != nil {
			return nil, fmt.Errorf("generating %s: %w", operations.Describe(op), err)
		}

		b.EndCommand(false)

		for _, c := range b.Commands() {
			c.Operation = op
			c.Boundary = BoundaryBatchable

			if !caps.BatchStatements || c.SuppressTransaction {
				c.Boundary = BoundaryAlone
			}

			out = append(out, c)
		}
	}

	return out, nil
}

// Script joins commands into one script text.
func (g *Generator) Script(cmds []Command) string {
	return script(cmds, g.d, g.eol)
}

// Script joins commands rendered with "\n" line endings. Dialects with a batch
// terminator get it after every command.
func Script(cmds []Command, d Dialect) string {
	return script(cmds, d, "\n")
}

func script(cmds []Command, d Dialect, eol string) string {
	var sb strings.Builder

	terminator := d.BatchTerminator()

	for _, c := range cmds {
		sb.WriteString(c.SQL)

		if terminator != "" {
			sb.WriteString(terminator)
			sb.WriteString(eol)
		}

		sb.WriteString(eol)
	}

	return sb.String()
}

// statement writes one guarded statement and closes it as a command. write
// receives the inline guard clause, which is empty unless the dialect guards
// inline.
func (g *Generator) statement(b *Builder, guard *GuardTarget, suppress bool, write func(inline string) error) error {
	style := GuardNone

	guarder, ok := g.d.(Guarder)
	if g.idempotent && guard != nil && ok {
		style = guarder.GuardStyle(*guard)
	}

	inline := ""

	switch style {
	case GuardInline:
		inline = "IF NOT EXISTS "
		if guard.Exists {
			inline = "IF EXISTS "
		}
	case GuardBlock:
		guarder.BeginGuard(b, *guard)
		b.IncrementIndent()
	case GuardNone:
	}

	if err := write(inline); err != nil {
		return err
	}

	b.AppendLine(g.d.StatementTerminator())

	if style == GuardBlock {
		b.DecrementIndent()
		guarder.EndGuard(b)
	}

	b.EndCommand(suppress)

	return nil
}
