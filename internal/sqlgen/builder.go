package sqlgen

import (
	"strings"

	"github.com/aqasim81/schema-migrator/internal/operations"
)

// indentUnit is the indentation added per nesting level.
const indentUnit = "    "

// Boundary tells the executing collaborator how a command may be batched.
type Boundary int

const (
	// BoundaryBatchable commands may share an executed batch with neighbours.
	BoundaryBatchable Boundary = iota
	// BoundaryAlone commands must be executed as their own batch.
	BoundaryAlone
)

func (b Boundary) String() string {
	if b == BoundaryAlone {
		return "alone"
	}

	return "batchable"
}

// Command is one rendered statement.
type Command struct {
	SQL                 string
	SuppressTransaction bool
	Boundary            Boundary
	Operation           operations.Operation
}

// Builder accumulates SQL text line by line with indentation and splits it
// into commands.
type Builder struct {
	eol       string
	indent    int
	lineStart bool
	buf       strings.Builder
	commands  []Command
}

// NewBuilder returns a Builder that terminates lines with eol.
func NewBuilder(eol string) *Builder {
	if eol == "" {
		eol = "\n"
	}

	return &Builder{eol: eol, lineStart: true}
}

// EOL returns the line terminator.
func (b *Builder) EOL() string {
	return b.eol
}

// Append writes s on the current line, indenting first when the line is empty.
func (b *Builder) Append(s string) *Builder {
	if s == "" {
		return b
	}

	if b.lineStart {
		b.buf.WriteString(strings.Repeat(indentUnit, b.indent))
		b.lineStart = false
	}

	b.buf.WriteString(s)

	return b
}

// AppendLine writes s and ends the line.
func (b *Builder) AppendLine(s string) *Builder {
	b.Append(s)
	b.buf.WriteString(b.eol)
	b.lineStart = true

	return b
}

// AppendLines writes multi-line text, indenting every non-empty line. A
// trailing line break in text does not produce an extra empty line.
func (b *Builder) AppendLines(text string) *Builder {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")

	for _, line := range strings.Split(text, "\n") {
		b.AppendLine(line)
	}

	return b
}

// IncrementIndent nests subsequent lines one level deeper.
func (b *Builder) IncrementIndent() *Builder {
	b.indent++

	return b
}

// DecrementIndent undoes one IncrementIndent.
func (b *Builder) DecrementIndent() *Builder {
	if b.indent > 0 {
		b.indent--
	}

	return b
}

// EndStatement writes the terminator, ends the line, and closes the command.
func (b *Builder) EndStatement(terminator string) *Builder {
	b.AppendLine(terminator)
	b.EndCommand(false)

	return b
}

// EndCommand closes the text written so far as one command. It does nothing
// when no text is pending.
func (b *Builder) EndCommand(suppressTransaction bool) *Builder {
	if b.buf.Len() == 0 {
		return b
	}

	b.commands = append(b.commands, Command{SQL: b.buf.String(), SuppressTransaction: suppressTransaction})
	b.buf.Reset()
	b.lineStart = true

	return b
}

// Pending returns the text not yet closed into a command.
func (b *Builder) Pending() string {
	return b.buf.String()
}

// Commands returns the closed commands.
func (b *Builder) Commands() []Command {
	return b.commands
}

// String returns the text of all closed commands followed by the pending text.
func (b *Builder) String() string {
	var sb strings.Builder

	for _, c := range b.commands {
		sb.WriteString(c.SQL)
	}

	sb.WriteString(b.buf.String())

	return sb.String()
}
