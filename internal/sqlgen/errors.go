package sqlgen

import (
	"errors"
	"fmt"

	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// ErrUnsupportedOperation indicates an operation has no rendering for a dialect.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// ErrRebuildRequired is returned by a ColumnAlterer when a column change cannot
// be expressed in place. The generator then drops and re-adds the column.
var ErrRebuildRequired = errors.New("column must be rebuilt")

// UnsupportedOperationError describes an operation a dialect cannot render.
type UnsupportedOperationError struct {
	Dialect string
	Kind    operations.Kind
	Target  schema.QualifiedName
	Reason  string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("%s: %s does not support %s", ErrUnsupportedOperation, e.Dialect, e.Kind)

	switch {
	case e.Target.Name != "":
		msg += " on " + e.Target.String()
	case e.Target.Schema != "":
		msg += " on schema " + e.Target.Schema
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	return msg
}

func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupportedOperation
}

// Unsupported builds an UnsupportedOperationError for op.
func Unsupported(d Dialect, op operations.Operation, reason string) error {
	return &UnsupportedOperationError{
		Dialect: d.Name(),
		Kind:    op.Kind(),
		Target:  op.Target(),
		Reason:  reason,
	}
}
