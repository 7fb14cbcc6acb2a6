package schema

import (
	"errors"
	"strings"
)

// ErrInvalidModel indicates a snapshot is internally inconsistent.
var ErrInvalidModel = errors.New("invalid schema model")

// ErrInvalidType indicates a textual column type could not be parsed.
var ErrInvalidType = errors.New("invalid column type")

// ValidationError describes one inconsistency found in a snapshot. Table,
// Column, and Object are empty when they do not apply.
type ValidationError struct {
	Table  QualifiedName
	Column string
	Object string
	Reason string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder

	sb.WriteString(ErrInvalidModel.Error())

	if e.Table.Name != "" {
		sb.WriteString(": table ")
		sb.WriteString(e.Table.String())
	}

	if e.Column != "" {
		sb.WriteString(": column ")
		sb.WriteString(e.Column)
	}

	if e.Object != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Object)
	}

	sb.WriteString(": ")
	sb.WriteString(e.Reason)

	return sb.String()
}

func (e *ValidationError) Unwrap() error { return ErrInvalidModel }
