package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the snapshot's internal consistency. Every problem found is
// reported as a *ValidationError; the returned error joins them in declaration
// order and wraps ErrInvalidModel.
func (s *Snapshot) Validate() error {
	if s == nil {
		return nil
	}

	v := &validator{snap: s}

	v.tables()
	v.sequences()

	return errors.Join(v.errs...)
}

type validator struct {
	snap *Snapshot
	errs []error
}

func (v *validator) add(table QualifiedName, column, object, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{
		Table:  table,
		Column: column,
		Object: object,
		Reason: fmt.Sprintf(format, args...),
	})
}

func (v *validator) tables() {
	seen := make(map[QualifiedName]bool, len(v.snap.Tables))

	for i := range v.snap.Tables {
		t := &v.snap.Tables[i]
		qn := t.QualifiedName()

		if t.Name == "" {
			v.add(qn, "", fmt.Sprintf("table #%d", i+1), "name is empty")
			continue
		}

		if seen[qn] {
			v.add(qn, "", "", "duplicate table name")
			continue
		}

		seen[qn] = true

		v.columns(t)
		v.keys(t)
		v.foreignKeys(t)
		v.indexes(t)
		v.objectNames(t)
	}
}

func (v *validator) columns(t *Table) {
	qn := t.QualifiedName()

	if len(t.Columns) == 0 {
		v.add(qn, "", "", "table has no columns")
	}

	seen := make(map[string]bool, len(t.Columns))

	for i := range t.Columns {
		c := &t.Columns[i]

		if c.Name == "" {
			v.add(qn, "", fmt.Sprintf("column #%d", i+1), "name is empty")
			continue
		}

		if seen[c.Name] {
			v.add(qn, c.Name, "", "duplicate column name")
		}

		seen[c.Name] = true

		if c.ComputedSQL != "" && c.HasDefault() {
			v.add(qn, c.Name, "", "column cannot have both a default and a computed expression")
		}

		if c.DefaultValue != nil && c.DefaultSQL != "" {
			v.add(qn, c.Name, "", "column cannot have both a default value and a default SQL expression")
		}

		if c.Type.Kind == UnknownType && c.StoreType == "" {
			v.add(qn, c.Name, "", "column has neither a type nor a store type")
		}
	}
}

func (v *validator) keys(t *Table) {
	if t.PrimaryKey != nil {
		v.columnRefs(t, "primary key "+t.PrimaryKey.Name, t.PrimaryKey.Columns)
	}

	for i := range t.UniqueConstraints {
		uc := &t.UniqueConstraints[i]
		v.columnRefs(t, "unique constraint "+uc.Name, uc.Columns)
	}

	for i := range t.CheckConstraints {
		if strings.TrimSpace(t.CheckConstraints[i].SQL) == "" {
			v.add(t.QualifiedName(), "", "check constraint "+t.CheckConstraints[i].Name, "expression is empty")
		}
	}
}

func (v *validator) indexes(t *Table) {
	for i := range t.Indexes {
		ix := &t.Indexes[i]
		v.columnRefs(t, "index "+ix.Name, ix.Columns)
	}
}

func (v *validator) foreignKeys(t *Table) {
	qn := t.QualifiedName()

	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		object := "foreign key " + fk.Name

		v.columnRefs(t, object, fk.Columns)

		if len(fk.Columns) != len(fk.PrincipalColumns) {
			v.add(qn, "", object, "has %d columns but references %d", len(fk.Columns), len(fk.PrincipalColumns))
			continue
		}

		principal, ok := v.snap.Table(fk.PrincipalSchema, fk.PrincipalTable)
		if !ok {
			target := QualifiedName{Schema: fk.PrincipalSchema, Name: fk.PrincipalTable}
			v.add(qn, "", object, "references missing table %s", target)

			continue
		}

		if !principal.HasKey(fk.PrincipalColumns) {
			v.add(qn, "", object, "principal columns (%s) are not a key of %s",
				strings.Join(fk.PrincipalColumns, ", "), principal.QualifiedName())
		}
	}
}

func (v *validator) columnRefs(t *Table, object string, cols []string) {
	qn := t.QualifiedName()

	if len(cols) == 0 {
		v.add(qn, "", object, "has no columns")
		return
	}

	seen := make(map[string]bool, len(cols))

	for _, c := range cols {
		if t.ColumnIndex(c) < 0 {
			v.add(qn, c, object, "references missing column")
		}

		if seen[c] {
			v.add(qn, c, object, "lists column twice")
		}

		seen[c] = true
	}
}

func (v *validator) objectNames(t *Table) {
	qn := t.QualifiedName()
	seen := make(map[string]bool)

	check := func(kind, name string) {
		if name == "" {
			v.add(qn, "", kind, "name is empty")
			return
		}

		if seen[name] {
			v.add(qn, "", kind+" "+name, "duplicate constraint or index name")
		}

		seen[name] = true
	}

	if t.PrimaryKey != nil {
		check("primary key", t.PrimaryKey.Name)
	}

	for i := range t.UniqueConstraints {
		check("unique constraint", t.UniqueConstraints[i].Name)
	}

	for i := range t.ForeignKeys {
		check("foreign key", t.ForeignKeys[i].Name)
	}

	for i := range t.CheckConstraints {
		check("check constraint", t.CheckConstraints[i].Name)
	}

	for i := range t.Indexes {
		check("index", t.Indexes[i].Name)
	}
}

func (v *validator) sequences() {
	seen := make(map[QualifiedName]bool, len(v.snap.Sequences))

	for i := range v.snap.Sequences {
		seq := &v.snap.Sequences[i]
		qn := QualifiedName{Schema: seq.Schema, Name: seq.Name}
		object := "sequence " + qn.String()

		if seq.Name == "" {
			v.add(QualifiedName{}, "", fmt.Sprintf("sequence #%d", i+1), "name is empty")
			continue
		}

		if seen[qn] {
			v.add(QualifiedName{}, "", object, "duplicate sequence name")
		}

		seen[qn] = true

		if !seq.Type.Kind.IsInteger() && seq.Type.Kind != DecimalType {
			v.add(QualifiedName{}, "", object, "type %s is not numeric", seq.Type)
		}

		if seq.IncrementBy == 0 {
			v.add(QualifiedName{}, "", object, "increment is zero")
		}

		if seq.MinValue != nil && seq.MaxValue != nil && *seq.MinValue > *seq.MaxValue {
			v.add(QualifiedName{}, "", object, "min value %d exceeds max value %d", *seq.MinValue, *seq.MaxValue)
		}
	}
}
