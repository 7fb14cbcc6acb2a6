package schema

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type snapshotFile struct {
	Annotations map[string]yamlValue `yaml:"annotations,omitempty"`
	Tables      []tableFile          `yaml:"tables,omitempty"`
	Sequences   []sequenceFile       `yaml:"sequences,omitempty"`
}

type tableFile struct {
	Schema      string               `yaml:"schema,omitempty"`
	Name        string               `yaml:"name"`
	Comment     string               `yaml:"comment,omitempty"`
	Columns     []columnFile         `yaml:"columns"`
	PrimaryKey  *keyFile             `yaml:"primary_key,omitempty"`
	Unique      []keyFile            `yaml:"unique,omitempty"`
	ForeignKeys []foreignKeyFile     `yaml:"foreign_keys,omitempty"`
	Indexes     []indexFile          `yaml:"indexes,omitempty"`
	Checks      []checkFile          `yaml:"checks,omitempty"`
	Annotations map[string]yamlValue `yaml:"annotations,omitempty"`
}

type columnFile struct {
	Name        string               `yaml:"name"`
	Type        string               `yaml:"type,omitempty"`
	StoreType   string               `yaml:"store_type,omitempty"`
	Nullable    bool                 `yaml:"nullable,omitempty"`
	Default     *rawNode             `yaml:"default,omitempty"`
	DefaultSQL  string               `yaml:"default_sql,omitempty"`
	Computed    string               `yaml:"computed,omitempty"`
	Stored      bool                 `yaml:"stored,omitempty"`
	Identity    bool                 `yaml:"identity,omitempty"`
	Collation   string               `yaml:"collation,omitempty"`
	Comment     string               `yaml:"comment,omitempty"`
	Annotations map[string]yamlValue `yaml:"annotations,omitempty"`
}

type keyFile struct {
	Name        string               `yaml:"name,omitempty"`
	Columns     []string             `yaml:"columns,flow"`
	Annotations map[string]yamlValue `yaml:"annotations,omitempty"`
}

type foreignKeyFile struct {
	Name             string   `yaml:"name,omitempty"`
	Columns          []string `yaml:"columns,flow"`
	PrincipalSchema  string   `yaml:"principal_schema,omitempty"`
	PrincipalTable   string   `yaml:"principal_table"`
	PrincipalColumns []string `yaml:"principal_columns,flow"`
	OnDelete         string   `yaml:"on_delete,omitempty"`
	OnUpdate         string   `yaml:"on_update,omitempty"`
}

type indexFile struct {
	Name        string               `yaml:"name,omitempty"`
	Columns     []string             `yaml:"columns,flow"`
	Unique      bool                 `yaml:"unique,omitempty"`
	Filter      string               `yaml:"filter,omitempty"`
	Annotations map[string]yamlValue `yaml:"annotations,omitempty"`
}

type checkFile struct {
	Name string `yaml:"name,omitempty"`
	SQL  string `yaml:"sql"`
}

type sequenceFile struct {
	Schema    string `yaml:"schema,omitempty"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type,omitempty"`
	Start     *int64 `yaml:"start,omitempty"`
	Increment *int64 `yaml:"increment,omitempty"`
	Min       *int64 `yaml:"min,omitempty"`
	Max       *int64 `yaml:"max,omitempty"`
	Cyclic    bool   `yaml:"cyclic,omitempty"`
}

// Load reads and parses a YAML snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	return s, nil
}

// Parse decodes a YAML snapshot, assigns default constraint names, and validates it.
func Parse(data []byte) (*Snapshot, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	s, err := f.toSnapshot()
	if err != nil {
		return nil, err
	}

	for i := range s.Tables {
		assignDefaultNames(&s.Tables[i])
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Marshal encodes a snapshot as YAML. Parse(Marshal(s)) is structurally equal to s.
func Marshal(s *Snapshot) ([]byte, error) {
	f, err := fromSnapshot(s)
	if err != nil {
		return nil, err
	}

	out, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	return out, nil
}

func (f *snapshotFile) toSnapshot() (*Snapshot, error) {
	s := &Snapshot{Annotations: toAnnotations(f.Annotations)}

	for i := range f.Tables {
		t, err := f.Tables[i].toTable()
		if err != nil {
			return nil, err
		}

		s.Tables = append(s.Tables, t)
	}

	for i := range f.Sequences {
		seq, err := f.Sequences[i].toSequence()
		if err != nil {
			return nil, err
		}

		s.Sequences = append(s.Sequences, seq)
	}

	return s, nil
}

func (tf *tableFile) toTable() (Table, error) {
	t := Table{
		Schema:      tf.Schema,
		Name:        tf.Name,
		Comment:     tf.Comment,
		Annotations: toAnnotations(tf.Annotations),
	}
	qn := t.QualifiedName()

	for i := range tf.Columns {
		c, err := tf.Columns[i].toColumn()
		if err != nil {
			return Table{}, fmt.Errorf("table %s: %w", qn, err)
		}

		t.Columns = append(t.Columns, c)
	}

	if tf.PrimaryKey != nil {
		pk := tf.PrimaryKey.toKey()
		t.PrimaryKey = &pk
	}

	for i := range tf.Unique {
		t.UniqueConstraints = append(t.UniqueConstraints, tf.Unique[i].toKey())
	}

	for i := range tf.ForeignKeys {
		fk, err := tf.ForeignKeys[i].toForeignKey()
		if err != nil {
			return Table{}, fmt.Errorf("table %s: %w", qn, err)
		}

		t.ForeignKeys = append(t.ForeignKeys, fk)
	}

	for i := range tf.Indexes {
		ix := tf.Indexes[i]
		t.Indexes = append(t.Indexes, Index{
			Name:        ix.Name,
			Columns:     ix.Columns,
			Unique:      ix.Unique,
			Filter:      ix.Filter,
			Annotations: toAnnotations(ix.Annotations),
		})
	}

	for _, ck := range tf.Checks {
		t.CheckConstraints = append(t.CheckConstraints, CheckConstraint(ck))
	}

	return t, nil
}

func (cf *columnFile) toColumn() (Column, error) {
	c := Column{
		Name:        cf.Name,
		StoreType:   cf.StoreType,
		Nullable:    cf.Nullable,
		DefaultSQL:  cf.DefaultSQL,
		ComputedSQL: cf.Computed,
		Stored:      cf.Stored,
		Identity:    cf.Identity,
		Collation:   cf.Collation,
		Comment:     cf.Comment,
		Annotations: toAnnotations(cf.Annotations),
	}

	if cf.Type != "" {
		t, err := ParseColumnType(cf.Type)
		if err != nil {
			return Column{}, fmt.Errorf("column %s: %w", cf.Name, err)
		}

		c.Type = t
	}

	if cf.Default != nil {
		v, err := defaultFromNode(&cf.Default.n, c.Type)
		if err != nil {
			return Column{}, fmt.Errorf("column %s: default: %w", cf.Name, err)
		}

		c.DefaultValue = &v
	}

	return c, nil
}

func (kf *keyFile) toKey() Key {
	return Key{Name: kf.Name, Columns: kf.Columns, Annotations: toAnnotations(kf.Annotations)}
}

func (ff *foreignKeyFile) toForeignKey() (ForeignKey, error) {
	onDelete, err := ParseReferentialAction(ff.OnDelete)
	if err != nil {
		return ForeignKey{}, err
	}

	onUpdate, err := ParseReferentialAction(ff.OnUpdate)
	if err != nil {
		return ForeignKey{}, err
	}

	return ForeignKey{
		Name:             ff.Name,
		Columns:          ff.Columns,
		PrincipalSchema:  ff.PrincipalSchema,
		PrincipalTable:   ff.PrincipalTable,
		PrincipalColumns: ff.PrincipalColumns,
		OnDelete:         onDelete,
		OnUpdate:         onUpdate,
	}, nil
}

func (sf *sequenceFile) toSequence() (Sequence, error) {
	s := Sequence{
		Schema:      sf.Schema,
		Name:        sf.Name,
		Type:        Int64(),
		StartValue:  1,
		IncrementBy: 1,
		MinValue:    sf.Min,
		MaxValue:    sf.Max,
		Cyclic:      sf.Cyclic,
	}

	if sf.Type != "" {
		t, err := ParseColumnType(sf.Type)
		if err != nil {
			return Sequence{}, fmt.Errorf("sequence %s: %w", sf.Name, err)
		}

		s.Type = t
	}

	if sf.Start != nil {
		s.StartValue = *sf.Start
	}

	if sf.Increment != nil {
		s.IncrementBy = *sf.Increment
	}

	return s, nil
}

func fromSnapshot(s *Snapshot) (*snapshotFile, error) {
	f := &snapshotFile{Annotations: fromAnnotations(s.Annotations)}

	for i := range s.Tables {
		t := &s.Tables[i]
		tf := tableFile{
			Schema:      t.Schema,
			Name:        t.Name,
			Comment:     t.Comment,
			Annotations: fromAnnotations(t.Annotations),
		}

		for j := range t.Columns {
			cf, err := fromColumn(&t.Columns[j])
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", t.QualifiedName(), err)
			}

			tf.Columns = append(tf.Columns, cf)
		}

		if t.PrimaryKey != nil {
			tf.PrimaryKey = fromKey(t.PrimaryKey)
		}

		for j := range t.UniqueConstraints {
			tf.Unique = append(tf.Unique, *fromKey(&t.UniqueConstraints[j]))
		}

		for _, fk := range t.ForeignKeys {
			tf.ForeignKeys = append(tf.ForeignKeys, foreignKeyFile{
				Name:             fk.Name,
				Columns:          fk.Columns,
				PrincipalSchema:  fk.PrincipalSchema,
				PrincipalTable:   fk.PrincipalTable,
				PrincipalColumns: fk.PrincipalColumns,
				OnDelete:         actionName(fk.OnDelete),
				OnUpdate:         actionName(fk.OnUpdate),
			})
		}

		for _, ix := range t.Indexes {
			tf.Indexes = append(tf.Indexes, indexFile{
				Name:        ix.Name,
				Columns:     ix.Columns,
				Unique:      ix.Unique,
				Filter:      ix.Filter,
				Annotations: fromAnnotations(ix.Annotations),
			})
		}

		for _, ck := range t.CheckConstraints {
			tf.Checks = append(tf.Checks, checkFile(ck))
		}

		f.Tables = append(f.Tables, tf)
	}

	for _, seq := range s.Sequences {
		start, inc := seq.StartValue, seq.IncrementBy
		f.Sequences = append(f.Sequences, sequenceFile{
			Schema:    seq.Schema,
			Name:      seq.Name,
			Type:      seq.Type.String(),
			Start:     &start,
			Increment: &inc,
			Min:       seq.MinValue,
			Max:       seq.MaxValue,
			Cyclic:    seq.Cyclic,
		})
	}

	return f, nil
}

func fromColumn(c *Column) (columnFile, error) {
	cf := columnFile{
		Name:        c.Name,
		StoreType:   c.StoreType,
		Nullable:    c.Nullable,
		DefaultSQL:  c.DefaultSQL,
		Computed:    c.ComputedSQL,
		Stored:      c.Stored,
		Identity:    c.Identity,
		Collation:   c.Collation,
		Comment:     c.Comment,
		Annotations: fromAnnotations(c.Annotations),
	}

	if c.Type.Kind != UnknownType {
		cf.Type = c.Type.String()
	}

	if c.DefaultValue != nil {
		n, err := defaultToNode(*c.DefaultValue, c.Type)
		if err != nil {
			return columnFile{}, fmt.Errorf("column %s: default: %w", c.Name, err)
		}

		cf.Default = &rawNode{n: *n}
	}

	return cf, nil
}

func fromKey(k *Key) *keyFile {
	return &keyFile{Name: k.Name, Columns: k.Columns, Annotations: fromAnnotations(k.Annotations)}
}

// ParseReferentialAction parses "cascade", "restrict", "set_null", "set_default",
// or "no_action". The empty string is NoAction.
func ParseReferentialAction(s string) (ReferentialAction, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")) {
	case "", "no_action":
		return NoAction, nil
	case "restrict":
		return Restrict, nil
	case "cascade":
		return Cascade, nil
	case "set_null":
		return SetNull, nil
	case "set_default":
		return SetDefault, nil
	default:
		return NoAction, fmt.Errorf("%w: unknown referential action %q", ErrInvalidModel, s)
	}
}

func actionName(a ReferentialAction) string {
	if a == NoAction {
		return ""
	}

	return strings.ToLower(strings.ReplaceAll(a.String(), " ", "_"))
}

// rawNode captures a YAML node whose interpretation depends on context.
type rawNode struct {
	n yaml.Node
}

func (r *rawNode) UnmarshalYAML(n *yaml.Node) error {
	r.n = *n

	return nil
}

func (r rawNode) MarshalYAML() (any, error) {
	n := r.n

	return &n, nil
}

// defaultFromNode interprets a literal default according to the column's kind.
func defaultFromNode(n *yaml.Node, t ColumnType) (Value, error) {
	if n.Kind != yaml.ScalarNode {
		return Value{}, fmt.Errorf("%w: default must be a scalar", ErrInvalidModel)
	}

	if n.ShortTag() == "!!null" {
		return NullValue(), nil
	}

	switch {
	case t.Kind == StringType, t.Kind == GUIDType, t.Kind == JSONType:
		return StringValue(n.Value), nil
	case t.Kind.IsInteger():
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidModel, n.Value)
		}

		return IntValue(i), nil
	case t.Kind == BoolType:
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrInvalidModel, n.Value)
		}

		return BoolValue(b), nil
	case t.Kind == DecimalType, t.Kind == Float32Type, t.Kind == Float64Type:
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrInvalidModel, n.Value)
		}

		return FloatValue(f), nil
	case t.Kind.IsTemporal():
		tm, err := parseTime(n.Value)
		if err != nil {
			return Value{}, err
		}

		return TimeValue(tm), nil
	case t.Kind == BinaryType:
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(n.Value, "0x"), "0X"))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not hex", ErrInvalidModel, n.Value)
		}

		return BytesValue(b), nil
	default:
		return valueFromNode(n)
	}
}

func defaultToNode(v Value, t ColumnType) (*yaml.Node, error) {
	if v.Kind == BytesKind && t.Kind == BinaryType {
		return scalar("!!str", hex.EncodeToString(v.Bytes)), nil
	}

	return valueToNode(v)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly, time.TimeOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q is not a timestamp", ErrInvalidModel, s)
}

// yamlValue encodes a Value using the YAML core tags.
type yamlValue struct {
	v Value
}

func (y *yamlValue) UnmarshalYAML(n *yaml.Node) error {
	v, err := valueFromNode(n)
	if err != nil {
		return err
	}

	y.v = v

	return nil
}

func (y yamlValue) MarshalYAML() (any, error) {
	return valueToNode(y.v)
}

func valueFromNode(n *yaml.Node) (Value, error) {
	if n.Kind != yaml.ScalarNode {
		return Value{}, fmt.Errorf("%w: annotation values must be scalars (line %d)", ErrInvalidModel, n.Line)
	}

	switch n.ShortTag() {
	case "!!null":
		return NullValue(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("decoding bool: %w", err)
		}

		return BoolValue(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return Value{}, fmt.Errorf("decoding int: %w", err)
		}

		return IntValue(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("decoding float: %w", err)
		}

		return FloatValue(f), nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return Value{}, fmt.Errorf("decoding timestamp: %w", err)
		}

		return TimeValue(t), nil
	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return Value{}, fmt.Errorf("decoding binary: %w", err)
		}

		return BytesValue(b), nil
	default:
		return StringValue(n.Value), nil
	}
}

func valueToNode(v Value) (*yaml.Node, error) {
	switch v.Kind {
	case NullKind:
		return scalar("!!null", "null"), nil
	case StringKind:
		return scalar("!!str", v.Str), nil
	case IntKind:
		return scalar("!!int", strconv.FormatInt(v.Int, 10)), nil
	case FloatKind:
		return scalar("!!float", strconv.FormatFloat(v.Float, 'g', -1, 64)), nil
	case BoolKind:
		return scalar("!!bool", strconv.FormatBool(v.Bool)), nil
	case BytesKind:
		return scalar("!!binary", base64.StdEncoding.EncodeToString(v.Bytes)), nil
	case TimeKind:
		return scalar("!!timestamp", v.Time.Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("%w: unknown value kind %d", ErrInvalidModel, v.Kind)
	}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func toAnnotations(m map[string]yamlValue) Annotations {
	if len(m) == 0 {
		return nil
	}

	a := make(Annotations, len(m))
	for k, v := range m {
		a[k] = v.v
	}

	return a
}

func fromAnnotations(a Annotations) map[string]yamlValue {
	if len(a) == 0 {
		return nil
	}

	m := make(map[string]yamlValue, len(a))
	for k, v := range a {
		m[k] = yamlValue{v: v}
	}

	return m
}
