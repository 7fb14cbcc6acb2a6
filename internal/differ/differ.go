// Package differ compares two schema snapshots and produces the ordered
// operations that turn the first into the second.
package differ

import (
	"fmt"

	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// Differ computes migration operations between snapshots. It holds only
// configuration and is safe for concurrent use.
type Differ struct {
	renames RenameOptions
	target  Target
}

// New creates a Differ with default rename detection and no schema transfer.
func New(opts ...Option) *Differ {
	d := &Differ{renames: DefaultRenameOptions()}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Differ) alterTarget() AlterTarget {
	at, _ := d.target.(AlterTarget)

	return at
}

// Diff compares from and to with a default Differ.
func Diff(from, to *schema.Snapshot) ([]operations.Operation, error) {
	return New().Diff(from, to)
}

// Diff returns the operations that migrate a database shaped like from into one
// shaped like to. A nil snapshot is an empty model. Both snapshots are
// validated first. The result is deterministic for equal inputs.
func (d *Differ) Diff(from, to *schema.Snapshot) ([]operations.Operation, error) {
	if from == nil {
		from = &schema.Snapshot{}
	}

	if to == nil {
		to = &schema.Snapshot{}
	}

	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("validating source snapshot: %w", err)
	}

	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("validating target snapshot: %w", err)
	}

	s := &state{
		d:     d,
		old:   from,
		new:   to,
		byOld: make(map[schema.QualifiedName]*tablePair),
		byNew: make(map[schema.QualifiedName]*tablePair),
	}

	s.matchTables()

	for _, p := range s.matched {
		p.matchColumns(d.renames.Columns, d.alterTarget())
	}

	s.compareObjects()
	s.emit()

	return s.g.sort()
}

// DiffPair returns the up operations (from to to) and the down operations
// (to back to from).
func (d *Differ) DiffPair(from, to *schema.Snapshot) (up, down []operations.Operation, err error) {
	up, err = d.Diff(from, to)
	if err != nil {
		return nil, nil, err
	}

	down, err = d.Diff(to, from)
	if err != nil {
		return nil, nil, fmt.Errorf("computing down operations: %w", err)
	}

	return up, down, nil
}

type state struct {
	d   *Differ
	old *schema.Snapshot
	new *schema.Snapshot

	matched []*tablePair
	created []*tablePair
	dropped []*tablePair
	byOld   map[schema.QualifiedName]*tablePair
	byNew   map[schema.QualifiedName]*tablePair

	changes map[*tablePair]*objectChanges

	splitFKs       map[*schema.ForeignKey]bool // new FKs added after their cyclic tables exist
	explicitDropFK map[*schema.ForeignKey]bool // old FKs dropped before their cyclic tables

	g graph
}

// emit adds every operation to the graph. Emission order is the tie-breaker
// within a phase: new-snapshot order, and old-snapshot order for drops.
func (s *state) emit() {
	s.emitSchemas()

	for i := range s.old.Tables {
		p := s.byOld[s.old.Tables[i].QualifiedName()]
		if p.new == nil {
			s.emitCycleForeignKeyDrops(p)
		} else {
			s.emitObjectDrops(p)
		}
	}

	for i := range s.new.Tables {
		if p := s.byNew[s.new.Tables[i].QualifiedName()]; p.renamed() {
			s.emitRenameTable(p)
		}
	}

	s.emitSequences()

	for i := range s.new.Tables {
		p := s.byNew[s.new.Tables[i].QualifiedName()]
		if p.old == nil {
			s.emitCreateTable(p)
		} else {
			s.emitTableChanges(p)
		}
	}

	for i := range s.old.Tables {
		if p := s.byOld[s.old.Tables[i].QualifiedName()]; p.new == nil {
			s.emitDropTable(p)
		}
	}

	s.emitSequenceDrops()
}

func (s *state) emitSchemas() {
	known := make(map[string]bool)
	for _, name := range s.old.Schemas() {
		known[name] = true
	}

	need := func(name string) {
		if name == "" || known[name] {
			return
		}

		known[name] = true
		s.g.add(operations.EnsureSchema{Name: name}, phaseEnsureSchema).create(schemaRes(name))
	}

	for i := range s.new.Tables {
		p := s.byNew[s.new.Tables[i].QualifiedName()]
		if p.old == nil || p.old.Schema != p.new.Schema {
			need(p.new.Schema)
		}
	}

	for i := range s.new.Sequences {
		seq := &s.new.Sequences[i]
		if _, ok := s.old.Sequence(seq.Schema, seq.Name); !ok {
			need(seq.Schema)
		}
	}
}

func (s *state) emitSequences() {
	for i := range s.new.Sequences {
		seq := &s.new.Sequences[i]
		res := sequenceRes(seq.Schema, seq.Name)

		old, ok := s.old.Sequence(seq.Schema, seq.Name)

		switch {
		case ok && old.Equal(seq):
		case ok && old.Type == seq.Type:
			s.g.add(operations.AlterSequence{Old: old.Clone(), New: seq.Clone()}, phaseSequence)
		default:
			if ok {
				s.g.add(operations.DropSequence{Schema: old.Schema, Name: old.Name}, phaseDropSequence).remove(res)
			}

			n := s.g.add(operations.CreateSequence{Sequence: seq.Clone()}, phaseSequence).create(res)
			if seq.Schema != "" {
				n.useNew(schemaRes(seq.Schema))
			}
		}
	}
}

func (s *state) emitSequenceDrops() {
	for i := range s.old.Sequences {
		seq := &s.old.Sequences[i]
		if _, ok := s.new.Sequence(seq.Schema, seq.Name); !ok {
			s.g.add(operations.DropSequence{Schema: seq.Schema, Name: seq.Name}, phaseDropSequence).
				remove(sequenceRes(seq.Schema, seq.Name))
		}
	}
}

// principalOld returns the pair of the table an old-model foreign key references.
func (s *state) principalOld(fk *schema.ForeignKey) *tablePair {
	return s.byOld[schema.QualifiedName{Schema: fk.PrincipalSchema, Name: fk.PrincipalTable}]
}

// principalNew returns the pair of the table a new-model foreign key references.
func (s *state) principalNew(fk *schema.ForeignKey) *tablePair {
	return s.byNew[schema.QualifiedName{Schema: fk.PrincipalSchema, Name: fk.PrincipalTable}]
}
