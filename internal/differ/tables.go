package differ

import (
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// objectChanges lists the keys, constraints, and indexes of a matched table that
// must be dropped or added. Old objects carry old column names.
type objectChanges struct {
	dropPK     *schema.Key
	addPK      *schema.Key
	dropUnique []*schema.Key
	addUnique  []*schema.Key
	dropChecks []*schema.CheckConstraint
	addChecks  []*schema.CheckConstraint
	dropIndex  []*schema.Index
	addIndex   []*schema.Index
	renames    []indexRename
	dropFKs    []*schema.ForeignKey
	addFKs     []*schema.ForeignKey

	droppedKeys map[string]bool // keyRes of dropped old keys
}

type indexRename struct {
	old *schema.Index
	new *schema.Index
}

func (s *state) compareObjects() {
	s.changes = make(map[*tablePair]*objectChanges, len(s.matched))

	for _, p := range s.matched {
		s.changes[p] = compareKeys(p)
	}

	for _, p := range s.matched {
		s.compareForeignKeys(p, s.changes[p])
	}

	var createdTables, droppedTables []*schema.Table

	for i := range s.new.Tables {
		if p := s.byNew[s.new.Tables[i].QualifiedName()]; p.old == nil {
			createdTables = append(createdTables, p.new)
		}
	}

	for i := range s.old.Tables {
		if p := s.byOld[s.old.Tables[i].QualifiedName()]; p.new == nil {
			droppedTables = append(droppedTables, p.old)
		}
	}

	s.splitFKs = foreignKeyCycles(createdTables)
	s.explicitDropFK = foreignKeyCycles(droppedTables)

	if at := s.d.alterTarget(); at != nil && at.RebuildsTables() {
		for _, p := range s.matched {
			p.recreate = s.changes[p].constraintsChanged() || p.needsRecreate()
		}
	}
}

// constraintsChanged reports whether any key, check, or foreign key changes.
// Index changes are excluded; indexes are created and dropped on their own.
func (c *objectChanges) constraintsChanged() bool {
	return c.dropPK != nil || c.addPK != nil ||
		len(c.dropUnique)+len(c.addUnique)+len(c.dropChecks)+len(c.addChecks)+len(c.dropFKs)+len(c.addFKs) > 0
}

func compareKeys(p *tablePair) *objectChanges {
	c := &objectChanges{droppedKeys: make(map[string]bool)}

	keyKept := func(old, cur *schema.Key) bool {
		return old.Name == cur.Name &&
			equalCols(p.mapColumns(old.Columns), cur.Columns) &&
			old.Annotations.Equal(cur.Annotations) &&
			!p.coversRebuilt(cur.Columns)
	}

	dropKey := func(k *schema.Key) {
		c.droppedKeys[keyRes(p.stable(), k.Columns)] = true
	}

	oldPK, newPK := p.old.PrimaryKey, p.new.PrimaryKey
	if oldPK == nil || newPK == nil || !keyKept(oldPK, newPK) {
		if oldPK != nil {
			c.dropPK = oldPK
			dropKey(oldPK)
		}

		c.addPK = newPK
	}

	kept := make(map[string]bool)

	for i := range p.new.UniqueConstraints {
		nk := &p.new.UniqueConstraints[i]

		if old := findKey(p.old.UniqueConstraints, nk.Name); old != nil && keyKept(old, nk) {
			kept[nk.Name] = true
			continue
		}

		c.addUnique = append(c.addUnique, nk)
	}

	for i := range p.old.UniqueConstraints {
		if old := &p.old.UniqueConstraints[i]; !kept[old.Name] {
			c.dropUnique = append(c.dropUnique, old)
			dropKey(old)
		}
	}

	keptChecks := make(map[string]bool)

	for i := range p.new.CheckConstraints {
		nc := &p.new.CheckConstraints[i]
		if oc := findCheck(p.old.CheckConstraints, nc.Name); oc != nil && oc.SQL == nc.SQL {
			keptChecks[nc.Name] = true
			continue
		}

		c.addChecks = append(c.addChecks, nc)
	}

	for i := range p.old.CheckConstraints {
		if oc := &p.old.CheckConstraints[i]; !keptChecks[oc.Name] {
			c.dropChecks = append(c.dropChecks, oc)
		}
	}

	compareIndexes(p, c)

	return c
}

func compareIndexes(p *tablePair, c *objectChanges) {
	sameDefinition := func(old, cur *schema.Index) bool {
		mapped := old.Clone()
		mapped.Columns = p.mapColumns(old.Columns)

		return mapped.EqualDefinition(cur) && !p.coversRebuilt(cur.Columns)
	}

	oldUsed := make(map[string]bool)
	newNames := make(map[string]bool)

	var unmatched []*schema.Index

	for i := range p.new.Indexes {
		ni := &p.new.Indexes[i]
		newNames[ni.Name] = true

		if oi := findIndex(p.old.Indexes, ni.Name); oi != nil && sameDefinition(oi, ni) {
			oldUsed[oi.Name] = true
			continue
		}

		unmatched = append(unmatched, ni)
	}

	for _, ni := range unmatched {
		renamed := false

		for j := range p.old.Indexes {
			oi := &p.old.Indexes[j]
			if oldUsed[oi.Name] || newNames[oi.Name] || !sameDefinition(oi, ni) {
				continue
			}

			oldUsed[oi.Name] = true
			c.renames = append(c.renames, indexRename{old: oi, new: ni})
			renamed = true

			break
		}

		if !renamed {
			c.addIndex = append(c.addIndex, ni)
		}
	}

	for j := range p.old.Indexes {
		if oi := &p.old.Indexes[j]; !oldUsed[oi.Name] {
			c.dropIndex = append(c.dropIndex, oi)
		}
	}
}

func (s *state) compareForeignKeys(p *tablePair, c *objectChanges) {
	kept := make(map[string]bool)

	for i := range p.new.ForeignKeys {
		nf := &p.new.ForeignKeys[i]

		if of := findForeignKey(p.old.ForeignKeys, nf.Name); of != nil && s.foreignKeyKept(p, of, nf) {
			kept[nf.Name] = true
			continue
		}

		c.addFKs = append(c.addFKs, nf)
	}

	for i := range p.old.ForeignKeys {
		if of := &p.old.ForeignKeys[i]; !kept[of.Name] {
			c.dropFKs = append(c.dropFKs, of)
		}
	}
}

func (s *state) foreignKeyKept(p *tablePair, old, cur *schema.ForeignKey) bool {
	pp := s.principalOld(old)
	if pp == nil || pp.new == nil {
		return false
	}

	target := pp.new.QualifiedName()
	if target.Schema != cur.PrincipalSchema || target.Name != cur.PrincipalTable {
		return false
	}

	if !equalCols(p.mapColumns(old.Columns), cur.Columns) ||
		!equalCols(pp.mapColumns(old.PrincipalColumns), cur.PrincipalColumns) ||
		old.Name != cur.Name || old.OnDelete != cur.OnDelete || old.OnUpdate != cur.OnUpdate {
		return false
	}

	if p.coversRebuilt(cur.Columns) || pp.coversRebuilt(cur.PrincipalColumns) {
		return false
	}

	if pc := s.changes[pp]; pc != nil && pc.droppedKeys[keyRes(pp.stable(), old.PrincipalColumns)] {
		return false
	}

	return true
}

func (s *state) emitObjectDrops(p *tablePair) {
	if p.recreate {
		return
	}

	c := s.changes[p]
	oldQ := p.old.QualifiedName()
	ref := operations.On(oldQ.Schema, oldQ.Name)
	stable := p.stable()

	for _, fk := range c.dropFKs {
		s.dropForeignKey(p, fk)
	}

	if c.dropPK != nil {
		s.g.add(operations.DropPrimaryKey{TableRef: ref, Name: c.dropPK.Name}, phaseDropConstraint).
			useOld(tableRes(oldQ)).
			useOld(columnDeps(stable, c.dropPK.Columns)...).
			remove(objectRes(stable, c.dropPK.Name), keyRes(stable, c.dropPK.Columns))
	}

	for _, k := range c.dropUnique {
		s.g.add(operations.DropUniqueConstraint{TableRef: ref, Name: k.Name}, phaseDropConstraint).
			useOld(tableRes(oldQ)).
			useOld(columnDeps(stable, k.Columns)...).
			remove(objectRes(stable, k.Name), keyRes(stable, k.Columns))
	}

	for _, ck := range c.dropChecks {
		s.g.add(operations.DropCheckConstraint{TableRef: ref, Name: ck.Name}, phaseDropConstraint).
			useOld(tableRes(oldQ)).
			remove(objectRes(stable, ck.Name))
	}

	for _, ix := range c.dropIndex {
		s.g.add(operations.DropIndex{TableRef: ref, Name: ix.Name}, phaseDropConstraint).
			useOld(tableRes(oldQ)).
			useOld(columnDeps(stable, ix.Columns)...).
			remove(objectRes(stable, ix.Name))
	}
}

func (s *state) emitCycleForeignKeyDrops(p *tablePair) {
	for i := range p.old.ForeignKeys {
		if fk := &p.old.ForeignKeys[i]; s.explicitDropFK[fk] {
			s.dropForeignKey(p, fk)
		}
	}
}

func (s *state) dropForeignKey(p *tablePair, fk *schema.ForeignKey) {
	oldQ := p.old.QualifiedName()
	n := s.g.add(operations.DropForeignKey{TableRef: operations.On(oldQ.Schema, oldQ.Name), Name: fk.Name}, phaseDropForeignKey).
		useOld(tableRes(oldQ)).
		useOld(columnDeps(p.stable(), fk.Columns)...).
		remove(objectRes(p.stable(), fk.Name))

	if pp := s.principalOld(fk); pp != nil {
		n.useOld(tableRes(pp.old.QualifiedName()), keyRes(pp.stable(), fk.PrincipalColumns))
	}
}

func (s *state) emitRenameTable(p *tablePair) {
	oldQ, newQ := p.old.QualifiedName(), p.new.QualifiedName()
	n := s.g.add(operations.RenameTable{
		TableRef:  operations.On(oldQ.Schema, oldQ.Name),
		NewSchema: newQ.Schema,
		NewName:   newQ.Name,
	}, phaseRename).
		remove(tableRes(oldQ)).
		create(tableRes(newQ))

	if newQ.Schema != "" {
		n.useNew(schemaRes(newQ.Schema))
	}
}

func (s *state) emitCreateTable(p *tablePair) {
	t := p.new.Clone()
	q := t.QualifiedName()
	stable := p.stable()
	ref := operations.On(q.Schema, q.Name)

	t.Indexes = nil
	t.ForeignKeys = nil

	var split []*schema.ForeignKey

	for i := range p.new.ForeignKeys {
		fk := &p.new.ForeignKeys[i]
		if s.splitFKs[fk] {
			split = append(split, fk)
		} else {
			t.ForeignKeys = append(t.ForeignKeys, fk.Clone())
		}
	}

	n := s.g.add(operations.CreateTable{Table: t}, phaseCreateTable).create(tableRes(q))
	if q.Schema != "" {
		n.useNew(schemaRes(q.Schema))
	}

	if t.PrimaryKey != nil {
		n.create(objectRes(stable, t.PrimaryKey.Name), keyRes(stable, t.PrimaryKey.Columns))
	}

	for _, k := range t.UniqueConstraints {
		n.create(objectRes(stable, k.Name), keyRes(stable, k.Columns))
	}

	for _, ck := range t.CheckConstraints {
		n.create(objectRes(stable, ck.Name))
	}

	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		n.create(objectRes(stable, fk.Name))

		if pp := s.principalNew(fk); pp != nil {
			n.useNew(tableRes(pp.new.QualifiedName()), keyRes(pp.stable(), fk.PrincipalColumns))
			n.useNew(columnDeps(pp.stable(), fk.PrincipalColumns)...)
		}
	}

	for i := range p.new.Indexes {
		ix := &p.new.Indexes[i]
		s.g.add(operations.CreateIndex{TableRef: ref, Index: ix.Clone()}, phaseCreateIndex).
			useNew(tableRes(q)).
			create(objectRes(stable, ix.Name))
	}

	for _, fk := range split {
		s.addForeignKey(p, fk)
	}
}

func (s *state) emitTableChanges(p *tablePair) {
	c := s.changes[p]
	q := p.new.QualifiedName()
	ref := operations.On(q.Schema, q.Name)
	stable := p.stable()

	if p.old.Comment != p.new.Comment || !p.old.Annotations.Equal(p.new.Annotations) {
		s.g.add(operations.AlterTable{
			TableRef:       ref,
			Comment:        p.new.Comment,
			OldComment:     p.old.Comment,
			Annotations:    p.new.Annotations.Clone(),
			OldAnnotations: p.old.Annotations.Clone(),
		}, phaseColumn).useNew(tableRes(q))
	}

	if p.recreate {
		s.emitRebuild(p, ref, stable)

		return
	}

	s.emitColumns(p, ref, stable)

	if c.addPK != nil {
		s.g.add(operations.AddPrimaryKey{TableRef: ref, Key: c.addPK.Clone()}, phaseAddConstraint).
			useNew(tableRes(q)).
			useNew(columnDeps(stable, c.addPK.Columns)...).
			create(objectRes(stable, c.addPK.Name), keyRes(stable, c.addPK.Columns))
	}

	for _, k := range c.addUnique {
		s.g.add(operations.AddUniqueConstraint{TableRef: ref, Key: k.Clone()}, phaseAddConstraint).
			useNew(tableRes(q)).
			useNew(columnDeps(stable, k.Columns)...).
			create(objectRes(stable, k.Name), keyRes(stable, k.Columns))
	}

	for _, ck := range c.addChecks {
		s.g.add(operations.AddCheckConstraint{TableRef: ref, Check: *ck}, phaseAddConstraint).
			useNew(tableRes(q)).
			create(objectRes(stable, ck.Name))
	}

	for _, r := range c.renames {
		s.g.add(operations.RenameIndex{TableRef: ref, Name: r.old.Name, NewName: r.new.Name, Index: r.new.Clone()}, phaseRename).
			useNew(tableRes(q)).
			remove(objectRes(stable, r.old.Name)).
			create(objectRes(stable, r.new.Name))
	}

	for _, ix := range c.addIndex {
		s.g.add(operations.CreateIndex{TableRef: ref, Index: ix.Clone()}, phaseCreateIndex).
			useNew(tableRes(q)).
			useNew(columnDeps(stable, ix.Columns)...).
			create(objectRes(stable, ix.Name))
	}

	for _, fk := range c.addFKs {
		s.addForeignKey(p, fk)
	}
}

func (s *state) emitColumns(p *tablePair, ref operations.TableRef, stable string) {
	q := p.new.QualifiedName()

	for j := range p.new.Columns {
		nc := &p.new.Columns[j]

		if oldName, ok := p.newToOld[nc.Name]; ok {
			s.g.add(operations.RenameColumn{TableRef: ref, Name: oldName, NewName: nc.Name}, phaseRename).
				useNew(tableRes(q)).
				remove(columnRes(stable, oldName)).
				create(columnRes(stable, nc.Name))
		}

		oc, ok := p.oldColumn(nc.Name)
		if !ok {
			s.g.add(operations.AddColumn{TableRef: ref, Column: nc.Clone()}, phaseColumn).
				useNew(tableRes(q)).
				create(columnRes(stable, nc.Name))

			continue
		}

		old := oc.Clone()
		old.Name = nc.Name

		if !old.Equal(nc) {
			s.g.add(operations.AlterColumn{TableRef: ref, Old: old, New: nc.Clone()}, phaseColumn).
				useNew(tableRes(q), columnRes(stable, nc.Name)).
				remove(columnTypeRes(stable, nc.Name)).
				create(columnTypeRes(stable, nc.Name))
		}
	}

	for j := range p.old.Columns {
		oc := &p.old.Columns[j]
		if _, renamed := p.oldToNew[oc.Name]; renamed || p.new.ColumnIndex(oc.Name) >= 0 {
			continue
		}

		s.g.add(operations.DropColumn{TableRef: ref, Name: oc.Name}, phaseColumn).
			useNew(tableRes(q)).
			remove(columnRes(stable, oc.Name))
	}
}

// emitRebuild replaces every column, key, check, and foreign key change of a
// recreated table with one RebuildTable, then creates all of its indexes,
// which go away with the old table. Principal tables are not waited for: the
// rebuild runs with foreign key enforcement off.
func (s *state) emitRebuild(p *tablePair, ref operations.TableRef, stable string) {
	q := p.new.QualifiedName()

	old := p.old.Clone()
	old.Schema, old.Name = q.Schema, q.Name

	sources := make([]string, len(p.new.Columns))
	for j := range p.new.Columns {
		if oc, ok := p.oldColumn(p.new.Columns[j].Name); ok {
			sources[j] = oc.Name
		}
	}

	n := s.g.add(operations.RebuildTable{TableRef: ref, Old: old, New: p.new.Clone(), Sources: sources}, phaseColumn).
		useNew(tableRes(q))

	for j := range p.old.Columns {
		if name := p.old.Columns[j].Name; p.new.ColumnIndex(name) < 0 {
			n.remove(columnRes(stable, name))
		}
	}

	for j := range p.new.Columns {
		name := p.new.Columns[j].Name
		n.remove(columnTypeRes(stable, name)).create(columnRes(stable, name), columnTypeRes(stable, name))
	}

	for i := range p.old.Indexes {
		n.remove(objectRes(stable, p.old.Indexes[i].Name))
	}

	if pk := p.new.PrimaryKey; pk != nil {
		n.create(objectRes(stable, pk.Name), keyRes(stable, pk.Columns))
	}

	for _, k := range p.new.UniqueConstraints {
		n.create(objectRes(stable, k.Name), keyRes(stable, k.Columns))
	}

	for _, ck := range p.new.CheckConstraints {
		n.create(objectRes(stable, ck.Name))
	}

	for i := range p.new.ForeignKeys {
		n.create(objectRes(stable, p.new.ForeignKeys[i].Name))
	}

	for i := range p.new.Indexes {
		ix := &p.new.Indexes[i]
		s.g.add(operations.CreateIndex{TableRef: ref, Index: ix.Clone()}, phaseCreateIndex).
			useNew(tableRes(q)).
			useNew(columnDeps(stable, ix.Columns)...).
			create(objectRes(stable, ix.Name))
	}
}

func (s *state) addForeignKey(p *tablePair, fk *schema.ForeignKey) {
	q := p.new.QualifiedName()
	stable := p.stable()

	n := s.g.add(operations.AddForeignKey{TableRef: operations.On(q.Schema, q.Name), ForeignKey: fk.Clone()}, phaseAddForeignKey).
		useNew(tableRes(q)).
		useNew(columnDeps(stable, fk.Columns)...).
		create(objectRes(stable, fk.Name))

	if pp := s.principalNew(fk); pp != nil {
		n.useNew(tableRes(pp.new.QualifiedName()), keyRes(pp.stable(), fk.PrincipalColumns))
		n.useNew(columnDeps(pp.stable(), fk.PrincipalColumns)...)
	}
}

func (s *state) emitDropTable(p *tablePair) {
	q := p.old.QualifiedName()
	n := s.g.add(operations.DropTable{TableRef: operations.On(q.Schema, q.Name)}, phaseDropTable).
		remove(tableRes(q))

	for i := range p.old.ForeignKeys {
		fk := &p.old.ForeignKeys[i]
		if s.explicitDropFK[fk] {
			continue
		}

		if pp := s.principalOld(fk); pp != nil && pp != p {
			n.useOld(tableRes(pp.old.QualifiedName()), keyRes(pp.stable(), fk.PrincipalColumns))
		}
	}
}

func columnTypeRes(stable, col string) string { return "coltype" + sep + stable + sep + col }

// columnDeps lists the resources an operation covering cols depends on: the
// columns' existence under those names and their current types.
func columnDeps(stable string, cols []string) []string {
	out := make([]string, 0, 2*len(cols))
	for _, c := range cols {
		out = append(out, columnRes(stable, c), columnTypeRes(stable, c))
	}

	return out
}

func findKey(keys []schema.Key, name string) *schema.Key {
	for i := range keys {
		if keys[i].Name == name {
			return &keys[i]
		}
	}

	return nil
}

func findCheck(checks []schema.CheckConstraint, name string) *schema.CheckConstraint {
	for i := range checks {
		if checks[i].Name == name {
			return &checks[i]
		}
	}

	return nil
}

func findIndex(indexes []schema.Index, name string) *schema.Index {
	for i := range indexes {
		if indexes[i].Name == name {
			return &indexes[i]
		}
	}

	return nil
}

func findForeignKey(fks []schema.ForeignKey, name string) *schema.ForeignKey {
	for i := range fks {
		if fks[i].Name == name {
			return &fks[i]
		}
	}

	return nil
}

func equalCols(a, b []string) bool {
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
