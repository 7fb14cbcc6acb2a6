package differ

import (
	"sort"
	"strconv"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// tablePair links a table of the old snapshot to its counterpart in the new one.
// Exactly one side is nil for dropped and created tables.
type tablePair struct {
	old *schema.Table
	new *schema.Table

	oldToNew map[string]string // column renames, old name to new name
	newToOld map[string]string
	rebuilt  map[string]bool // new column names whose covering objects are recreated

	recreate bool // the whole table is rebuilt by copying
}

func (p *tablePair) renamed() bool {
	return p.old != nil && p.new != nil && p.old.QualifiedName() != p.new.QualifiedName()
}

// stable identifies the table across the diff; it is the new identity for
// tables that survive and the old identity for dropped tables.
func (p *tablePair) stable() string {
	if p.new != nil {
		return stableID(p.new.QualifiedName())
	}

	return stableID(p.old.QualifiedName())
}

// newName maps an old column name to its name in the new table.
func (p *tablePair) newName(col string) string {
	if n, ok := p.oldToNew[col]; ok {
		return n
	}

	return col
}

func (p *tablePair) mapColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = p.newName(c)
	}

	return out
}

func (p *tablePair) coversRebuilt(cols []string) bool {
	for _, c := range cols {
		if p.rebuilt[c] {
			return true
		}
	}

	return false
}

// matchTables pairs old and new tables by identity, then by schema transfer,
// then by structural similarity.
func (s *state) matchTables() {
	oldUsed := make([]bool, len(s.old.Tables))
	newUsed := make([]bool, len(s.new.Tables))

	oldIndex := make(map[schema.QualifiedName]int, len(s.old.Tables))
	for i := range s.old.Tables {
		oldIndex[s.old.Tables[i].QualifiedName()] = i
	}

	for j := range s.new.Tables {
		if i, ok := oldIndex[s.new.Tables[j].QualifiedName()]; ok {
			s.pair(i, j)
			oldUsed[i], newUsed[j] = true, true
		}
	}

	if s.d.target != nil && s.d.target.SupportsSchemaTransfer() {
		for j := range s.new.Tables {
			if newUsed[j] {
				continue
			}

			for i := range s.old.Tables {
				if !oldUsed[i] && s.old.Tables[i].Name == s.new.Tables[j].Name {
					s.pair(i, j)
					oldUsed[i], newUsed[j] = true, true

					break
				}
			}
		}
	}

	if s.d.renames.Tables {
		s.matchRenamedTables(oldUsed, newUsed)
	}

	for i := range s.old.Tables {
		if !oldUsed[i] {
			p := &tablePair{old: &s.old.Tables[i]}
			s.dropped = append(s.dropped, p)
			s.byOld[p.old.QualifiedName()] = p
		}
	}

	for j := range s.new.Tables {
		if !newUsed[j] {
			p := &tablePair{new: &s.new.Tables[j]}
			s.created = append(s.created, p)
			s.byNew[p.new.QualifiedName()] = p
		}
	}
}

func (s *state) pair(i, j int) {
	p := &tablePair{old: &s.old.Tables[i], new: &s.new.Tables[j]}
	s.matched = append(s.matched, p)
	s.byOld[p.old.QualifiedName()] = p
	s.byNew[p.new.QualifiedName()] = p
}

type renameCandidate struct {
	oldIdx, newIdx int
	score          float64
}

func (s *state) matchRenamedTables(oldUsed, newUsed []bool) {
	var candidates []renameCandidate

	for i := range s.old.Tables {
		if oldUsed[i] {
			continue
		}

		oldSigs := signatures(&s.old.Tables[i])

		for j := range s.new.Tables {
			if newUsed[j] || s.old.Tables[i].Schema != s.new.Tables[j].Schema {
				continue
			}

			score, shared := jaccard(oldSigs, signatures(&s.new.Tables[j]))
			if score >= s.d.renames.TableSimilarity && shared >= s.d.renames.MinSharedColumns {
				candidates = append(candidates, renameCandidate{oldIdx: i, newIdx: j, score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}

		if ca.oldIdx != cb.oldIdx {
			return ca.oldIdx < cb.oldIdx
		}

		return ca.newIdx < cb.newIdx
	})

	for _, c := range candidates {
		if oldUsed[c.oldIdx] || newUsed[c.newIdx] {
			continue
		}

		s.pair(c.oldIdx, c.newIdx)
		oldUsed[c.oldIdx], newUsed[c.newIdx] = true, true
	}
}

func signatures(t *schema.Table) map[string]bool {
	sigs := make(map[string]bool, len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		sigs[c.Name+sep+c.Type.String()+sep+c.StoreType+sep+strconv.FormatBool(c.Nullable)] = true
	}

	return sigs
}

// jaccard returns |a∩b| / |a∪b| and |a∩b|.
func jaccard(a, b map[string]bool) (float64, int) {
	shared := 0

	for k := range a {
		if b[k] {
			shared++
		}
	}

	union := len(a) + len(b) - shared
	if union == 0 {
		return 0, 0
	}

	return float64(shared) / float64(union), shared
}

// matchColumns fills the pair's rename maps and rebuilt set. A column is
// rebuilt when its type changes or when at says the alteration cannot run with
// indexes over it. Tables the target recreates rebuild nothing per column.
func (p *tablePair) matchColumns(detectRenames bool, at AlterTarget) {
	p.oldToNew = make(map[string]string)
	p.newToOld = make(map[string]string)
	p.rebuilt = make(map[string]bool)

	if detectRenames {
		for j := range p.new.Columns {
			nc := &p.new.Columns[j]
			if p.old.ColumnIndex(nc.Name) >= 0 || j >= len(p.old.Columns) {
				continue
			}

			oc := &p.old.Columns[j]
			if p.new.ColumnIndex(oc.Name) >= 0 || !oc.EqualDefinition(nc) {
				continue
			}

			p.oldToNew[oc.Name] = nc.Name
			p.newToOld[nc.Name] = oc.Name
		}
	}

	if at != nil && at.RebuildsTables() {
		return
	}

	for j := range p.new.Columns {
		nc := &p.new.Columns[j]

		oc, ok := p.oldColumn(nc.Name)
		if !ok {
			continue
		}

		if oc.Type != nc.Type || oc.StoreType != nc.StoreType ||
			(at != nil && at.AlterNeedsIndexRebuild(oc, nc)) {
			p.rebuilt[nc.Name] = true
		}
	}
}

// needsRecreate reports column changes ALTER TABLE cannot make on a table the
// target recreates: a change to how a kept column is stored, or an added
// column that is required without a default or is a stored computed column.
func (p *tablePair) needsRecreate() bool {
	for j := range p.new.Columns {
		nc := &p.new.Columns[j]

		oc, ok := p.oldColumn(nc.Name)
		if ok {
			if !oc.EqualStorage(nc) {
				return true
			}

			continue
		}

		if nc.ComputedSQL != "" {
			if nc.Stored {
				return true
			}

			continue
		}

		if !nc.Nullable && !nc.HasDefault() {
			return true
		}
	}

	return false
}

// oldColumn returns the old column that became the named new column.
func (p *tablePair) oldColumn(newName string) (*schema.Column, bool) {
	name := newName
	if o, ok := p.newToOld[newName]; ok {
		name = o
	} else if _, renamedAway := p.oldToNew[newName]; renamedAway {
		return nil, false
	}

	return p.old.Column(name)
}

// foreignKeyCycles returns the foreign keys of tables that lie on a reference
// cycle among those tables. Self references are not cycles.
func foreignKeyCycles(tables []*schema.Table) map[*schema.ForeignKey]bool {
	index := make(map[schema.QualifiedName]int, len(tables))
	for i, t := range tables {
		index[t.QualifiedName()] = i
	}

	adj := make([][]int, len(tables))

	for i, t := range tables {
		for k := range t.ForeignKeys {
			fk := &t.ForeignKeys[k]
			if j, ok := index[schema.QualifiedName{Schema: fk.PrincipalSchema, Name: fk.PrincipalTable}]; ok && j != i {
				adj[i] = append(adj[i], j)
			}
		}
	}

	comp := stronglyConnected(adj)
	out := make(map[*schema.ForeignKey]bool)

	for i, t := range tables {
		for k := range t.ForeignKeys {
			fk := &t.ForeignKeys[k]

			j, ok := index[schema.QualifiedName{Schema: fk.PrincipalSchema, Name: fk.PrincipalTable}]
			if ok && j != i && comp[i] == comp[j] {
				out[fk] = true
			}
		}
	}

	return out
}

// stronglyConnected labels each vertex with its component (Tarjan).
func stronglyConnected(adj [][]int) []int {
	n := len(adj)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	comp := make([]int, n)

	for i := range index {
		index[i] = -1
	}

	var (
		stack   []int
		counter int
		ncomp   int
		visit   func(v int)
	)

	visit = func(v int) {
		index[v] = counter
		low[v] = counter
		counter++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if index[w] < 0 {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = ncomp

				if w == v {
					break
				}
			}

			ncomp++
		}
	}

	for v := range n {
		if index[v] < 0 {
			visit(v)
		}
	}

	return comp
}
