package differ

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// phase is the base rank of an operation. Operations with no dependency
// between them are emitted by phase, then in the order they were added.
type phase int

const (
	phaseDropForeignKey phase = iota
	phaseDropConstraint
	phaseEnsureSchema
	phaseRename
	phaseSequence
	phaseCreateTable
	phaseColumn
	phaseAddConstraint
	phaseCreateIndex
	phaseAddForeignKey
	phaseDropTable
	phaseDropSequence
)

// node is an operation plus the resources it touches. A resource is any named
// thing that can exist in the old or new schema: a schema, table, column, key,
// constraint or index name, or sequence.
type node struct {
	op   operations.Operation
	rank phase
	seq  int

	creates []string
	removes []string
	usesOld []string // must run while the resource still exists in its old form
	usesNew []string // must run once the resource exists in its new form
}

func (n *node) create(keys ...string) *node {
	n.creates = append(n.creates, keys...)

	return n
}

func (n *node) remove(keys ...string) *node {
	n.removes = append(n.removes, keys...)

	return n
}

func (n *node) useOld(keys ...string) *node {
	n.usesOld = append(n.usesOld, keys...)

	return n
}

func (n *node) useNew(keys ...string) *node {
	n.usesNew = append(n.usesNew, keys...)

	return n
}

type graph struct {
	nodes []*node
}

func (g *graph) add(op operations.Operation, rank phase) *node {
	n := &node{op: op, rank: rank, seq: len(g.nodes)}
	g.nodes = append(g.nodes, n)

	return n
}

// sort orders the operations so that every dependency edge is respected and,
// among ready operations, the lowest (rank, seq) goes first.
//
// Edges derived from resources:
//
//	creator(r)  -> user of the new r
//	user of old r -> remover(r)
//	remover(r)  -> creator(r)
func (g *graph) sort() ([]operations.Operation, error) {
	n := len(g.nodes)
	creators := make(map[string][]int)
	removers := make(map[string][]int)

	for i, nd := range g.nodes {
		for _, r := range nd.creates {
			creators[r] = append(creators[r], i)
		}

		for _, r := range nd.removes {
			removers[r] = append(removers[r], i)
		}
	}

	succ := make([][]int, n)
	indeg := make([]int, n)
	seen := make(map[[2]int]bool)

	edge := func(from, to int) {
		if from == to || seen[[2]int{from, to}] {
			return
		}

		seen[[2]int{from, to}] = true
		succ[from] = append(succ[from], to)
		indeg[to]++
	}

	for i, nd := range g.nodes {
		for _, r := range nd.usesNew {
			for _, c := range creators[r] {
				edge(c, i)
			}
		}

		for _, r := range nd.usesOld {
			for _, rm := range removers[r] {
				edge(i, rm)
			}
		}

		for _, r := range nd.removes {
			for _, c := range creators[r] {
				edge(i, c)
			}
		}
	}

	ready := &nodeHeap{}

	for i, nd := range g.nodes {
		if indeg[i] == 0 {
			heap.Push(ready, nd)
		}
	}

	out := make([]operations.Operation, 0, n)

	for ready.Len() > 0 {
		nd := heap.Pop(ready).(*node) //nolint:forcetypeassert // heap only holds *node
		out = append(out, nd.op)

		for _, next := range succ[nd.seq] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(ready, g.nodes[next])
			}
		}
	}

	if len(out) != n {
		var stuck []string

		for i, nd := range g.nodes {
			if indeg[i] > 0 {
				stuck = append(stuck, operations.Describe(nd.op))
			}
		}

		return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(stuck, "; "))
	}

	return out, nil
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}

	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	*h = append(*h, x.(*node)) //nolint:forcetypeassert // heap only holds *node
}

func (h *nodeHeap) Pop() any {
	old := *h
	last := len(old) - 1
	nd := old[last]
	old[last] = nil
	*h = old[:last]

	return nd
}

// Resource keys. Tables are keyed by their actual identity so that a rename
// removes one key and creates another. Columns, keys, and constraint names are
// keyed by the table's stable identity, which survives renames.

const sep = "\x1f"

func schemaRes(name string) string { return "schema" + sep + name }

func tableRes(q schema.QualifiedName) string { return "table" + sep + q.Schema + sep + q.Name }

func sequenceRes(schemaName, name string) string { return "seq" + sep + schemaName + sep + name }

func columnRes(stable, col string) string { return "col" + sep + stable + sep + col }

func objectRes(stable, name string) string { return "obj" + sep + stable + sep + name }

func keyRes(stable string, cols []string) string {
	return "key" + sep + stable + sep + strings.Join(cols, sep)
}

func stableID(q schema.QualifiedName) string { return q.Schema + sep + q.Name }
