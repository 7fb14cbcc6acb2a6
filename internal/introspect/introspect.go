// Package introspect reads the tables of a live database back into a
// schema.Snapshot. Columns carry the database's native type as StoreType and
// no logical type, so a snapshot compares cleanly against another
// introspected snapshot but not against a hand-written model.
package introspect

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// SQLQuerier is satisfied by *sql.DB, *sql.Conn, and *sql.Tx.
type SQLQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Option configures introspection.
type Option func(*options)

type options struct {
	exclude []string
}

// WithExcludedTables skips the named tables, typically the history table.
func WithExcludedTables(names ...string) Option {
	return func(o *options) { o.exclude = append(o.exclude, names...) }
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *options) skip(table string) bool {
	return slices.Contains(o.exclude, table)
}

// keyAccumulator collects multi-column constraints from rows ordered by
// constraint name and column position.
type keyAccumulator struct {
	order []string
	cols  map[string][]string
}

func newKeyAccumulator() *keyAccumulator {
	return &keyAccumulator{cols: make(map[string][]string)}
}

func (k *keyAccumulator) add(name, column string) {
	if _, ok := k.cols[name]; !ok {
		k.order = append(k.order, name)
	}

	k.cols[name] = append(k.cols[name], column)
}

// referentialAction maps the catalog spelling ("CASCADE", "SET NULL", "c", ...)
// to a ReferentialAction. Unknown values are NoAction.
func referentialAction(s string) schema.ReferentialAction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CASCADE", "C":
		return schema.Cascade
	case "RESTRICT", "R":
		return schema.Restrict
	case "SET NULL", "N":
		return schema.SetNull
	case "SET DEFAULT", "D":
		return schema.SetDefault
	default:
		return schema.NoAction
	}
}

func sortTables(tables []schema.Table) {
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].QualifiedName().Less(tables[j].QualifiedName())
	})
}
