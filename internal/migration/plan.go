package migration

import (
	"fmt"

	"github.com/aqasim81/schema-migrator/internal/differ"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

// Step holds the operations that apply and revert one migration.
type Step struct {
	Migration *Migration
	Up        []operations.Operation
	Down      []operations.Operation
}

// Plan diffs each migration's model against the previous one. The first
// migration is diffed against an empty model. ms must be sorted. A nil d uses
// the default differ.
func Plan(d *differ.Differ, ms []Migration) ([]Step, error) {
	if d == nil {
		d = differ.New()
	}

	steps := make([]Step, 0, len(ms))

	var prev *schema.Snapshot

	for i := range ms {
		m := &ms[i]

		up, down, err := d.DiffPair(prev, m.Model)
		if err != nil {
			return nil, fmt.Errorf("planning migration %s: %w", m.ID, err)
		}

		if m.UpSQL != "" {
			up = append(up, operations.SQL{SQL: m.UpSQL})
		}

		if m.DownSQL != "" {
			down = append([]operations.Operation{operations.SQL{SQL: m.DownSQL}}, down...)
		}

		steps = append(steps, Step{Migration: m, Up: up, Down: down})
		prev = m.Model
	}

	return steps, nil
}
