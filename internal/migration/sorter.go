package migration

import "sort"

// Sort returns a new slice of migrations ordered by ID. The timestamp prefix
// makes lexicographic order chronological; the sort is stable for equal IDs.
func Sort(migrations []Migration) []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	return sorted
}

// IDs returns the migration IDs in slice order.
func IDs(migrations []Migration) []string {
	ids := make([]string, len(migrations))
	for i := range migrations {
		ids[i] = migrations[i].ID
	}

	return ids
}
