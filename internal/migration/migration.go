// Package migration loads the migrations directory: one model snapshot per
// migration plus optional raw SQL, ordered by timestamp.
package migration

import "github.com/aqasim81/schema-migrator/internal/schema"

// Migration is one migration loaded from disk.
type Migration struct {
	ID       string           // "20240101120000_create_users", the history row key
	Version  string           // "20240101120000"
	Name     string           // "create_users"
	Model    *schema.Snapshot // full target model after this migration
	UpSQL    string           // contents of {ID}.up.sql, run after the model changes
	DownSQL  string           // contents of {ID}.down.sql, run before reverting them
	FilePath string           // path to the model file
}
