package migration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/migration"
)

const usersModel = `
tables:
  - name: users
    columns:
      - name: id
        type: int32
        identity: true
      - name: name
        type: string(100)
    primary_key:
      columns: [id]
`

const usersWithEmailModel = `
tables:
  - name: users
    columns:
      - name: id
        type: int32
        identity: true
      - name: name
        type: string(100)
      - name: email
        type: string(200)
        nullable: true
    primary_key:
      columns: [id]
`

func TestLoadFromDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string]string
		missing bool
		wantErr error
		errText string
		check   func(t *testing.T, ms []migration.Migration)
	}{
		{
			name:    "missing directory returns error",
			missing: true,
			errText: "reading migrations directory",
		},
		{
			name: "empty directory returns empty slice",
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				assert.Empty(t, ms)
			},
		},
		{
			name: "non-matching files are skipped",
			files: map[string]string{
				"README.md":       "# readme",
				"V001_old.up.sql": "SELECT 1;",
				"2024_short.yaml": usersModel,
				"notes.txt":       "some notes",
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				assert.Empty(t, ms)
			},
		},
		{
			name: "model file is parsed",
			files: map[string]string{
				"20240101120000_create_users.yaml": usersModel,
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				require.Len(t, ms, 1)

				m := ms[0]
				assert.Equal(t, "20240101120000_create_users", m.ID)
				assert.Equal(t, "20240101120000", m.Version)
				assert.Equal(t, "create_users", m.Name)
				assert.True(t, strings.HasSuffix(m.FilePath, "20240101120000_create_users.yaml"))
				require.NotNil(t, m.Model)

				users, ok := m.Model.Table("", "users")
				require.True(t, ok)
				assert.Len(t, users.Columns, 2)
				assert.Empty(t, m.UpSQL)
				assert.Empty(t, m.DownSQL)
			},
		},
		{
			name: "yml extension and sql files pair by id",
			files: map[string]string{
				"20240101120000_seed.yml":      usersModel,
				"20240101120000_seed.up.sql":   "  INSERT INTO users (name) VALUES ('a');  \n",
				"20240101120000_seed.down.sql": "DELETE FROM users;",
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				require.Len(t, ms, 1)
				assert.Equal(t, "INSERT INTO users (name) VALUES ('a');", ms[0].UpSQL)
				assert.Equal(t, "DELETE FROM users;", ms[0].DownSQL)
			},
		},
		{
			name: "names may contain dots",
			files: map[string]string{
				"20240101120000_v1.2_users.yaml": usersModel,
			},
			check: func(t *testing.T, ms []migration.Migration) {
				t.Helper()
				require.Len(t, ms, 1)
				assert.Equal(t, "v1.2_users", ms[0].Name)
			},
		},
		{
			name: "sql without model is an error",
			files: map[string]string{
				"20240101120000_orphan.up.sql": "SELECT 1;",
			},
			wantErr: migration.ErrMissingModel,
		},
		{
			name: "yaml and yml for one id is an error",
			files: map[string]string{
				"20240101120000_users.yaml": usersModel,
				"20240101120000_users.yml":  usersModel,
			},
			wantErr: migration.ErrDuplicateID,
		},
		{
			name: "invalid model is reported with the migration id",
			files: map[string]string{
				"20240101120000_broken.yaml": "tables:\n  - name: t\n    columns:\n      - name: c\n        type: nonsense\n",
			},
			errText: "loading migration 20240101120000_broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			if tt.missing {
				dir = filepath.Join(dir, "nonexistent")
			}

			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			ms, err := migration.LoadFromDir(dir)

			if tt.wantErr != nil || tt.errText != "" {
				require.Error(t, err)

				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
				}

				assert.Contains(t, err.Error(), tt.errText)

				return
			}

			require.NoError(t, err)

			if tt.check != nil {
				tt.check(t, ms)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}
