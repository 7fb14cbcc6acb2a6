package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// filenamePattern matches the files of one migration:
//
//	{timestamp}_{name}.yaml      the model (".yml" also accepted)
//	{timestamp}_{name}.up.sql    optional raw SQL run after the model changes
//	{timestamp}_{name}.down.sql  optional raw SQL run before reverting them
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by LoadFromDir
	`^(\d{14})_(.+?)\.(yaml|yml|up\.sql|down\.sql)$`,
)

// LoadFromDir scans dir for migration files and returns them unsorted.
// Files that do not match the naming pattern are skipped.
func LoadFromDir(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	grouped, err := scanEntries(entries)
	if err != nil {
		return nil, err
	}

	return buildMigrations(grouped, dir)
}

// migrationFile pairs a model file with its SQL files.
type migrationFile struct {
	version   string
	name      string
	modelFile string
	upFile    string
	downFile  string
}

func scanEntries(entries []os.DirEntry) (map[string]*migrationFile, error) {
	grouped := make(map[string]*migrationFile)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := filenamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		version, name, kind := matches[1], matches[2], matches[3]
		id := version + "_" + name

		mf, ok := grouped[id]
		if !ok {
			mf = &migrationFile{version: version, name: name}
			grouped[id] = mf
		}

		switch kind {
		case "up.sql":
			mf.upFile = entry.Name()
		case "down.sql":
			mf.downFile = entry.Name()
		default:
			if mf.modelFile != "" {
				return nil, fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateID, id, mf.modelFile, entry.Name())
			}

			mf.modelFile = entry.Name()
		}
	}

	return grouped, nil
}

func buildMigrations(grouped map[string]*migrationFile, dir string) ([]Migration, error) {
	migrations := make([]Migration, 0, len(grouped))

	for id, mf := range grouped {
		if mf.modelFile == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingModel, id)
		}

		m, err := readMigration(id, mf, dir)
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, m)
	}

	return migrations, nil
}

func readMigration(id string, mf *migrationFile, dir string) (Migration, error) {
	modelPath := filepath.Join(dir, mf.modelFile)

	model, err := schema.Load(modelPath)
	if err != nil {
		return Migration{}, fmt.Errorf("loading migration %s: %w", id, err)
	}

	upSQL, err := readOptional(dir, mf.upFile)
	if err != nil {
		return Migration{}, err
	}

	downSQL, err := readOptional(dir, mf.downFile)
	if err != nil {
		return Migration{}, err
	}

	return Migration{
		ID:       id,
		Version:  mf.version,
		Name:     mf.name,
		Model:    model,
		UpSQL:    upSQL,
		DownSQL:  downSQL,
		FilePath: modelPath,
	}, nil
}

func readOptional(dir, file string) (string, error) {
	if file == "" {
		return "", nil
	}

	path := filepath.Join(dir, file)

	data, err := os.ReadFile(path) //nolint:gosec // path built from the migrations directory listing
	if err != nil {
		return "", fmt.Errorf("reading migration file %s: %w", path, err)
	}

	return strings.TrimSpace(string(data)), nil
}
