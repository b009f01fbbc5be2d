// Package migrations embeds and applies the checkpoint database schema.
//
// Migrations are embedded at build time with go:embed for zero-config
// deployment: the binary carries its own schema and brings the watermark
// table up to date on startup, so there is no separate migration step to
// forget in containerized environments.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

//go:embed *.sql
var embeddedMigrations embed.FS

// Migration filename standard: 001_migration_name.up.sql / 001_migration_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// FS returns the embedded migration file system.
func FS() fs.FS {
	return embeddedMigrations
}

// List returns the embedded migration filenames that conform to the naming
// standard, in lexicographic (and therefore sequence) order.
func List() ([]string, error) {
	entries, err := fs.ReadDir(embeddedMigrations, ".")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".sql" && migrationFilenameRegex.MatchString(name) {
			files = append(files, name)
		}
	}

	sort.Strings(files)

	return files, nil
}

// Validate checks the embedded migration set: at least one migration, strict
// filenames, and a down file paired with every up file. Run at startup so a
// broken build fails before touching the database.
func Validate() error {
	files, err := List()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no embedded migration files found")
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)

	for _, file := range files {
		base := strings.TrimSuffix(strings.TrimSuffix(file, ".up.sql"), ".down.sql")

		switch {
		case strings.HasSuffix(file, ".up.sql"):
			ups[base] = true
		case strings.HasSuffix(file, ".down.sql"):
			downs[base] = true
		}
	}

	for base := range ups {
		if !downs[base] {
			return fmt.Errorf("migration %s has no down file", base)
		}
	}

	for base := range downs {
		if !ups[base] {
			return fmt.Errorf("migration %s has no up file", base)
		}
	}

	return nil
}
